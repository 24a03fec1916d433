package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	goruntime "runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sandgate/internal/bus"
	"sandgate/internal/health"
	"sandgate/internal/sandbox"
	"sandgate/internal/session"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/contextkey"
	"sandgate/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Prefixes of failure replies sent back to the channel.
const (
	ContainerErrorPrefix = "Container error: "
	AgentErrorPrefix     = "Error: "
)

// waitDelay bounds pipe draining after the container process exits.
const waitDelay = 2 * time.Second

// Option configures a Proxy.
type Option func(*Proxy)

// WithSessionStore enables loading and persisting session snapshots.
func WithSessionStore(store session.Store) Option {
	return func(p *Proxy) { p.sessions = store }
}

// WithUsageMetrics enables request and error counting.
func WithUsageMetrics(m *health.UsageMetrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithProviders sets the credentials forwarded into containers.
func WithProviders(providers ProvidersConfig) Option {
	return func(p *Proxy) { p.providers = providers }
}

// WithAgentDefaults sets the agent config sent with each request.
func WithAgentDefaults(d AgentDefaults) Option {
	return func(p *Proxy) { p.agentDefaults = d }
}

// Proxy consumes inbound messages and answers each one from a fresh
// container. At most MaxConcurrent containers run at once.
type Proxy struct {
	cfg           ContainerAgentConfig
	backend       Backend
	bus           bus.MessageBus
	sessions      session.Store
	metrics       *health.UsageMetrics
	providers     ProvidersConfig
	agentDefaults AgentDefaults

	sem      *semaphore.Weighted
	running  atomic.Bool
	shutdown chan struct{}
	stopOnce sync.Once
	tasks    sync.WaitGroup
	log      *zap.Logger

	buildInvocation func(ctx context.Context) (*Invocation, error)
}

// NewProxy builds a proxy for an already resolved backend (docker or apple).
func NewProxy(cfg ContainerAgentConfig, backend Backend, b bus.MessageBus, opts ...Option) (*Proxy, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend != BackendDocker && backend != BackendApple {
		return nil, appErr.Newf(appErr.ConfigInvalid, "proxy needs a resolved backend, got %q", backend)
	}
	if b == nil {
		return nil, appErr.InvalidParam("bus", "is required")
	}
	p := &Proxy{
		cfg:           cfg,
		backend:       backend,
		bus:           b,
		agentDefaults: DefaultAgentDefaults(),
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		shutdown:      make(chan struct{}),
		log:           logger.Named("container-agent"),
	}
	p.buildInvocation = p.defaultInvocation
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Proxy) Backend() Backend { return p.backend }

func (p *Proxy) IsRunning() bool { return p.running.Load() }

// Start runs the dispatch loop until Stop, ctx cancellation or a closed
// bus. A second concurrent Start fails immediately. In-flight requests
// are not cancelled when the loop exits; use Wait to drain them.
func (p *Proxy) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return appErr.New(appErr.ProxyAlreadyRunning).WithMessage("container agent proxy already running")
	}
	defer p.running.Store(false)

	p.log.Info("starting containerized agent proxy",
		zap.String("backend", string(p.backend)),
		zap.Int("max_concurrent", p.cfg.MaxConcurrent))

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.shutdown:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	for {
		msg, err := p.bus.ConsumeInbound(loopCtx)
		if err != nil {
			if loopCtx.Err() != nil {
				p.log.Info("container agent proxy shutting down")
				return nil
			}
			if errors.Is(err, bus.ErrClosed) {
				p.log.Error("inbound channel closed")
				return nil
			}
			return appErr.Wrapf(err, appErr.QueueError, "consume inbound failed: %v", err)
		}
		p.dispatch(ctx, msg)
	}
}

// dispatch blocks until a permit is free, then handles msg on its own
// goroutine. The permit is acquired without cancellation so a consumed
// message is never dropped.
func (p *Proxy) dispatch(ctx context.Context, msg bus.InboundMessage) {
	taskCtx := context.WithoutCancel(ctx)
	if err := p.sem.Acquire(taskCtx, 1); err != nil {
		p.log.Error("failed to acquire concurrency permit",
			zap.String("session_key", msg.SessionKey()), zap.Error(err))
		if err := p.bus.PublishOutbound(taskCtx, reply(msg, ContainerErrorPrefix+err.Error())); err != nil {
			p.log.Error("failed to publish response",
				zap.String("session_key", msg.SessionKey()), zap.Error(err))
		}
		return
	}

	p.tasks.Add(1)
	threading.GoSafe(func() {
		defer p.tasks.Done()
		defer p.sem.Release(1)

		out := p.process(taskCtx, msg)
		if err := p.bus.PublishOutbound(taskCtx, out); err != nil {
			p.log.Error("failed to publish response",
				zap.String("session_key", msg.SessionKey()), zap.Error(err))
		}
	})
}

// Stop ends the dispatch loop. Safe to call from any goroutine, any number
// of times. A stopped proxy cannot be started again.
func (p *Proxy) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
}

// Wait blocks until every dispatched request has published its reply.
func (p *Proxy) Wait() {
	p.tasks.Wait()
}

func (p *Proxy) process(ctx context.Context, msg bus.InboundMessage) bus.OutboundMessage {
	finish := func(bool) {}
	if p.metrics != nil {
		finish = p.metrics.Begin()
	}

	requestID := uuid.NewString()
	key := msg.SessionKey()
	ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
	ctx = context.WithValue(ctx, contextkey.SessionKey, key)
	ctx = context.WithValue(ctx, contextkey.Channel, msg.Channel)
	ctx = context.WithValue(ctx, contextkey.Backend, string(p.backend))

	start := time.Now()
	req := AgentRequest{
		RequestID:   requestID,
		Message:     msg,
		AgentConfig: p.agentDefaults,
		Session:     p.loadSession(ctx, key),
	}

	resp, err := p.runContainer(ctx, req)
	if err != nil {
		finish(true)
		logger.Error(ctx, "container execution failed", zap.Error(err), logger.ElapsedField(start))
		return reply(msg, ContainerErrorPrefix+err.Error())
	}
	if resp.RequestID != requestID {
		logger.Warn(ctx, "container response has unexpected request id", zap.String("response_request_id", resp.RequestID))
	}
	if resp.Result.Kind == ResultError {
		finish(true)
		logger.Warn(ctx, "agent reported error",
			zap.String("code", resp.Result.Code), zap.String("message", resp.Result.Message))
		return reply(msg, AgentErrorPrefix+resp.Result.Message)
	}

	p.persistSession(ctx, key, resp.Result.Session)
	finish(false)
	logger.Debug(ctx, "container request completed", logger.ElapsedField(start))
	return reply(msg, resp.Result.Content)
}

func reply(msg bus.InboundMessage, content string) bus.OutboundMessage {
	return bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: content}
}

func (p *Proxy) loadSession(ctx context.Context, key string) *session.Session {
	if p.sessions == nil {
		return nil
	}
	s, err := p.sessions.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "failed to load session snapshot", zap.Error(err))
		return nil
	}
	return s
}

// persistSession saves a snapshot only when it belongs to the session the
// request was made for.
func (p *Proxy) persistSession(ctx context.Context, expected string, s *session.Session) {
	if s == nil {
		return
	}
	if s.Key != expected {
		logger.Warn(ctx, "ignoring container session snapshot with mismatched key",
			zap.String("expected", expected), zap.String("actual", s.Key))
		return
	}
	if p.sessions == nil {
		return
	}
	if err := p.sessions.Save(ctx, s); err != nil {
		logger.Warn(ctx, "failed to persist container session snapshot", zap.Error(err))
	}
}

func (p *Proxy) defaultInvocation(ctx context.Context) (*Invocation, error) {
	dirs, err := PrepareHostDirs(p.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if p.backend == BackendApple {
		return BuildAppleInvocation(ctx, p.cfg, p.providers, dirs)
	}
	return BuildDockerInvocation(ctx, p.cfg, p.providers, dirs)
}

// runContainer spawns one container, writes the request line, waits under
// the configured timeout and parses the marked response.
func (p *Proxy) runContainer(ctx context.Context, req AgentRequest) (*AgentResponse, error) {
	// Pdeathsig is bound to the spawning thread.
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	inv, err := p.buildInvocation(ctx)
	if err != nil {
		return nil, err
	}
	defer inv.Cleanup(ctx)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ContainerIO, "failed to serialize request: %v", err)
	}
	payload = append(payload, '\n')

	cmd := exec.Command(inv.Binary, inv.Args...)
	cmd.Env = os.Environ()
	for _, e := range inv.Env {
		cmd.Env = append(cmd.Env, e.Name+"="+e.Value)
	}
	cmd.WaitDelay = waitDelay
	sandbox.PrepareCommand(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ContainerSpawn, "failed to spawn container: %v", err)
	}

	logger.Debug(ctx, "spawning containerized agent request",
		zap.String("binary", inv.Binary), zap.Int("args_len", len(inv.Args)), zap.Int("env_len", len(inv.Env)))
	if err := cmd.Start(); err != nil {
		return nil, appErr.Wrapf(err, appErr.ContainerSpawn, "failed to spawn container: %v", err)
	}

	// The timer covers the stdin write too: a child that never reads
	// would otherwise block a large request forever.
	guard := sandbox.NewProcessGuard(cmd)
	var timedOut atomic.Bool
	timer := time.AfterFunc(p.cfg.Timeout, func() {
		if guard.Kill() {
			timedOut.Store(true)
		}
	})
	defer timer.Stop()

	_, writeErr := stdin.Write(payload)
	if closeErr := stdin.Close(); writeErr == nil {
		writeErr = closeErr
	}
	exited, waitErr := guard.Wait()

	if !exited && timedOut.Load() {
		logger.Warn(ctx, "container process timed out and was killed", zap.Duration("timeout", p.cfg.Timeout))
		inv.Stop(ctx)
		return nil, appErr.Newf(appErr.ContainerTimeout,
			"container timeout after %s: process killed", seconds(p.cfg.Timeout))
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return nil, appErr.Wrapf(waitErr, appErr.ContainerIO, "container failed: %v", waitErr)
	}
	if code := cmd.ProcessState.ExitCode(); code != 0 {
		detail := stderr.String()
		if detail == "" {
			detail = stdout.String()
		}
		return nil, appErr.Newf(appErr.ContainerExit, "container exited with code %d: %s", code, detail).
			WithDetail("exit_code", code)
	}
	if writeErr != nil {
		return nil, appErr.Wrapf(writeErr, appErr.ContainerIO, "failed to write to stdin: %v", writeErr)
	}
	return ParseResponse(stdout.String())
}

// seconds renders d as "300s" or "0.5s".
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
