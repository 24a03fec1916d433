package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sandgate/internal/agent"
	"sandgate/internal/bus"
	"sandgate/internal/common/mq"
	"sandgate/internal/health"
	"sandgate/internal/session"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/sandgate.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	console := flag.Bool("console", false, "Read messages from stdin and print replies (memory bus only)")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(appCfg, *console); err != nil {
		logger.Error(context.Background(), "gateway stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig, console bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageBus, busCheck, err := openBus(ctx, appCfg.Bus)
	if err != nil {
		return fmt.Errorf("init message bus failed: %w", err)
	}
	defer func() { _ = messageBus.Close() }()

	sessions, closeSessions, err := session.Open(ctx, appCfg.Session)
	if err != nil {
		return fmt.Errorf("init session store failed: %w", err)
	}
	defer closeSessions()

	backend, err := agent.ResolveBackend(ctx, appCfg.ContainerAgent)
	if err != nil {
		return err
	}

	metrics := health.NewUsageMetrics()
	proxy, err := agent.NewProxy(appCfg.ContainerAgent, backend, messageBus,
		agent.WithSessionStore(sessions),
		agent.WithUsageMetrics(metrics),
		agent.WithProviders(appCfg.Providers),
		agent.WithAgentDefaults(appCfg.Agent),
	)
	if err != nil {
		return err
	}

	checks := []health.Check{
		{Name: "proxy", Fn: func(context.Context) error {
			if !proxy.IsRunning() {
				return errors.New("proxy loop is not running")
			}
			return nil
		}},
		{Name: "backend", Fn: backendCheck(appCfg.ContainerAgent, backend)},
	}
	if busCheck != nil {
		checks = append(checks, health.Check{Name: "bus", Fn: busCheck})
	}
	httpServer := health.NewServer(appCfg.Health, metrics, checks...)
	listener, err := net.Listen("tcp", appCfg.Health.Addr)
	if err != nil {
		return fmt.Errorf("init health listener failed: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "health server started", zap.String("addr", appCfg.Health.Addr))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		errCh <- proxy.Start(ctx)
	}()

	if console {
		if appCfg.Bus.Type != busMemory {
			logger.Warn(ctx, "console mode needs the memory bus; ignoring", zap.String("bus", appCfg.Bus.Type))
		} else {
			go runConsole(ctx, messageBus, os.Stdin, os.Stdout)
		}
	}

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error(ctx, "gateway component stopped", zap.Error(runErr))
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	proxy.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "health server shutdown failed", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		proxy.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn(shutdownCtx, "in-flight agent requests still running at shutdown")
	}
	return runErr
}

// openBus returns the configured bus and, for kafka, a readiness check.
func openBus(ctx context.Context, cfg BusConfig) (bus.MessageBus, func(context.Context) error, error) {
	if cfg.Type == busMemory {
		return bus.NewMemoryBus(cfg.BufferSize), nil, nil
	}
	queue, err := mq.NewKafkaQueue(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	kafkaBus, err := bus.NewKafkaBus(ctx, queue, cfg.Topics)
	if err != nil {
		_ = queue.Close()
		return nil, nil, err
	}
	return kafkaBus, queue.Ping, nil
}

func backendCheck(cfg agent.ContainerAgentConfig, backend agent.Backend) func(context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		if !agent.BackendAvailable(ctx, cfg, backend) {
			return fmt.Errorf("%s backend is not reachable", backend)
		}
		logger.Debug(ctx, "backend check ok", zap.String("backend", string(backend)), logger.ElapsedField(start))
		return nil
	}
}
