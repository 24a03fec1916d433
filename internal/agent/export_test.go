package agent

import "context"

// WithInvocationBuilder replaces container resolution so tests can run a
// local helper process instead of a container engine.
func WithInvocationBuilder(build func(ctx context.Context) (*Invocation, error)) Option {
	return func(p *Proxy) { p.buildInvocation = build }
}
