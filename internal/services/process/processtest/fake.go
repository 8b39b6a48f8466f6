// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"path/filepath"
	"sync"

	"lipsync/internal/services/process"
)

// Handler produces the outcome of one fake invocation.
type Handler func(ctx context.Context, req process.Request) (process.Result, error)

// Runner records every request and delegates to per-binary handlers.
// It is safe for concurrent use.
type Runner struct {
	mu       sync.Mutex
	calls    []process.Request
	handlers map[string]Handler
	fallback Handler
}

// New returns a Runner whose unmatched commands succeed with empty output.
func New() *Runner {
	return &Runner{handlers: make(map[string]Handler)}
}

// Handle registers h for commands whose binary base name equals name.
func (r *Runner) Handle(name string, h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return r
}

// HandleDefault registers the handler used when no binary-specific one matches.
func (r *Runner) HandleDefault(h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
	return r
}

// Run records req and invokes the matching handler.
func (r *Runner) Run(ctx context.Context, req process.Request) (process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cloneRequest(req))
	h, ok := r.handlers[filepath.Base(req.Name)]
	if !ok {
		h = r.fallback
	}
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return process.Result{ExitCode: -1}, err
	}
	if h == nil {
		return process.Result{}, nil
	}
	return h(ctx, req)
}

// Calls returns a copy of every recorded request in invocation order.
func (r *Runner) Calls() []process.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]process.Request, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns the recorded requests for one binary base name.
func (r *Runner) CallsTo(name string) []process.Request {
	var out []process.Request
	for _, call := range r.Calls() {
		if filepath.Base(call.Name) == name {
			out = append(out, call)
		}
	}
	return out
}

// Fail builds a handler that exits with code and output.
func Fail(code int, output string) Handler {
	return func(_ context.Context, req process.Request) (process.Result, error) {
		res := process.Result{ExitCode: code, Output: output}
		return res, &process.ExitError{Command: req.String(), ExitCode: code, Output: output}
	}
}

// ArgAfter returns the argument following flag, or "" when absent.
func ArgAfter(req process.Request, flag string) string {
	for i := 0; i+1 < len(req.Args); i++ {
		if req.Args[i] == flag {
			return req.Args[i+1]
		}
	}
	return ""
}

func cloneRequest(req process.Request) process.Request {
	req.Args = append([]string(nil), req.Args...)
	if req.Env != nil {
		env := make(map[string]string, len(req.Env))
		for k, v := range req.Env {
			env[k] = v
		}
		req.Env = env
	}
	return req
}
