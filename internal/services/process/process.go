package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Request describes one external program invocation.
type Request struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// String renders the command line with shell-style quoting for logs and errors.
func (r Request) String() string {
	parts := make([]string, 0, len(r.Args)+1)
	parts = append(parts, quoteArg(r.Name))
	for _, arg := range r.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

// Result captures the outcome of a completed invocation. Output holds the
// tail of interleaved stdout and stderr; Stdout holds standard output alone.
type Result struct {
	ExitCode int
	Stdout   string
	Output   string
	Duration time.Duration
}

// Runner executes external programs.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Result, error)

// Run calls f(ctx, req).
func (f RunnerFunc) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// ExitError reports a child that exited unsuccessfully.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	var execErr *exec.ExitError
	switch {
	case e.Err == nil, errors.As(e.Err, &execErr):
	case e.ExitCode < 0:
		msg = fmt.Sprintf("%s: %v", e.Command, e.Err)
	default:
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.ContainsAny(arg, " \t\n'\"\\$`|&;<>()*?[]#~") {
		return strconv.Quote(arg)
	}
	return arg
}
