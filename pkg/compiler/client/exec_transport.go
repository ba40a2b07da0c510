package client

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ExecTransport runs the compiler service as a local child process connected
// over stdin/stdout.
type ExecTransport struct {
	// Command is the compiler service binary path.
	Command string

	// Args are additional arguments passed to the binary.
	Args []string

	// Env is the child process environment. Nil inherits the parent's.
	Env []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// Execute starts the compiler service process and returns its pipes.
func (t *ExecTransport) Execute(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil, nil, fmt.Errorf("compiler service already running")
	}
	if t.Command == "" {
		return nil, nil, fmt.Errorf("compiler service command is required")
	}

	cmd := exec.CommandContext(ctx, t.Command, t.Args...)
	if t.Env != nil {
		cmd.Env = t.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start compiler service: %w", err)
	}

	t.cmd = cmd
	return stdin, stdout, nil
}

// Stop terminates the compiler service process. The process is reaped so no
// zombie is left behind.
func (t *ExecTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- t.cmd.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err := t.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill compiler service: %w", err)
		}
		<-done
	}

	t.cmd = nil
	return nil
}
