// Package host inspects the local machine: toolchain probes, project
// structure scanning, env file reading and upload watching.
package host

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner abstracts command execution so probes can be tested without
// the real toolchain installed.
type CommandRunner interface {
	// Run executes a command and returns its combined trimmed output.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner executes commands as local OS processes.
type ExecRunner struct {
	// Timeout bounds each command. Zero means 10 seconds.
	Timeout time.Duration
}

// Run executes the command, capturing stdout and stderr together since
// several toolchains print their version banner to stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(buf.String()), err
	}

	return strings.TrimSpace(buf.String()), nil
}
