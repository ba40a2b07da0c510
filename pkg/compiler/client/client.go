// Package client manages the compiler service process and the build jobs
// submitted to it.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultbuild/vaultbuild/pkg/compiler/protocol"
)

// Transport defines the interface for starting the compiler service process.
type Transport interface {
	// Execute starts the compiler service and returns its stdin/stdout
	Execute(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, err error)
	// Stop terminates the compiler service process
	Stop(ctx context.Context) error
}

// Client manages communication with one compiler service instance. Build
// submission returns as soon as the job is on the wire; progress and terminal
// results are delivered on the Events and Results channels.
type Client struct {
	transport Transport
	encoder   *protocol.Encoder
	decoder   *protocol.Decoder
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	ready     *protocol.ReadyMessage

	events  chan *protocol.EventMessage
	results chan *protocol.ResultMessage
	done    chan struct{}

	mu      sync.Mutex
	writeMu sync.Mutex
	closed  bool
}

// Config contains client configuration options.
type Config struct {
	Transport      Transport
	StartupTimeout time.Duration
	// ChannelBuffer sizes the event and result channels.
	ChannelBuffer int
}

// NewClient creates a new compiler service client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}
	if cfg.ChannelBuffer == 0 {
		cfg.ChannelBuffer = 64
	}

	return &Client{
		transport: cfg.Transport,
		events:    make(chan *protocol.EventMessage, cfg.ChannelBuffer),
		results:   make(chan *protocol.ResultMessage, cfg.ChannelBuffer),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the compiler service process and waits for its READY
// message, then begins dispatching events in the background.
func (c *Client) Start(ctx context.Context, cfg *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	stdin, stdout, err := c.transport.Execute(ctx)
	if err != nil {
		return fmt.Errorf("failed to start compiler service: %w", err)
	}

	c.stdin = stdin
	c.stdout = stdout
	c.encoder = protocol.NewEncoder(stdin)
	c.decoder = protocol.NewDecoder(stdout)

	// Wait for READY message
	readyCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	readyCh := make(chan *protocol.ReadyMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		msg, err := c.decoder.Decode()
		if err != nil {
			errCh <- err
			return
		}
		if msg.Type != protocol.MessageTypeReady {
			errCh <- fmt.Errorf("expected READY, got %s", msg.Type)
			return
		}
		var ready protocol.ReadyMessage
		if err := protocol.ParseData(msg.Data, &ready); err != nil {
			errCh <- err
			return
		}
		readyCh <- &ready
	}()

	select {
	case <-readyCtx.Done():
		return fmt.Errorf("timeout waiting for READY message")
	case err := <-errCh:
		return fmt.Errorf("failed to receive READY: %w", err)
	case ready := <-readyCh:
		c.ready = ready
	}

	go c.readLoop()
	return nil
}

// StartBuild submits a build job and returns its job identifier without
// waiting for the build to finish. A missing JobID is assigned here.
func (c *Client) StartBuild(ctx context.Context, req *protocol.BuildRequest) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", fmt.Errorf("client is closed")
	}
	c.mu.Unlock()

	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}

	if err := req.Validate(); err != nil {
		return "", err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.encoder.EncodeBuild(req); err != nil {
		return "", fmt.Errorf("failed to send build request: %w", err)
	}

	return req.JobID, nil
}

// CancelBuild asks the compiler service to abort a running job. The job's
// terminal RESULT still arrives on the Results channel.
func (c *Client) CancelBuild(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.encoder.EncodeCancel(&protocol.CancelRequest{JobID: jobID}); err != nil {
		return fmt.Errorf("failed to send cancel request: %w", err)
	}

	return nil
}

// Events returns the channel of progress events across all jobs. The channel
// is closed when the compiler service exits.
func (c *Client) Events() <-chan *protocol.EventMessage {
	return c.events
}

// Results returns the channel of terminal results across all jobs. Protocol
// errors carrying a job ID surface here as failed results. The channel is
// closed when the compiler service exits.
func (c *Client) Results() <-chan *protocol.ResultMessage {
	return c.results
}

// readLoop decodes messages from the compiler service until the stream ends
// and dispatches them to the event and result channels.
func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.results)

	for {
		msg, err := c.decoder.Decode()
		if err != nil {
			return
		}

		switch msg.Type {
		case protocol.MessageTypeEvent:
			var event protocol.EventMessage
			if err := protocol.ParseData(msg.Data, &event); err != nil {
				continue
			}
			select {
			case c.events <- &event:
			case <-c.done:
				return
			}

		case protocol.MessageTypeResult:
			var res protocol.ResultMessage
			if err := protocol.ParseData(msg.Data, &res); err != nil {
				continue
			}
			select {
			case c.results <- &res:
			case <-c.done:
				return
			}

		case protocol.MessageTypeError:
			var errMsg protocol.ErrorMessage
			if err := protocol.ParseData(msg.Data, &errMsg); err != nil {
				continue
			}
			if errMsg.JobID == "" {
				// Service-level errors have no job to attribute.
				continue
			}
			res := &protocol.ResultMessage{
				JobID:   errMsg.JobID,
				Success: false,
				Error:   fmt.Sprintf("%s: %s", errMsg.Code, errMsg.Message),
			}
			select {
			case c.results <- res:
			case <-c.done:
				return
			}

		case protocol.MessageTypeExit:
			return
		}
	}
}

// Ready returns the READY message received during startup.
func (c *Client) Ready() *protocol.ReadyMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Close shuts down the client and the compiler service process.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error

	// Close stdin to signal the service to exit
	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stdin: %w", err))
		}
	}

	if c.stdout != nil {
		if err := c.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stdout: %w", err))
		}
	}

	if err := c.transport.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop compiler service: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
