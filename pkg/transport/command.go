package transport

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
)

// processExitTimeout is how long Close waits for the server to exit after its
// stdin is closed before killing it
const processExitTimeout = 2 * time.Second

// CommandTransport runs an MCP server as a child process and speaks
// newline-delimited JSON over its stdin and stdout.
type CommandTransport struct {
	*StdioTransport

	cmd   *exec.Cmd
	stdin io.WriteCloser

	startMu   sync.Mutex
	running   bool
	closeOnce sync.Once
	closeErr  error
	exited    chan struct{}
}

// NewCommandTransport wraps cmd. The process is started by Start.
func NewCommandTransport(cmd *exec.Cmd) (*CommandTransport, error) {
	return newCommandFromCmd(cmd, defaultMaxMessageSize, defaultReceiveBuffer)
}

// newCommandTransport creates a command transport from config
func newCommandTransport(config TransportConfig) (*CommandTransport, error) {
	cmd := exec.Command(config.Command, config.Args...)
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	cmd.Dir = config.Dir
	cmd.Stderr = config.Stderr

	return newCommandFromCmd(cmd, config.Performance.MaxMessageSize, config.Performance.ReceiveBuffer)
}

func newCommandFromCmd(cmd *exec.Cmd, maxMessageSize, receiveBuffer int) (*CommandTransport, error) {
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, mcperrors.ConnectionFailed("command", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, mcperrors.ConnectionFailed("command", err)
	}

	return &CommandTransport{
		StdioTransport: newStdio("command", stdout, stdin, maxMessageSize, receiveBuffer),
		cmd:            cmd,
		stdin:          stdin,
		exited:         make(chan struct{}),
	}, nil
}

// Start launches the server process and begins reading its output
func (t *CommandTransport) Start(ctx context.Context) error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	if !t.running {
		if err := t.cmd.Start(); err != nil {
			return mcperrors.ConnectionFailed("command", err)
		}
		t.running = true

		go func() {
			// Wait also closes the stdout pipe, which ends the reader with io.EOF
			_ = t.cmd.Wait()
			close(t.exited)
		}()
	}

	return t.StdioTransport.Start(ctx)
}

// Close closes the server's stdin and waits briefly for it to exit before killing it
func (t *CommandTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.StdioTransport.Close()
		_ = t.stdin.Close()

		t.startMu.Lock()
		running := t.running
		t.startMu.Unlock()
		if !running {
			return
		}

		select {
		case <-t.exited:
		case <-time.After(processExitTimeout):
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
			<-t.exited
		}
	})
	return t.closeErr
}

// Pid returns the server process id, or 0 before Start
func (t *CommandTransport) Pid() int {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	if !t.running || t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
