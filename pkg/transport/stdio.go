package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

const (
	defaultMaxMessageSize = 10 * 1024 * 1024
	defaultReceiveBuffer  = 64
)

// inbound is one decoded frame, or the reason it could not be decoded
type inbound struct {
	msg *protocol.Message
	err error
}

// StdioTransport speaks newline-delimited JSON over a reader and a writer.
// This is the transport MCP uses for servers launched as local processes.
type StdioTransport struct {
	name           string
	reader         io.Reader
	rawWriter      *bufio.Writer
	maxMessageSize int

	mutex    sync.Mutex // serializes writes
	incoming chan inbound
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	group     *errgroup.Group

	errMu   sync.Mutex
	termErr error
}

// NewStdioTransport creates a transport reading frames from r and writing frames to w
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	return newStdio("stdio", r, w, defaultMaxMessageSize, defaultReceiveBuffer)
}

// newStdioTransport creates a new Stdio transport from config
func newStdioTransport(config TransportConfig) *StdioTransport {
	reader := config.StdioReader
	writer := config.StdioWriter

	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return newStdio("stdio", reader, writer, config.Performance.MaxMessageSize, config.Performance.ReceiveBuffer)
}

func newStdio(name string, r io.Reader, w io.Writer, maxMessageSize, receiveBuffer int) *StdioTransport {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	if receiveBuffer <= 0 {
		receiveBuffer = defaultReceiveBuffer
	}

	return &StdioTransport{
		name:           name,
		reader:         r,
		rawWriter:      bufio.NewWriter(w),
		maxMessageSize: maxMessageSize,
		incoming:       make(chan inbound, receiveBuffer),
		done:           make(chan struct{}),
		started:        make(chan struct{}),
	}
}

// Name implements Named
func (t *StdioTransport) Name() string {
	return t.name
}

// Start launches the reader goroutines. It returns immediately.
func (t *StdioTransport) Start(ctx context.Context) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	t.startOnce.Do(func() {
		g, gctx := errgroup.WithContext(ctx)
		t.group = g

		scannerDone := make(chan struct{})

		g.Go(func() error {
			defer close(t.incoming)
			defer close(scannerDone)
			return t.readLoop(gctx)
		})

		// Closing the reader is the only way to unblock a pending Scan
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-t.done:
			case <-scannerDone:
				return nil
			}
			if closer, ok := t.reader.(io.Closer); ok {
				_ = closer.Close()
			}
			return nil
		})

		close(t.started)
	})
	return nil
}

func (t *StdioTransport) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, min(64*1024, t.maxMessageSize)), t.maxMessageSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// Copy the line to avoid it being overwritten by the next Scan
		data := make([]byte, len(line))
		copy(data, line)

		in := inbound{}
		if msg, err := protocol.DecodeMessage(data); err != nil {
			in.err = &MalformedMessageError{Data: data, Err: err}
		} else {
			in.msg = msg
		}

		select {
		case t.incoming <- in:
		case <-t.done:
			t.setTermErr(ErrClosed)
			return nil
		case <-ctx.Done():
			t.setTermErr(ctx.Err())
			return ctx.Err()
		}
	}

	select {
	case <-t.done:
		t.setTermErr(ErrClosed)
		return nil
	case <-ctx.Done():
		t.setTermErr(ctx.Err())
		return nil
	default:
	}

	if err := scanner.Err(); err != nil {
		t.setTermErr(err)
		return mcperrors.WrapError(err, mcperrors.CodeConnectionLost, t.name+" read failed",
			mcperrors.CategoryTransport, mcperrors.SeverityCritical)
	}
	t.setTermErr(io.EOF)
	return nil
}

// Receive returns the next decoded message
func (t *StdioTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case <-t.started:
	default:
		return nil, ErrNotStarted
	}

	select {
	case in, ok := <-t.incoming:
		if !ok {
			return nil, t.terminalErr()
		}
		if in.err != nil {
			return nil, in.err
		}
		return in.msg, nil
	case <-t.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes one message followed by a newline and flushes
func (t *StdioTransport) Send(ctx context.Context, msg *protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	if _, err := t.rawWriter.Write(data); err != nil {
		return mcperrors.MessageSendError(t.name, msg.Method, err)
	}
	if err := t.rawWriter.WriteByte('\n'); err != nil {
		return mcperrors.MessageSendError(t.name, msg.Method, err)
	}
	if err := t.rawWriter.Flush(); err != nil {
		return mcperrors.MessageSendError(t.name, msg.Method, err)
	}
	return nil
}

// Close stops the reader and flushes pending output. It does not wait for the
// reader goroutine when the underlying reader cannot be closed.
func (t *StdioTransport) Close() error {
	var flushErr error

	t.stopOnce.Do(func() {
		close(t.done)

		t.mutex.Lock()
		flushErr = t.rawWriter.Flush()
		t.mutex.Unlock()

		if closer, ok := t.reader.(io.Closer); ok {
			_ = closer.Close()
		}
	})

	if flushErr != nil {
		return mcperrors.MessageSendError(t.name, "flush", flushErr)
	}
	return nil
}

// Wait blocks until the reader goroutines have exited
func (t *StdioTransport) Wait() error {
	select {
	case <-t.started:
		return t.group.Wait()
	default:
		return nil
	}
}

func (t *StdioTransport) setTermErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.termErr == nil {
		t.termErr = err
	}
}

func (t *StdioTransport) terminalErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.termErr == nil {
		return io.EOF
	}
	return t.termErr
}
