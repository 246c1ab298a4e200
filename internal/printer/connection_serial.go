package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tarm/serial"
)

// DefaultSerialBaud is the baud rate most thermal printers ship with
const DefaultSerialBaud = 9600

// openSerial opens a serial port, such as a USB-serial adapter
func openSerial(device string, baud int) (*StreamConnection, error) {
	if baud == 0 {
		baud = DefaultSerialBaud
	}

	config := &serial.Config{
		Name: device,
		Baud: baud,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return NewStreamConnection(port), nil
}

// openLinePrinter opens a kernel printer device such as /dev/usb/lp0
func openLinePrinter(path string) (*StreamConnection, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		// Some usblp nodes are write only
		f, err = os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open printer device: %w", err)
		}
	}
	return NewStreamConnection(f), nil
}

// StreamConnection drives a printer over a byte stream that has no deadlines.
// Blocked I/O is abandoned by closing the stream when ctx is done.
type StreamConnection struct {
	rw     io.ReadWriteCloser
	mu     sync.Mutex
	closed bool
}

// NewStreamConnection wraps rw
func NewStreamConnection(rw io.ReadWriteCloser) *StreamConnection {
	return &StreamConnection{rw: rw}
}

// Write sends data to the printer
func (c *StreamConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, os.ErrClosed
	}
	return c.do(ctx, func() (int, error) {
		return c.rw.Write(data)
	})
}

// Status writes the query and reads a single status byte
func (c *StreamConnection) Status(ctx context.Context, q StatusQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return os.ErrClosed
	}
	if _, err := c.do(ctx, func() (int, error) { return c.rw.Write(q.Request) }); err != nil {
		return fmt.Errorf("failed to send status request: %w", err)
	}

	var reply [1]byte
	if _, err := c.do(ctx, func() (int, error) { return io.ReadFull(c.rw, reply[:]) }); err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	return q.Accept(reply[0])
}

func (c *StreamConnection) do(ctx context.Context, fn func() (int, error)) (int, error) {
	type result struct {
		n   int
		err error
	}

	done := make(chan result, 1)
	go func() {
		n, err := fn()
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		// Unblocks fn; the stream is unusable afterwards
		c.closed = true
		_ = c.rw.Close()
		return 0, ctx.Err()
	}
}

// Close closes the stream
func (c *StreamConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.rw.Close()
}
