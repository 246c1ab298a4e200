package printer

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// NetworkDriver opens raw TCP connections (port 9100 style)
type NetworkDriver struct {
	Dialer net.Dialer
}

// Open connects to a network printer
func (d *NetworkDriver) Open(ctx context.Context, desc Descriptor) (PrinterConnection, error) {
	if desc.Network == nil {
		return nil, fmt.Errorf("%w: missing network target", ErrInvalidConfiguration)
	}

	conn, err := d.Dialer.DialContext(ctx, "tcp", desc.Network.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{conn: conn}, nil
}

// NetworkConnection represents a network printer connection
type NetworkConnection struct {
	conn net.Conn
	mu   sync.Mutex
}

// Write sends data to the network printer
func (c *NetworkConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, net.ErrClosed
	}
	stop := c.bind(ctx)
	defer stop()

	n, err := c.conn.Write(data)
	if err != nil && ctx.Err() != nil {
		return n, ctx.Err()
	}
	return n, err
}

// Status writes the query and reads a single status byte
func (c *NetworkConnection) Status(ctx context.Context, q StatusQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return net.ErrClosed
	}
	stop := c.bind(ctx)
	defer stop()

	if _, err := c.conn.Write(q.Request); err != nil {
		return fmt.Errorf("failed to send status request: %w", err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(c.conn, reply[:]); err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	return q.Accept(reply[0])
}

// bind applies the ctx deadline to the socket and aborts blocked I/O on cancel
func (c *NetworkConnection) bind(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}
}

// Close closes the network connection
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}
