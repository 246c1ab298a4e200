package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thereceipt/printbridge/internal/renderer"
	"go.uber.org/zap"
)

// SessionState is the lifecycle state of a Session
type SessionState int

const (
	StateCreated SessionState = iota
	StateConnected
	StateTransmitting
	StateCompleted
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateTransmitting:
		return "transmitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionOptions bounds the blocking steps of a session
type SessionOptions struct {
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
	WriteTimeout   time.Duration
}

// DefaultSessionOptions returns the stock timeouts
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ConnectTimeout: 5 * time.Second,
		ProbeTimeout:   2 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

func (o SessionOptions) withDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// Session is one exclusive conversation with a printer:
// Open, CheckHealth, Transmit, then Close.
type Session struct {
	driver  Driver
	desc    Descriptor
	dialect Dialect
	opts    SessionOptions
	log     *zap.Logger

	mu      sync.Mutex
	state   SessionState
	healthy bool
	conn    PrinterConnection
	err     error
	closed  bool
}

// NewSession creates a session in the Created state
func NewSession(driver Driver, desc Descriptor, dialect Dialect, opts SessionOptions, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		driver:  driver,
		desc:    desc,
		dialect: dialect,
		opts:    opts.withDefaults(),
		log:     log.With(zap.Stringer("target", desc)),
		state:   StateCreated,
	}
}

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open connects to the printer within ConnectTimeout
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated || s.closed {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: open in state %s", ErrSessionState, state)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := s.driver.Open(ctx, s.desc)
	if err != nil {
		err = classifyConnectError(ctx, err)
		s.log.Warn("Failed to connect to printer", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return fmt.Errorf("%w: session closed while connecting", ErrSessionState)
	}
	s.conn = conn
	s.state = StateConnected
	s.log.Debug("Connected to printer", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// CheckHealth sends the dialect status query and waits up to ProbeTimeout for a valid reply
func (s *Session) CheckHealth(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: health check in state %s", ErrSessionState, state)
	}
	conn := s.conn
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	if err := conn.Status(ctx, s.dialect.StatusQuery()); err != nil {
		s.log.Warn("Printer failed health check", zap.Error(err))
		return s.fail(fmt.Errorf("%w: %w", ErrNotResponding, err))
	}

	s.mu.Lock()
	s.healthy = true
	s.mu.Unlock()
	return nil
}

// Transmit encodes seq for the session dialect and writes it within WriteTimeout.
// The session must be connected and have passed CheckHealth.
func (s *Session) Transmit(ctx context.Context, seq renderer.Sequence) error {
	s.mu.Lock()
	if s.state != StateConnected || !s.healthy {
		state, healthy := s.state, s.healthy
		s.mu.Unlock()
		return fmt.Errorf("%w: transmit in state %s (healthy=%t)", ErrSessionState, state, healthy)
	}
	s.state = StateTransmitting
	conn := s.conn
	s.mu.Unlock()

	data, err := Encode(seq, s.dialect)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrTransmission, err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	n, err := conn.Write(ctx, data)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrTransmission, err))
	}
	if n != len(data) {
		return s.fail(fmt.Errorf("%w: short write (%d of %d bytes)", ErrTransmission, n, len(data)))
	}

	s.mu.Lock()
	s.state = StateCompleted
	s.mu.Unlock()
	s.log.Debug("Transmitted receipt", zap.Int("bytes", n), zap.Int("commands", seq.Len()))
	return nil
}

// Close releases the connection. It is safe to call more than once and in any state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		s.log.Debug("Failed to close printer connection", zap.Error(err))
	}
	return err
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.healthy = false
	s.err = err
	return err
}
