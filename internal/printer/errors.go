package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidConfiguration is returned when a profile lacks the fields its transport needs
	ErrInvalidConfiguration = errors.New("invalid printer configuration")

	// ErrUnsupportedTransport is returned for transport kinds no driver handles
	ErrUnsupportedTransport = errors.New("unsupported transport")

	// ErrConnectionTimeout is returned when a connection is not established in time
	ErrConnectionTimeout = errors.New("connection timed out")

	// ErrUnreachable is returned when the device refuses the connection or cannot be found
	ErrUnreachable = errors.New("printer unreachable")

	// ErrNotResponding is returned when the device fails its status probe
	ErrNotResponding = errors.New("printer not responding")

	// ErrTransmission is returned when sending the command stream fails
	ErrTransmission = errors.New("transmission error")

	// ErrSessionState is returned when a session operation is called out of order
	ErrSessionState = errors.New("invalid session state")
)

// Error codes reported to clients
const (
	CodeInvalidConfiguration = "invalid_configuration"
	CodeUnsupportedTransport = "unsupported_transport"
	CodeConnectionTimeout    = "connection_timeout"
	CodeUnreachable          = "unreachable"
	CodeNotResponding        = "not_responding"
	CodeTransmission         = "transmission_error"
	CodeSessionState         = "session_state"
)

// ErrorCode maps an error from this package to its client code, or "" if unknown
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfiguration):
		return CodeInvalidConfiguration
	case errors.Is(err, ErrUnsupportedTransport):
		return CodeUnsupportedTransport
	case errors.Is(err, ErrConnectionTimeout):
		return CodeConnectionTimeout
	case errors.Is(err, ErrUnreachable):
		return CodeUnreachable
	case errors.Is(err, ErrNotResponding):
		return CodeNotResponding
	case errors.Is(err, ErrTransmission):
		return CodeTransmission
	case errors.Is(err, ErrSessionState):
		return CodeSessionState
	default:
		return ""
	}
}

// IsDeviceError reports whether err came from talking to the device rather than from configuration
func IsDeviceError(err error) bool {
	switch ErrorCode(err) {
	case CodeConnectionTimeout, CodeUnreachable, CodeNotResponding, CodeTransmission:
		return true
	}
	return false
}

// classifyConnectError sorts a driver error into timeout or unreachable
func classifyConnectError(ctx context.Context, err error) error {
	if errors.Is(err, ErrConnectionTimeout) || errors.Is(err, ErrUnreachable) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrConnectionTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
}
