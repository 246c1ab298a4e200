// Package printer handles printer connections, sessions and the ESC/POS command set
package printer

import (
	"context"
	"fmt"

	"github.com/thereceipt/printbridge/internal/registry"
	"go.uber.org/zap"
)

// PrinterConnection is a unified interface for all transports
type PrinterConnection interface {
	// Write sends data to the printer, giving up when ctx is done
	Write(ctx context.Context, data []byte) (int, error)
	// Status sends q.Request and checks the first reply byte with q.Accept
	Status(ctx context.Context, q StatusQuery) error
	Close() error
}

// Driver opens connections for one transport kind
type Driver interface {
	Open(ctx context.Context, desc Descriptor) (PrinterConnection, error)
}

// DriverFunc adapts a function to the Driver interface
type DriverFunc func(ctx context.Context, desc Descriptor) (PrinterConnection, error)

// Open calls f
func (f DriverFunc) Open(ctx context.Context, desc Descriptor) (PrinterConnection, error) {
	return f(ctx, desc)
}

// Drivers maps transport kinds to drivers
type Drivers map[registry.TransportKind]Driver

// DefaultDrivers returns the USB and network drivers
func DefaultDrivers(serialBaud int, log *zap.Logger) Drivers {
	return Drivers{
		registry.TransportUSB:     &USBDriver{SerialBaud: serialBaud, log: log},
		registry.TransportNetwork: &NetworkDriver{},
	}
}

// For returns the driver for desc
func (d Drivers) For(desc Descriptor) (Driver, error) {
	drv, ok := d[desc.Transport]
	if !ok || drv == nil {
		return nil, fmt.Errorf("%w: no driver for %q", ErrUnsupportedTransport, desc.Transport)
	}
	return drv, nil
}
