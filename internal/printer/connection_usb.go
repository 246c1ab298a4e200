package printer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// USB printer class GET_PORT_STATUS bits
const (
	portStatusNotError   = 0x08
	portStatusPaperEmpty = 0x20
)

var comPort = regexp.MustCompile(`(?i)^COM\d+$`)

// USBDriver opens USB printers. Selectors that are device paths are opened
// directly; anything else is looked up on the bus with libusb.
type USBDriver struct {
	SerialBaud int
	log        *zap.Logger
}

// Open connects to a USB printer
func (d *USBDriver) Open(ctx context.Context, desc Descriptor) (PrinterConnection, error) {
	if desc.USB == nil {
		return nil, fmt.Errorf("%w: missing usb target", ErrInvalidConfiguration)
	}
	target := *desc.USB

	type result struct {
		conn PrinterConnection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := d.open(target)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		// Release the device if the open finishes later
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (d *USBDriver) open(t USBTarget) (PrinterConnection, error) {
	sel := t.Selector
	switch {
	case strings.HasPrefix(sel, "/dev/usb/lp"), strings.HasPrefix(sel, "/dev/lp"):
		return openLinePrinter(sel)
	case strings.HasPrefix(sel, "/dev/tty"), strings.HasPrefix(sel, "/dev/cu."), comPort.MatchString(sel):
		return openSerial(sel, d.SerialBaud)
	default:
		return d.openBus(t)
	}
}

// openBus finds the device on the USB bus and claims its printer interface
func (d *USBDriver) openBus(t USBTarget) (conn *USBConnection, err error) {
	gctx := gousb.NewContext()
	defer func() {
		if err != nil {
			gctx.Close()
		}
	}()

	devs, openErr := gctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if t.VendorID != 0 {
			return uint16(desc.Vendor) == t.VendorID && (t.ProductID == 0 || uint16(desc.Product) == t.ProductID)
		}
		return isPrinterClass(desc)
	})
	if openErr != nil && len(devs) == 0 {
		return nil, fmt.Errorf("%w: failed to open usb devices: %w", ErrUnreachable, openErr)
	}

	dev := d.pick(devs, t)
	for _, other := range devs {
		if other != dev {
			other.Close()
		}
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: usb printer %q not found", ErrUnreachable, t.Selector)
	}

	conn, err = claim(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	conn.gctx = gctx
	return conn, nil
}

// pick chooses the device matching the target: by serial number when an identifier is set,
// else the first VID/PID match, else by product string
func (d *USBDriver) pick(devs []*gousb.Device, t USBTarget) *gousb.Device {
	for _, dev := range devs {
		if t.Identifier != "" {
			serial, err := dev.SerialNumber()
			if err == nil && strings.EqualFold(strings.TrimSpace(serial), t.Identifier) {
				return dev
			}
			continue
		}
		if t.VendorID != 0 {
			return dev
		}
		product, err := dev.Product()
		if err != nil {
			if d.log != nil {
				d.log.Debug("Failed to read usb product string", zap.String("device", dev.String()), zap.Error(err))
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(product), t.Selector) {
			return dev
		}
	}
	return nil
}

func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// claim takes the printer-class interface and its OUT endpoint, falling back to the default interface
func claim(dev *gousb.Device) (*USBConnection, error) {
	_ = dev.SetAutoDetach(true)

	cfgNum, err := dev.ActiveConfigNum()
	if err == nil && cfgNum > 0 {
		if cfgDesc, ok := dev.Desc.Configs[cfgNum]; ok {
			for _, ifaceDesc := range cfgDesc.Interfaces {
				for _, alt := range ifaceDesc.AltSettings {
					if alt.Class != gousb.ClassPrinter {
						continue
					}
					cfg, err := dev.Config(cfgNum)
					if err != nil {
						continue
					}
					iface, err := cfg.Interface(alt.Number, alt.Alternate)
					if err != nil {
						cfg.Close()
						continue
					}
					if ep := outEndpoint(iface); ep != nil {
						return &USBConnection{device: dev, config: cfg, iface: iface, endpoint: ep}, nil
					}
					iface.Close()
					cfg.Close()
				}
			}
		}
	}

	iface, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to claim usb interface: %w", ErrUnreachable, err)
	}
	ep := outEndpoint(iface)
	if ep == nil {
		done()
		return nil, fmt.Errorf("%w: no OUT endpoint on usb printer", ErrUnreachable)
	}
	return &USBConnection{device: dev, iface: iface, endpoint: ep, release: done}, nil
}

func outEndpoint(iface *gousb.Interface) *gousb.OutEndpoint {
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			ep, err := iface.OutEndpoint(epDesc.Number)
			if err == nil {
				return ep
			}
		}
	}
	return nil
}

// USBConnection represents a USB printer connection
type USBConnection struct {
	gctx     *gousb.Context
	device   *gousb.Device
	config   *gousb.Config
	iface    *gousb.Interface
	endpoint *gousb.OutEndpoint
	release  func()
	mu       sync.Mutex
}

// Write sends data to the USB printer
func (c *USBConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endpoint == nil {
		return 0, errors.New("usb connection is closed")
	}
	return c.endpoint.WriteContext(ctx, data)
}

// Status issues the printer class GET_PORT_STATUS request.
// The dialect query is not used because many USB printers expose no IN endpoint.
func (c *USBConnection) Status(ctx context.Context, _ StatusQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return errors.New("usb connection is closed")
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.device.ControlTimeout = time.Until(deadline)
	}

	buf := make([]byte, 1)
	if _, err := c.device.Control(0xA1, 0x01, 0, uint16(c.iface.Setting.Number), buf); err != nil {
		return fmt.Errorf("failed to read port status: %w", err)
	}
	if buf[0]&portStatusNotError == 0 {
		return fmt.Errorf("printer reports an error (port status 0x%02x)", buf[0])
	}
	if buf[0]&portStatusPaperEmpty != 0 {
		return fmt.Errorf("printer is out of paper (port status 0x%02x)", buf[0])
	}
	return nil
}

// Close closes the USB connection
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.release != nil {
		c.release()
		c.release = nil
	} else if c.iface != nil {
		c.iface.Close()
	}
	if c.config != nil {
		c.config.Close()
	}
	c.iface, c.config, c.endpoint = nil, nil, nil

	var err error
	if c.device != nil {
		err = c.device.Close()
		c.device = nil
	}
	if c.gctx != nil {
		if cerr := c.gctx.Close(); err == nil {
			err = cerr
		}
		c.gctx = nil
	}
	return err
}
