package printer

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/thereceipt/printbridge/internal/registry"
)

// Descriptor is a validated connection target. Exactly one of USB and Network is set, matching Transport.
type Descriptor struct {
	Transport registry.TransportKind
	USB       *USBTarget
	Network   *NetworkTarget
}

// USBTarget addresses a USB printer
type USBTarget struct {
	// Selector is the profile name; it is matched against the device product
	// string, or used directly when it is a device path such as /dev/usb/lp0
	Selector   string
	Identifier string // Serial number, optional
	VendorID   uint16
	ProductID  uint16
}

// NetworkTarget addresses a raw TCP printer
type NetworkTarget struct {
	Address string
	Port    int
}

// Addr returns host:port
func (n NetworkTarget) Addr() string {
	return net.JoinHostPort(n.Address, strconv.Itoa(n.Port))
}

func (d Descriptor) String() string {
	switch {
	case d.USB != nil:
		if d.USB.VendorID != 0 {
			return fmt.Sprintf("usb:%s (%04x:%04x)", d.USB.Selector, d.USB.VendorID, d.USB.ProductID)
		}
		return "usb:" + d.USB.Selector
	case d.Network != nil:
		return "tcp:" + d.Network.Addr()
	default:
		return string(d.Transport)
	}
}

// Resolve maps a profile to a Descriptor. It never opens a connection.
func Resolve(p registry.Profile) (Descriptor, error) {
	switch p.TransportKind {
	case registry.TransportUSB:
		selector := strings.TrimSpace(p.Name)
		if selector == "" {
			return Descriptor{}, fmt.Errorf("%w: usb printer needs a device name", ErrInvalidConfiguration)
		}
		vid, err := parseUSBID(p.VendorID)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: vendor id: %v", ErrInvalidConfiguration, err)
		}
		pid, err := parseUSBID(p.ProductID)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: product id: %v", ErrInvalidConfiguration, err)
		}
		return Descriptor{
			Transport: registry.TransportUSB,
			USB: &USBTarget{
				Selector:   selector,
				Identifier: strings.TrimSpace(p.USBIdentifier),
				VendorID:   vid,
				ProductID:  pid,
			},
		}, nil

	case registry.TransportNetwork:
		address := strings.TrimSpace(p.NetworkAddress)
		if address == "" {
			return Descriptor{}, fmt.Errorf("%w: network printer needs an address", ErrInvalidConfiguration)
		}
		port := p.NetworkPort
		if port == 0 {
			port = registry.DefaultNetworkPort
		}
		if port < 0 || port > 65535 {
			return Descriptor{}, fmt.Errorf("%w: port %d out of range", ErrInvalidConfiguration, port)
		}
		return Descriptor{
			Transport: registry.TransportNetwork,
			Network:   &NetworkTarget{Address: address, Port: port},
		}, nil

	default:
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedTransport, p.TransportKind)
	}
}

// parseUSBID accepts "04b8", "0x04B8" or an empty string
func parseUSBID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 16-bit hex id", s)
	}
	return uint16(v), nil
}
