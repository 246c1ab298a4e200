package printer

import (
	"errors"
	"testing"

	"github.com/thereceipt/printbridge/internal/registry"
)

func TestResolve_Network(t *testing.T) {
	d, err := Resolve(registry.Profile{
		Name:           "kitchen",
		TransportKind:  registry.TransportNetwork,
		NetworkAddress: " 192.168.1.50 ",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Network == nil || d.USB != nil {
		t.Fatalf("Expected network descriptor, got %+v", d)
	}
	if d.Network.Port != 9100 {
		t.Errorf("Expected default port 9100, got %d", d.Network.Port)
	}
	if d.Network.Addr() != "192.168.1.50:9100" {
		t.Errorf("Unexpected address %s", d.Network.Addr())
	}
}

func TestResolve_NetworkEmptyAddress(t *testing.T) {
	_, err := Resolve(registry.Profile{
		Name:          "kitchen",
		TransportKind: registry.TransportNetwork,
		NetworkPort:   9100,
	})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestResolve_USB(t *testing.T) {
	d, err := Resolve(registry.Profile{
		Name:          "TM-T20II",
		TransportKind: registry.TransportUSB,
		VendorID:      "0x04B8",
		ProductID:     "0e15",
		USBIdentifier: "SN123",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.USB == nil {
		t.Fatal("Expected usb descriptor")
	}
	if d.USB.VendorID != 0x04b8 || d.USB.ProductID != 0x0e15 {
		t.Errorf("Unexpected ids %04x:%04x", d.USB.VendorID, d.USB.ProductID)
	}
	if d.USB.Selector != "TM-T20II" || d.USB.Identifier != "SN123" {
		t.Errorf("Unexpected target %+v", d.USB)
	}
}

func TestResolve_USBInvalid(t *testing.T) {
	tests := []struct {
		name    string
		profile registry.Profile
	}{
		{"empty name", registry.Profile{TransportKind: registry.TransportUSB}},
		{"bad vendor", registry.Profile{Name: "x", TransportKind: registry.TransportUSB, VendorID: "epson"}},
		{"product too large", registry.Profile{Name: "x", TransportKind: registry.TransportUSB, ProductID: "0x10000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(tt.profile); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestResolve_UnsupportedTransport(t *testing.T) {
	_, err := Resolve(registry.Profile{Name: "x", TransportKind: "SERIAL"})
	if !errors.Is(err, ErrUnsupportedTransport) {
		t.Errorf("Expected ErrUnsupportedTransport, got %v", err)
	}
	if ErrorCode(err) != CodeUnsupportedTransport {
		t.Errorf("Unexpected code %q", ErrorCode(err))
	}
}
