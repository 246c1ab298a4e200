// Package registry stores printer profiles and owns the default-printer invariant
package registry

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the command dialect of a printer
type Kind string

const (
	KindEpson   Kind = "EPSON"
	KindStar    Kind = "STAR"
	KindGeneric Kind = "GENERIC"
)

// TransportKind selects how a printer is reached
type TransportKind string

const (
	TransportUSB     TransportKind = "USB"
	TransportNetwork TransportKind = "NETWORK"
)

// DefaultNetworkPort is the raw printing port used by most network printers
const DefaultNetworkPort = 9100

// Kinds lists every supported dialect
var Kinds = []Kind{KindEpson, KindStar, KindGeneric}

// TransportKinds lists every supported transport
var TransportKinds = []TransportKind{TransportUSB, TransportNetwork}

// ParseKind accepts any casing of a known kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidProfile, s)
}

// ParseTransportKind accepts any casing of a known transport
func ParseTransportKind(s string) (TransportKind, error) {
	t := TransportKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range TransportKinds {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown transport kind %q", ErrInvalidProfile, s)
}

// Profile is a stored printer configuration. For USB profiles Name is also the device selector.
type Profile struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Name           string        `gorm:"size:255;not null" json:"name"`
	Kind           Kind          `gorm:"size:16;not null" json:"kind"`
	TransportKind  TransportKind `gorm:"size:16;not null" json:"transportKind"`
	USBIdentifier  string        `gorm:"size:255" json:"usbIdentifier,omitempty"`
	VendorID       string        `gorm:"size:16" json:"vendorId,omitempty"`
	ProductID      string        `gorm:"size:16" json:"productId,omitempty"`
	NetworkAddress string        `gorm:"size:255" json:"networkAddress,omitempty"`
	NetworkPort    int           `gorm:"not null" json:"networkPort"`
	IsDefault      bool          `gorm:"not null" json:"isDefault"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (Profile) TableName() string {
	return "printer_profiles"
}

// Label is a short human readable description used in logs
func (p Profile) Label() string {
	return fmt.Sprintf("#%d %s (%s/%s)", p.ID, p.Name, p.Kind, p.TransportKind)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name           *string        `json:"name,omitempty"`
	Kind           *Kind          `json:"kind,omitempty"`
	TransportKind  *TransportKind `json:"transportKind,omitempty"`
	USBIdentifier  *string        `json:"usbIdentifier,omitempty"`
	VendorID       *string        `json:"vendorId,omitempty"`
	ProductID      *string        `json:"productId,omitempty"`
	NetworkAddress *string        `json:"networkAddress,omitempty"`
	NetworkPort    *int           `json:"networkPort,omitempty"`
	IsDefault      *bool          `json:"isDefault,omitempty"`
}

func (pt Patch) apply(p *Profile) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Kind != nil {
		p.Kind = *pt.Kind
	}
	if pt.TransportKind != nil {
		p.TransportKind = *pt.TransportKind
	}
	if pt.USBIdentifier != nil {
		p.USBIdentifier = *pt.USBIdentifier
	}
	if pt.VendorID != nil {
		p.VendorID = *pt.VendorID
	}
	if pt.ProductID != nil {
		p.ProductID = *pt.ProductID
	}
	if pt.NetworkAddress != nil {
		p.NetworkAddress = *pt.NetworkAddress
	}
	if pt.NetworkPort != nil {
		p.NetworkPort = *pt.NetworkPort
	}
	if pt.IsDefault != nil {
		p.IsDefault = *pt.IsDefault
	}
}

// applyDefaults fills the creation-time defaults
func applyDefaults(p *Profile) {
	if strings.TrimSpace(string(p.Kind)) == "" {
		p.Kind = KindEpson
	}
	if strings.TrimSpace(string(p.TransportKind)) == "" {
		p.TransportKind = TransportUSB
	}
	if p.NetworkPort == 0 {
		p.NetworkPort = DefaultNetworkPort
	}
}

// validate normalizes enum casing and rejects values outside the closed sets
func validate(p *Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	kind, err := ParseKind(string(p.Kind))
	if err != nil {
		return err
	}
	p.Kind = kind

	transport, err := ParseTransportKind(string(p.TransportKind))
	if err != nil {
		return err
	}
	p.TransportKind = transport

	if p.NetworkPort < 0 || p.NetworkPort > 65535 {
		return fmt.Errorf("%w: network port %d out of range", ErrInvalidProfile, p.NetworkPort)
	}

	p.NetworkAddress = strings.TrimSpace(p.NetworkAddress)
	p.VendorID = strings.TrimSpace(p.VendorID)
	p.ProductID = strings.TrimSpace(p.ProductID)
	return nil
}
