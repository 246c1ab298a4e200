package printer

import (
	"fmt"

	"github.com/thereceipt/printbridge/internal/registry"
	"golang.org/x/text/encoding/charmap"
)

// QRMode is how a dialect prints QR codes
type QRMode int

const (
	// QRNative uses the ESC/POS GS ( k symbol commands
	QRNative QRMode = iota
	// QRStarLine uses the Star line mode ESC GS y commands
	QRStarLine
	// QRRaster sends the code as a GS v 0 raster image
	QRRaster
)

// Dialect holds the per-kind constants the encoder needs
type Dialect struct {
	Kind     registry.Kind
	Columns  int // characters per line in font A at normal width
	Dots     int // printable dots per line
	QR       QRMode
	CodePage *charmap.Charmap
}

var dialects = map[registry.Kind]Dialect{
	registry.KindEpson:   {Kind: registry.KindEpson, Columns: 48, Dots: 576, QR: QRNative, CodePage: charmap.CodePage437},
	registry.KindStar:    {Kind: registry.KindStar, Columns: 48, Dots: 576, QR: QRStarLine, CodePage: charmap.CodePage437},
	registry.KindGeneric: {Kind: registry.KindGeneric, Columns: 32, Dots: 384, QR: QRRaster, CodePage: charmap.CodePage437},
}

// DialectFor returns the dialect of a printer kind
func DialectFor(kind registry.Kind) (Dialect, error) {
	d, ok := dialects[kind]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: unknown printer kind %q", ErrInvalidConfiguration, kind)
	}
	return d, nil
}

// StatusQuery is a real-time status request and the check applied to its one-byte reply
type StatusQuery struct {
	Request []byte
	Accept  func(reply byte) error
}

// StatusQuery returns the liveness probe for this dialect
func (d Dialect) StatusQuery() StatusQuery {
	if d.Kind == registry.KindStar {
		// ESC ACK SOH: automatic status, first byte is the header
		return StatusQuery{
			Request: []byte{ESC, 0x06, 0x01},
			Accept: func(reply byte) error {
				if reply&0x01 == 0 {
					return fmt.Errorf("unexpected status header 0x%02x", reply)
				}
				return nil
			},
		}
	}

	// DLE EOT 1: printer status
	return StatusQuery{
		Request: []byte{DLE, EOT, 0x01},
		Accept: func(reply byte) error {
			if reply&0x93 != 0x12 {
				return fmt.Errorf("unexpected status byte 0x%02x", reply)
			}
			if reply&0x08 != 0 {
				return fmt.Errorf("printer is offline (status 0x%02x)", reply)
			}
			return nil
		},
	}
}
