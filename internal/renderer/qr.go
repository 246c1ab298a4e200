package renderer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// QRImage draws data as a black-on-white QR code with the given module cell size in dots.
// The result is capped at maxWidth dots by shrinking the cell size; maxWidth <= 0 means no cap.
func QRImage(data string, cell, maxWidth int) (image.Image, error) {
	if data == "" {
		return nil, fmt.Errorf("qr data is empty")
	}
	if cell <= 0 {
		cell = DefaultLayout().QRCellSize
	}

	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	modules := len(qr.Bitmap())
	if maxWidth > 0 {
		for cell > 1 && modules*cell > maxWidth {
			cell--
		}
	}

	// One dot per module, then scale up without smoothing so modules stay square
	base := qr.Image(modules)
	size := modules * cell
	return imaging.Resize(base, size, size, imaging.NearestNeighbor), nil
}

// PaperWidthToPixels maps a paper width to printable dots at 203 dpi
func PaperWidthToPixels(width string) int {
	switch width {
	case "58mm":
		return 384
	case "80mm":
		return 576
	case "112mm":
		return 832
	default:
		return 576 // Default to 80mm
	}
}
