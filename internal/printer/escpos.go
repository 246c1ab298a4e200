package printer

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/renderer"
	"golang.org/x/text/encoding"
)

// Control bytes
const (
	DLE byte = 0x10
	EOT byte = 0x04
	ESC byte = 0x1B
	GS  byte = 0x1D
	FS  byte = 0x1C
	LF  byte = 0x0A
)

// Encoder turns commands into bytes for one dialect
type Encoder struct {
	dialect Dialect
	buffer  *bytes.Buffer
	text    *encoding.Encoder

	widthMul int
}

// NewEncoder creates a new encoder for d
func NewEncoder(d Dialect) *Encoder {
	return &Encoder{
		dialect:  d,
		buffer:   new(bytes.Buffer),
		text:     encoding.ReplaceUnsupported(d.CodePage.NewEncoder()),
		widthMul: 1,
	}
}

// Encode serializes seq for dialect d, including the initialize prefix
func Encode(seq renderer.Sequence, d Dialect) ([]byte, error) {
	e := NewEncoder(d)
	e.Initialize()
	for i := 0; i < seq.Len(); i++ {
		cmd := seq.At(i)
		if err := e.Command(cmd); err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
		}
	}
	return e.GetBytes(), nil
}

// Command appends one command
func (e *Encoder) Command(cmd renderer.Command) error {
	switch cmd.Op {
	case renderer.OpAlign:
		e.SetAlignment(cmd.Align)
	case renderer.OpBold:
		e.SetBold(cmd.Bold)
	case renderer.OpTextSize:
		e.SetTextSize(cmd.Width, cmd.Height)
	case renderer.OpPrintln:
		return e.Println(cmd.Text)
	case renderer.OpDrawLine:
		return e.Println(strings.Repeat("-", e.LineWidth()))
	case renderer.OpTableRow:
		return e.Println(LayoutRow(cmd.Columns, e.LineWidth()))
	case renderer.OpPrintQR:
		return e.PrintQR(cmd.QRData, cmd.QRCell)
	case renderer.OpCut:
		e.Cut()
	default:
		return fmt.Errorf("unsupported command: %s", cmd.Op)
	}
	return nil
}

// Initialize resets the printer and selects the code page
func (e *Encoder) Initialize() {
	e.buffer.Write([]byte{ESC, '@'})
	if e.dialect.Kind == registry.KindStar {
		e.buffer.Write([]byte{ESC, GS, 't', 1}) // PC437
	} else {
		e.buffer.Write([]byte{ESC, 't', 0}) // PC437
	}
	e.widthMul = 1
}

// LineWidth is the number of characters that fit at the current text width
func (e *Encoder) LineWidth() int {
	w := e.dialect.Columns / e.widthMul
	if w < 1 {
		w = 1
	}
	return w
}

// SetAlignment sets text alignment
func (e *Encoder) SetAlignment(align renderer.Align) {
	var n byte
	switch align {
	case renderer.AlignCenter:
		n = 1
	case renderer.AlignRight:
		n = 2
	default:
		n = 0
	}

	if e.dialect.Kind == registry.KindStar {
		e.buffer.Write([]byte{ESC, GS, 'a', n})
		return
	}
	e.buffer.Write([]byte{ESC, 'a', n})
}

// SetBold enables or disables emphasized text
func (e *Encoder) SetBold(enabled bool) {
	if e.dialect.Kind == registry.KindStar {
		if enabled {
			e.buffer.Write([]byte{ESC, 'E'})
		} else {
			e.buffer.Write([]byte{ESC, 'F'})
		}
		return
	}

	var n byte
	if enabled {
		n = 1
	}
	e.buffer.Write([]byte{ESC, 'E', n})
}

// SetTextSize sets the character magnification, 1 to 8 in each direction
func (e *Encoder) SetTextSize(width, height int) {
	width = clamp(width, 1, 8)
	height = clamp(height, 1, 8)
	e.widthMul = width

	if e.dialect.Kind == registry.KindStar {
		// ESC i n1 n2: height then width, zero based, max 5
		e.buffer.Write([]byte{ESC, 'i', byte(clamp(height, 1, 6) - 1), byte(clamp(width, 1, 6) - 1)})
		return
	}

	size := byte(((width - 1) << 4) | (height - 1))
	e.buffer.Write([]byte{GS, '!', size})
}

// Println writes one line of text in the dialect code page
func (e *Encoder) Println(text string) error {
	if err := e.WriteText(text); err != nil {
		return err
	}
	e.LineFeed()
	return nil
}

// WriteText writes text without a line feed
func (e *Encoder) WriteText(text string) error {
	encoded, err := e.text.String(text)
	if err != nil {
		return fmt.Errorf("failed to encode text: %w", err)
	}
	e.buffer.WriteString(encoded)
	return nil
}

// PrintQR prints data as a QR code using the dialect's QR support
func (e *Encoder) PrintQR(data string, cell int) error {
	if data == "" {
		return fmt.Errorf("qr data is empty")
	}

	switch e.dialect.QR {
	case QRNative:
		return e.qrNative(data, cell)
	case QRStarLine:
		return e.qrStar(data, cell)
	default:
		img, err := renderer.QRImage(data, cell, e.dialect.Dots)
		if err != nil {
			return err
		}
		e.PrintRaster(img)
		return nil
	}
}

func (e *Encoder) qrNative(data string, cell int) error {
	n := len(data) + 3
	if n > 0xFFFF {
		return fmt.Errorf("qr data too long: %d bytes", len(data))
	}

	// Model 2
	e.buffer.Write([]byte{GS, '(', 'k', 4, 0, 49, 65, 50, 0})
	// Module size
	e.buffer.Write([]byte{GS, '(', 'k', 3, 0, 49, 67, byte(clamp(cell, 1, 16))})
	// Error correction M
	e.buffer.Write([]byte{GS, '(', 'k', 3, 0, 49, 69, 49})
	// Store data
	e.buffer.Write([]byte{GS, '(', 'k', byte(n & 0xFF), byte(n >> 8), 49, 80, 48})
	e.buffer.WriteString(data)
	// Print
	e.buffer.Write([]byte{GS, '(', 'k', 3, 0, 49, 81, 48})
	e.LineFeed()
	return nil
}

func (e *Encoder) qrStar(data string, cell int) error {
	n := len(data)
	if n > 0xFFFF {
		return fmt.Errorf("qr data too long: %d bytes", len(data))
	}

	e.buffer.Write([]byte{ESC, GS, 'y', 'S', '0', 2})                     // Model 2
	e.buffer.Write([]byte{ESC, GS, 'y', 'S', '1', 1})                     // Error correction M
	e.buffer.Write([]byte{ESC, GS, 'y', 'S', '2', byte(clamp(cell, 1, 8))}) // Cell size
	e.buffer.Write([]byte{ESC, GS, 'y', 'D', '1', 0, byte(n & 0xFF), byte(n >> 8)})
	e.buffer.WriteString(data)
	e.buffer.Write([]byte{ESC, GS, 'y', 'P'})
	e.LineFeed()
	return nil
}

// PrintRaster prints an image with GS v 0
func (e *Encoder) PrintRaster(img image.Image) {
	bounds := img.Bounds()
	bytesPerLine := (bounds.Dx() + 7) / 8
	height := bounds.Dy()

	e.buffer.Write([]byte{
		GS, 'v', '0', 0,
		byte(bytesPerLine & 0xFF), byte((bytesPerLine >> 8) & 0xFF),
		byte(height & 0xFF), byte((height >> 8) & 0xFF),
	})
	e.buffer.Write(imageToBitmap(img))
	e.LineFeed()
}

// Cut feeds past the cutter and cuts the paper
func (e *Encoder) Cut() {
	if e.dialect.Kind == registry.KindStar {
		// ESC d 2: feed to cut position, full cut
		e.buffer.Write([]byte{ESC, 'd', 2})
		return
	}

	e.Feed(3)
	e.buffer.Write([]byte{GS, 'V', 0})
}

// LineFeed sends line feed
func (e *Encoder) LineFeed() {
	e.buffer.WriteByte(LF)
}

// Feed sends multiple line feeds
func (e *Encoder) Feed(lines int) {
	for i := 0; i < lines; i++ {
		e.LineFeed()
	}
}

// GetBytes returns the generated commands
func (e *Encoder) GetBytes() []byte {
	return e.buffer.Bytes()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buffer.Reset()
	e.widthMul = 1
}

// LayoutRow lays out table columns on a line of width characters.
// Each column gets floor(fraction*width) characters and the last column takes the remainder,
// with one space between neighbouring columns. Right-aligned columns hold amounts and are
// never cut: they widen at the expense of the other columns, and when the line is still too
// narrow the first column moves onto a line of its own.
func LayoutRow(cols []renderer.Column, width int) string {
	widths := columnWidths(cols, width)
	if fitAmounts(cols, widths) {
		return joinColumns(cols, widths)
	}

	if len(cols) > 1 && cols[0].Align != renderer.AlignRight {
		rest := make([]renderer.Column, len(cols))
		copy(rest, cols)
		rest[0].Text = ""
		widths = columnWidths(rest, width)
		if fitAmounts(rest, widths) {
			return truncate(cols[0].Text, width) + "\n" + joinColumns(rest, widths)
		}
	}

	// wider than the paper even on its own: keep every value whole
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		if col.Text != "" {
			parts = append(parts, col.Text)
		}
	}
	return strings.Join(parts, " ")
}

func columnWidths(cols []renderer.Column, width int) []int {
	widths := make([]int, len(cols))
	used := 0
	for i, col := range cols {
		w := int(math.Floor(col.Width * float64(width)))
		if i == len(cols)-1 || used+w > width {
			w = width - used
		}
		if w < 0 {
			w = 0
		}
		widths[i] = w
		used += w
	}
	return widths
}

// separator is the space a column keeps free next to its neighbour:
// on the left for right-aligned columns, on the right otherwise
func separator(cols []renderer.Column, i int) int {
	if cols[i].Align == renderer.AlignRight {
		if i > 0 {
			return 1
		}
		return 0
	}
	if i < len(cols)-1 {
		return 1
	}
	return 0
}

// fitAmounts widens right-aligned columns to their full text by shrinking the
// others, widest first. It reports false when there is not enough room.
func fitAmounts(cols []renderer.Column, widths []int) bool {
	for i, col := range cols {
		if col.Align != renderer.AlignRight {
			continue
		}
		deficit := utf8.RuneCountInString(col.Text) + separator(cols, i) - widths[i]
		for deficit > 0 {
			donor, slack := -1, 0
			for j, other := range cols {
				if other.Align == renderer.AlignRight {
					continue
				}
				keep := 0
				if other.Text != "" {
					keep = 1 + separator(cols, j)
				}
				if s := widths[j] - keep; s > slack {
					donor, slack = j, s
				}
			}
			if donor < 0 {
				return false
			}
			take := slack
			if deficit < take {
				take = deficit
			}
			widths[donor] -= take
			widths[i] += take
			deficit -= take
		}
	}
	return true
}

func joinColumns(cols []renderer.Column, widths []int) string {
	var b strings.Builder
	for i, col := range cols {
		w := widths[i]
		if w <= 0 {
			continue
		}
		limit := w - separator(cols, i)
		if limit < 0 {
			limit = 0
		}
		b.WriteString(pad(truncate(col.Text, limit), w, col.Align))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func pad(s string, w int, align renderer.Align) string {
	gap := w - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case renderer.AlignRight:
		return strings.Repeat(" ", gap) + s
	case renderer.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// imageToBitmap converts an image to a 1-bit bitmap
func imageToBitmap(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bytesPerLine := (width + 7) / 8
	bitmap := make([]byte, bytesPerLine*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			// Threshold at 50% (32768 out of 65535)
			if (r+g+b)/3 < 32768 {
				byteIndex := y*bytesPerLine + x/8
				bitIndex := 7 - (x % 8)
				bitmap[byteIndex] |= 1 << bitIndex
			}
		}
	}

	return bitmap
}
