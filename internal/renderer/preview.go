package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/fogleman/gg"
)

const (
	previewMargin  = 8.0
	previewLineGap = 6.0
)

// Preview rasterizes a Sequence so a receipt can be inspected without a printer
type Preview struct {
	width  int // Paper width in pixels
	height int // Current canvas height
	ctx    *gg.Context
	y      float64 // Current Y position

	align  Align
	bold   bool
	scaleW float64
	scaleH float64
}

// NewPreview creates a preview canvas for the given paper width ("58mm", "80mm", "112mm")
func NewPreview(paperWidth string) *Preview {
	width := PaperWidthToPixels(paperWidth)

	// Start with reasonable initial height, will grow as needed
	initialHeight := 1000

	ctx := gg.NewContext(width, initialHeight)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	return &Preview{
		width:  width,
		height: initialHeight,
		ctx:    ctx,
		y:      previewMargin,
		align:  AlignLeft,
		scaleW: 1,
		scaleH: 1,
	}
}

// Render draws every command and returns the cropped image
func (p *Preview) Render(seq Sequence) (image.Image, error) {
	for i := 0; i < seq.Len(); i++ {
		if err := p.draw(seq.At(i)); err != nil {
			return nil, fmt.Errorf("failed to render command %d: %w", i, err)
		}
	}
	return p.cropToContent(), nil
}

// WritePNG renders seq and encodes the result as PNG
func WritePNG(w io.Writer, seq Sequence, paperWidth string) error {
	img, err := NewPreview(paperWidth).Render(seq)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func (p *Preview) draw(cmd Command) error {
	switch cmd.Op {
	case OpAlign:
		p.align = cmd.Align
	case OpBold:
		p.bold = cmd.Bold
	case OpTextSize:
		p.scaleW = float64(max(cmd.Width, 1))
		p.scaleH = float64(max(cmd.Height, 1))
	case OpPrintln:
		p.drawLineOfText(cmd.Text)
	case OpDrawLine:
		p.drawDivider()
	case OpTableRow:
		p.drawRow(cmd.Columns)
	case OpPrintQR:
		return p.drawQR(cmd.QRData, cmd.QRCell)
	case OpCut:
		p.drawCut()
	default:
		return fmt.Errorf("unsupported command: %s", cmd.Op)
	}
	return nil
}

func (p *Preview) lineHeight() float64 {
	_, h := p.ctx.MeasureString("M")
	return h*p.scaleH + previewLineGap
}

func (p *Preview) drawLineOfText(text string) {
	lh := p.lineHeight()
	p.ensureHeight(int(lh) + 1)
	if strings.TrimSpace(text) != "" {
		p.drawText(text, p.align, previewMargin, float64(p.width)-previewMargin)
	}
	p.y += lh
}

func (p *Preview) drawRow(cols []Column) {
	lh := p.lineHeight()
	p.ensureHeight(int(lh) + 1)

	usable := float64(p.width) - 2*previewMargin
	x := previewMargin
	for i, col := range cols {
		w := col.Width * usable
		if i == len(cols)-1 {
			w = float64(p.width) - previewMargin - x
		}
		p.drawText(col.Text, col.Align, x, x+w)
		x += w
	}
	p.y += lh
}

// drawText places text between x0 and x1 on the current line
func (p *Preview) drawText(text string, align Align, x0, x1 float64) {
	tw, th := p.ctx.MeasureString(text)
	tw *= p.scaleW

	var x float64
	switch align {
	case AlignCenter:
		x = x0 + (x1-x0-tw)/2
	case AlignRight:
		x = x1 - tw
	default:
		x = x0
	}

	baseline := p.y + th*p.scaleH
	p.ctx.Push()
	p.ctx.ScaleAbout(p.scaleW, p.scaleH, x, baseline)
	p.ctx.DrawString(text, x, baseline)
	if p.bold {
		p.ctx.DrawString(text, x+1, baseline)
	}
	p.ctx.Pop()
}

func (p *Preview) drawDivider() {
	p.ensureHeight(15)

	y := p.y + 7
	p.ctx.SetLineWidth(2)
	p.ctx.DrawLine(previewMargin, y, float64(p.width)-previewMargin, y)
	p.ctx.Stroke()

	p.y += 15
}

func (p *Preview) drawQR(data string, cell int) error {
	img, err := QRImage(data, cell, p.width-2*int(previewMargin))
	if err != nil {
		return err
	}

	imgHeight := img.Bounds().Dy()
	p.ensureHeight(imgHeight + 20)

	var x int
	switch p.align {
	case AlignCenter:
		x = (p.width - img.Bounds().Dx()) / 2
	case AlignRight:
		x = p.width - int(previewMargin) - img.Bounds().Dx()
	default:
		x = int(previewMargin)
	}
	p.ctx.DrawImage(img, x, int(p.y))

	p.y += float64(imgHeight) + 10
	return nil
}

func (p *Preview) drawCut() {
	p.ensureHeight(20)

	y := p.y + 10
	for x := 0.0; x < float64(p.width); x += 12 {
		p.ctx.DrawLine(x, y, x+6, y)
	}
	p.ctx.SetLineWidth(1)
	p.ctx.Stroke()

	p.y += 20
}

func (p *Preview) cropToContent() image.Image {
	finalHeight := int(p.y) + int(previewMargin)
	if finalHeight > p.height {
		finalHeight = p.height
	}

	img := p.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, p.width, finalHeight))
}

func (p *Preview) ensureHeight(neededHeight int) {
	if int(p.y)+neededHeight <= p.height {
		return
	}

	newHeight := p.height * 2
	if newHeight < int(p.y)+neededHeight {
		newHeight = int(p.y) + neededHeight + 1000
	}

	newCtx := gg.NewContext(p.width, newHeight)
	newCtx.SetColor(color.White)
	newCtx.Clear()
	newCtx.DrawImage(p.ctx.Image(), 0, 0)
	newCtx.SetColor(color.Black)

	p.ctx = newCtx
	p.height = newHeight
}
