// Package screens holds the secondary console screens
package screens

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/renderer"
)

// storeTimeout bounds profile store calls made from the UI goroutine
const storeTimeout = 5 * time.Second

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// StatusIcon returns the marker shown next to a job status
func StatusIcon(status command.JobStatus) string {
	switch status {
	case command.JobQueued:
		return "⏳"
	case command.JobPrinting:
		return "🟡"
	case command.JobCompleted:
		return "✅"
	case command.JobFailed:
		return "❌"
	default:
		return "⚪"
	}
}

// ProfileTitle is the list line of a profile, starred when it is the default
func ProfileTitle(p registry.Profile) string {
	marker := " "
	if p.IsDefault {
		marker = "★"
	}
	return fmt.Sprintf("%s #%d %s", marker, p.ID, p.Name)
}

// ProfileSummary is the secondary list line of a profile
func ProfileSummary(p registry.Profile) string {
	return fmt.Sprintf("%s • %s • %s", p.TransportKind, ProfileTarget(p), p.Kind)
}

// ProfileTarget is where the profile's printer lives
func ProfileTarget(p registry.Profile) string {
	if p.TransportKind == registry.TransportNetwork {
		return fmt.Sprintf("%s:%d", p.NetworkAddress, p.NetworkPort)
	}
	if p.VendorID != "" || p.ProductID != "" {
		return fmt.Sprintf("%s [%s:%s]", p.Name, p.VendorID, p.ProductID)
	}
	return p.Name
}

// ProfileDetails renders every field of a profile for a details panel
func ProfileDetails(p registry.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]ID:[white] %d\n", p.ID)
	fmt.Fprintf(&b, "[yellow]Name:[white] %s\n", p.Name)
	fmt.Fprintf(&b, "[yellow]Kind:[white] %s\n", p.Kind)
	fmt.Fprintf(&b, "[yellow]Transport:[white] %s\n", p.TransportKind)
	if p.TransportKind == registry.TransportNetwork {
		fmt.Fprintf(&b, "[yellow]Address:[white] %s\n", p.NetworkAddress)
		fmt.Fprintf(&b, "[yellow]Port:[white] %d\n", p.NetworkPort)
	} else {
		if p.USBIdentifier != "" {
			fmt.Fprintf(&b, "[yellow]USB identifier:[white] %s\n", p.USBIdentifier)
		}
		if p.VendorID != "" {
			fmt.Fprintf(&b, "[yellow]Vendor ID:[white] %s\n", p.VendorID)
		}
		if p.ProductID != "" {
			fmt.Fprintf(&b, "[yellow]Product ID:[white] %s\n", p.ProductID)
		}
	}
	fmt.Fprintf(&b, "[yellow]Default:[white] %t\n", p.IsDefault)
	fmt.Fprintf(&b, "[yellow]Updated:[white] %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

// ResultText renders a print result for a details panel
func ResultText(res command.PrintResult) string {
	var b strings.Builder
	if res.Success {
		fmt.Fprintf(&b, "[green]✓ %s[white]\n", tview.Escape(res.Message))
	} else {
		fmt.Fprintf(&b, "[red]✗ %s[white]\n", tview.Escape(res.Message))
		if res.Code != "" {
			fmt.Fprintf(&b, "[yellow]Code:[white] %s\n", res.Code)
		}
	}
	if res.JobID != "" {
		fmt.Fprintf(&b, "[yellow]Job ID:[white] %s\n", res.JobID)
	}
	if res.PrinterID != 0 {
		fmt.Fprintf(&b, "[yellow]Printer:[white] %d\n", res.PrinterID)
	}
	return b.String()
}

// PaperText lays a command sequence out as plain text, columns characters wide
func PaperText(seq renderer.Sequence, columns int) string {
	var b strings.Builder
	align := renderer.AlignLeft
	widthMul := 1

	lineWidth := func() int {
		w := columns / widthMul
		if w < 1 {
			w = 1
		}
		return w
	}

	for _, cmd := range seq.Commands() {
		switch cmd.Op {
		case renderer.OpAlign:
			align = cmd.Align
		case renderer.OpTextSize:
			widthMul = cmd.Width
			if widthMul < 1 {
				widthMul = 1
			}
		case renderer.OpPrintln:
			b.WriteString(alignText(cmd.Text, lineWidth(), align))
			b.WriteByte('\n')
		case renderer.OpDrawLine:
			b.WriteString(strings.Repeat("-", lineWidth()))
			b.WriteByte('\n')
		case renderer.OpTableRow:
			b.WriteString(printer.LayoutRow(cmd.Columns, lineWidth()))
			b.WriteByte('\n')
		case renderer.OpPrintQR:
			b.WriteString(alignText("[QR "+cmd.QRData+"]", lineWidth(), align))
			b.WriteByte('\n')
		case renderer.OpCut:
			b.WriteString(strings.Repeat("✂ ", lineWidth()/2))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func alignText(s string, width int, align renderer.Align) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	switch align {
	case renderer.AlignCenter:
		left := (width - n) / 2
		return strings.Repeat(" ", left) + s
	case renderer.AlignRight:
		return strings.Repeat(" ", width-n) + s
	default:
		return s
	}
}
