// Package renderer turns receipt payloads into device-independent command sequences
package renderer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

// Column widths of the item table and the totals block, as fractions of the printable width
var (
	ItemColumns   = [4]float64{0.5, 0.15, 0.20, 0.15}
	TotalsColumns = [2]float64{0.7, 0.3}
)

// Layout holds the presentation knobs that do not change the command structure
type Layout struct {
	CurrencySymbol string `mapstructure:"currencySymbol" json:"currency_symbol"`
	ThankYou       string `mapstructure:"thankYou" json:"thank_you"`
	DateLayout     string `mapstructure:"dateLayout" json:"date_layout"`
	QRCellSize     int    `mapstructure:"qrCellSize" json:"qr_cell_size"`
}

// DefaultLayout returns the stock receipt layout
func DefaultLayout() Layout {
	return Layout{
		CurrencySymbol: "$",
		ThankYou:       "Thank you for your order!",
		DateLayout:     "1/2/2006, 3:04:05 PM",
		QRCellSize:     6,
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.CurrencySymbol == "" {
		l.CurrencySymbol = d.CurrencySymbol
	}
	if l.ThankYou == "" {
		l.ThankYou = d.ThankYou
	}
	if l.DateLayout == "" {
		l.DateLayout = d.DateLayout
	}
	if l.QRCellSize <= 0 {
		l.QRCellSize = d.QRCellSize
	}
	return l
}

// Renderer converts payloads to command sequences. It performs no I/O.
type Renderer struct {
	layout Layout
	now    func() time.Time
}

// New creates a renderer. A nil clock means time.Now.
func New(layout Layout, now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		layout: layout.withDefaults(),
		now:    now,
	}
}

// Layout returns the effective layout
func (r *Renderer) Layout() Layout {
	return r.layout
}

// Render builds the receipt. The payload is assumed to be valid.
func (r *Renderer) Render(p *receiptformat.Payload) Sequence {
	var b builder

	// Header
	b.align(AlignCenter)
	b.bold(true)
	b.println(p.StoreName)
	b.bold(false)
	b.println(p.Address)
	b.drawLine()

	// Order details
	b.align(AlignLeft)
	b.println("Order: " + p.OrderNumber)
	b.println("Customer: " + p.CustomerName)
	b.println("Date: " + r.now().Format(r.layout.DateLayout))
	b.drawLine()

	// Items
	b.bold(true)
	b.tableRow(
		Column{Text: "Item", Align: AlignLeft, Width: ItemColumns[0]},
		Column{Text: "Qty", Align: AlignCenter, Width: ItemColumns[1]},
		Column{Text: "Price", Align: AlignRight, Width: ItemColumns[2]},
		Column{Text: "Total", Align: AlignRight, Width: ItemColumns[3]},
	)
	b.bold(false)
	for _, item := range p.Items {
		b.tableRow(
			Column{Text: item.Name, Align: AlignLeft, Width: ItemColumns[0]},
			Column{Text: FormatQty(item.Qty), Align: AlignCenter, Width: ItemColumns[1]},
			Column{Text: r.Money(item.Price), Align: AlignRight, Width: ItemColumns[2]},
			Column{Text: r.Money(item.LineTotal()), Align: AlignRight, Width: ItemColumns[3]},
		)
	}

	// Totals
	b.drawLine()
	b.tableRow(r.totalsRow("Subtotal:", p.Subtotal)...)
	b.tableRow(r.totalsRow("Tax:", p.Tax)...)

	b.drawLine()
	b.bold(true)
	b.textSize(2, 2)
	b.tableRow(r.totalsRow("TOTAL:", p.Total)...)
	b.textSize(1, 1)
	b.bold(false)

	b.drawLine()
	b.align(AlignLeft)
	b.println("Payment: " + p.PaymentMethod)

	if p.HasQRCode() {
		b.println("")
		b.align(AlignCenter)
		b.printQR(p.QRCode, r.layout.QRCellSize)
	}

	// Footer
	b.println("")
	b.align(AlignCenter)
	b.println(r.layout.ThankYou)
	b.println("")
	b.cut()

	return b.sequence()
}

func (r *Renderer) totalsRow(label string, amount float64) []Column {
	return []Column{
		{Text: label, Align: AlignLeft, Width: TotalsColumns[0]},
		{Text: r.Money(amount), Align: AlignRight, Width: TotalsColumns[1]},
	}
}

// Money formats an amount with the currency prefix and two decimals
func (r *Renderer) Money(amount float64) string {
	return r.layout.CurrencySymbol + fmt.Sprintf("%.2f", amount)
}

// FormatQty prints whole quantities without decimals
func FormatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}
