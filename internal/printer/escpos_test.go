package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/renderer"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

func mustDialect(t *testing.T, kind registry.Kind) Dialect {
	t.Helper()
	d, err := DialectFor(kind)
	if err != nil {
		t.Fatalf("DialectFor(%s) failed: %v", kind, err)
	}
	return d
}

func TestEncode_Epson(t *testing.T) {
	seq := renderer.NewSequence(
		renderer.Command{Op: renderer.OpAlign, Align: renderer.AlignCenter},
		renderer.Command{Op: renderer.OpBold, Bold: true},
		renderer.Command{Op: renderer.OpPrintln, Text: "Hi"},
		renderer.Command{Op: renderer.OpCut},
	)

	data, err := Encode(seq, mustDialect(t, registry.KindEpson))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := []byte{
		ESC, '@', ESC, 't', 0,
		ESC, 'a', 1,
		ESC, 'E', 1,
		'H', 'i', LF,
		LF, LF, LF, GS, 'V', 0,
	}
	if !bytes.Equal(data, expected) {
		t.Errorf("Unexpected bytes:\n got % x\nwant % x", data, expected)
	}
}

func TestEncode_Star(t *testing.T) {
	seq := renderer.NewSequence(
		renderer.Command{Op: renderer.OpAlign, Align: renderer.AlignRight},
		renderer.Command{Op: renderer.OpBold, Bold: true},
		renderer.Command{Op: renderer.OpBold, Bold: false},
		renderer.Command{Op: renderer.OpTextSize, Width: 2, Height: 2},
		renderer.Command{Op: renderer.OpCut},
	)

	data, err := Encode(seq, mustDialect(t, registry.KindStar))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := []byte{
		ESC, '@', ESC, GS, 't', 1,
		ESC, GS, 'a', 2,
		ESC, 'E',
		ESC, 'F',
		ESC, 'i', 1, 1,
		ESC, 'd', 2,
	}
	if !bytes.Equal(data, expected) {
		t.Errorf("Unexpected bytes:\n got % x\nwant % x", data, expected)
	}
}

func TestEncode_TextSizeEpson(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindEpson))
	e.SetTextSize(2, 2)
	if got := e.GetBytes(); !bytes.Equal(got, []byte{GS, '!', 0x11}) {
		t.Errorf("Unexpected size command % x", got)
	}
	if e.LineWidth() != 24 {
		t.Errorf("Expected line width 24 at double width, got %d", e.LineWidth())
	}
}

func TestEncode_DrawLineFollowsTextWidth(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindGeneric))
	if err := e.Command(renderer.Command{Op: renderer.OpDrawLine}); err != nil {
		t.Fatalf("draw_line failed: %v", err)
	}
	want := strings.Repeat("-", 32) + "\n"
	if string(e.GetBytes()) != want {
		t.Errorf("Expected 32 dashes, got %q", e.GetBytes())
	}
}

func TestLayoutRow(t *testing.T) {
	cols := []renderer.Column{
		{Text: "Item", Align: renderer.AlignLeft, Width: renderer.ItemColumns[0]},
		{Text: "Qty", Align: renderer.AlignCenter, Width: renderer.ItemColumns[1]},
		{Text: "Price", Align: renderer.AlignRight, Width: renderer.ItemColumns[2]},
		{Text: "Total", Align: renderer.AlignRight, Width: renderer.ItemColumns[3]},
	}

	row := LayoutRow(cols, 48)
	want := "Item" + strings.Repeat(" ", 20) + "  Qty  " + "    Price" + "   Total"
	if row != want {
		t.Errorf("Unexpected row:\n got %q\nwant %q", row, want)
	}
}

func TestLayoutRow_Truncates(t *testing.T) {
	cols := []renderer.Column{
		{Text: strings.Repeat("x", 40), Align: renderer.AlignLeft, Width: 0.7},
		{Text: "$1.00", Align: renderer.AlignRight, Width: 0.3},
	}

	row := LayoutRow(cols, 32)
	if len(row) != 32 {
		t.Fatalf("Expected 32 characters, got %d: %q", len(row), row)
	}
	// 0.7*32 = 22 wide, text cut to 21 plus a separator
	if row[:22] != strings.Repeat("x", 21)+" " {
		t.Errorf("First column not truncated: %q", row[:22])
	}
	if !strings.HasSuffix(row, "$1.00") {
		t.Errorf("Amount not right aligned: %q", row)
	}
}

func TestLayoutRow_KeepsAmountsWhole(t *testing.T) {
	cols := []renderer.Column{
		{Text: "Cappuccino", Align: renderer.AlignLeft, Width: renderer.ItemColumns[0]},
		{Text: "2", Align: renderer.AlignCenter, Width: renderer.ItemColumns[1]},
		{Text: "$150.00", Align: renderer.AlignRight, Width: renderer.ItemColumns[2]},
		{Text: "$300.00", Align: renderer.AlignRight, Width: renderer.ItemColumns[3]},
	}

	row := LayoutRow(cols, 32)
	want := "Cappuccino  " + " 2  " + " $150.00" + " $300.00"
	if row != want {
		t.Errorf("Unexpected row:\n got %q\nwant %q", row, want)
	}

	cols[2].Text, cols[3].Text = "$12345.00", "$12345.00"
	row = LayoutRow(cols, 48)
	if len(row) != 48 || !strings.HasSuffix(row, " $12345.00 $12345.00") {
		t.Errorf("Amounts cut on a 48 column line: %q", row)
	}
}

func TestLayoutRow_TotalAtDoubleWidth(t *testing.T) {
	cols := []renderer.Column{
		{Text: "TOTAL:", Align: renderer.AlignLeft, Width: renderer.TotalsColumns[0]},
		{Text: "$418.00", Align: renderer.AlignRight, Width: renderer.TotalsColumns[1]},
	}

	row := LayoutRow(cols, 16)
	if row != "TOTAL:   $418.00" {
		t.Errorf("Unexpected total row %q", row)
	}
}

func TestLayoutRow_OverflowsOntoNextLine(t *testing.T) {
	cols := []renderer.Column{
		{Text: "Espresso", Align: renderer.AlignLeft, Width: 0.5},
		{Text: "$1234567.00", Align: renderer.AlignRight, Width: 0.5},
	}

	row := LayoutRow(cols, 12)
	if row != "Espresso\n $1234567.00" {
		t.Errorf("Unexpected overflow %q", row)
	}

	cols[1].Text = "$123456789012.00"
	row = LayoutRow(cols, 12)
	if row != "Espresso $123456789012.00" {
		t.Errorf("Amount wider than the line was cut: %q", row)
	}
}

func TestEncode_SampleAmountsIntact(t *testing.T) {
	seq := renderer.New(renderer.DefaultLayout(), nil).Render(receiptformat.Sample())

	for _, kind := range registry.Kinds {
		data, err := Encode(seq, mustDialect(t, kind))
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", kind, err)
		}
		for _, amount := range []string{" $150.00", " $300.00", " $80.00", " $380.00", " $38.00", " $418.00"} {
			if !bytes.Contains(data, []byte(amount)) {
				t.Errorf("%s: %q missing from output", kind, amount)
			}
		}
		if bytes.Contains(data, []byte("$150.00$")) {
			t.Errorf("%s: amounts run together", kind)
		}
	}
}

func TestEncode_CodePage(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindEpson))
	if err := e.Println("Café €5"); err != nil {
		t.Fatalf("Println failed: %v", err)
	}
	got := e.GetBytes()
	// é is 0x82 in CP437, € has no mapping and is replaced
	if !bytes.Contains(got, []byte{'C', 'a', 'f', 0x82}) {
		t.Errorf("Expected CP437 é, got % x", got)
	}
	if bytes.Contains(got, []byte("€")) {
		t.Errorf("UTF-8 euro sign leaked into output: % x", got)
	}
}

func TestEncode_QRNative(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindEpson))
	if err := e.PrintQR("ORD-1", 6); err != nil {
		t.Fatalf("PrintQR failed: %v", err)
	}
	got := e.GetBytes()

	store := append([]byte{GS, '(', 'k', 8, 0, 49, 80, 48}, "ORD-1"...)
	if !bytes.Contains(got, store) {
		t.Errorf("Missing store command in % x", got)
	}
	if !bytes.Contains(got, []byte{GS, '(', 'k', 3, 0, 49, 67, 6}) {
		t.Errorf("Missing module size command in % x", got)
	}
	if !bytes.Contains(got, []byte{GS, '(', 'k', 3, 0, 49, 81, 48}) {
		t.Errorf("Missing print command in % x", got)
	}
}

func TestEncode_QRStar(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindStar))
	if err := e.PrintQR("ORD-1", 6); err != nil {
		t.Fatalf("PrintQR failed: %v", err)
	}
	got := e.GetBytes()

	store := append([]byte{ESC, GS, 'y', 'D', '1', 0, 5, 0}, "ORD-1"...)
	if !bytes.Contains(got, store) {
		t.Errorf("Missing data command in % x", got)
	}
	if !bytes.Contains(got, []byte{ESC, GS, 'y', 'P'}) {
		t.Errorf("Missing print command in % x", got)
	}
}

func TestEncode_QRRaster(t *testing.T) {
	e := NewEncoder(mustDialect(t, registry.KindGeneric))
	if err := e.PrintQR("ORD-1", 6); err != nil {
		t.Fatalf("PrintQR failed: %v", err)
	}
	got := e.GetBytes()
	if !bytes.HasPrefix(got, []byte{GS, 'v', '0', 0}) {
		t.Fatalf("Expected raster header, got % x", got[:8])
	}
	bytesPerLine := int(got[4]) | int(got[5])<<8
	if bytesPerLine*8 > 384 {
		t.Errorf("QR raster wider than the paper: %d bytes per line", bytesPerLine)
	}
}

func TestEncode_FullReceipt(t *testing.T) {
	seq := renderer.New(renderer.DefaultLayout(), nil).Render(sampleWithQR())

	for _, kind := range registry.Kinds {
		data, err := Encode(seq, mustDialect(t, kind))
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", kind, err)
		}
		if !bytes.Contains(data, []byte("Thank you for your order!")) {
			t.Errorf("%s: footer missing", kind)
		}
	}
}

func TestEncode_UnknownOp(t *testing.T) {
	seq := renderer.NewSequence(renderer.Command{Op: "beep"})
	if _, err := Encode(seq, mustDialect(t, registry.KindEpson)); err == nil {
		t.Error("Expected error for unknown op")
	}
}

func TestStatusQuery(t *testing.T) {
	epson := mustDialect(t, registry.KindEpson).StatusQuery()
	if !bytes.Equal(epson.Request, []byte{DLE, EOT, 1}) {
		t.Errorf("Unexpected request % x", epson.Request)
	}
	if err := epson.Accept(0x12); err != nil {
		t.Errorf("Expected 0x12 to be online: %v", err)
	}
	if err := epson.Accept(0x1A); err == nil {
		t.Error("Expected offline bit to fail")
	}
	if err := epson.Accept(0x00); err == nil {
		t.Error("Expected malformed status to fail")
	}

	star := mustDialect(t, registry.KindStar).StatusQuery()
	if err := star.Accept(0x23); err != nil {
		t.Errorf("Expected star header to be accepted: %v", err)
	}
}
