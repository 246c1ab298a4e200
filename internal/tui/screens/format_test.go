package screens

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/renderer"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

func TestProfileForm_Patch(t *testing.T) {
	form := ProfileForm{
		Name:           " Front ",
		Kind:           "star",
		Transport:      "network",
		NetworkAddress: "10.0.0.5 ",
		NetworkPort:    "9100",
		IsDefault:      true,
	}

	patch, err := form.Patch()
	require.NoError(t, err)
	assert.Equal(t, "Front", *patch.Name)
	assert.Equal(t, registry.KindStar, *patch.Kind)
	assert.Equal(t, registry.TransportNetwork, *patch.TransportKind)
	assert.Equal(t, "10.0.0.5", *patch.NetworkAddress)
	assert.Equal(t, 9100, *patch.NetworkPort)
	assert.Equal(t, "", *patch.VendorID)
	assert.True(t, *patch.IsDefault)
}

func TestProfileForm_InvalidPort(t *testing.T) {
	for _, port := range []string{"abc", "-1", "65536"} {
		_, err := ProfileForm{Name: "x", NetworkPort: port}.Patch()
		assert.Error(t, err, port)

		_, err = ProfileForm{Name: "x", NetworkPort: port}.Profile()
		assert.Error(t, err, port)
	}
}

func TestProfileForm_RoundTrip(t *testing.T) {
	p := registry.Profile{
		Name:          "Kitchen",
		Kind:          registry.KindEpson,
		TransportKind: registry.TransportUSB,
		USBIdentifier: "usb://kitchen",
		VendorID:      "04b8",
		ProductID:     "0202",
	}

	got, err := FormFromProfile(p).Profile()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✅", StatusIcon(command.JobCompleted))
	assert.Equal(t, "❌", StatusIcon(command.JobFailed))
	assert.Equal(t, "🟡", StatusIcon(command.JobPrinting))
	assert.Equal(t, "⏳", StatusIcon(command.JobQueued))
	assert.Equal(t, "⚪", StatusIcon(command.JobStatus("other")))
}

func TestProfileTitleAndTarget(t *testing.T) {
	network := registry.Profile{ID: 2, Name: "Front", TransportKind: registry.TransportNetwork, NetworkAddress: "10.0.0.5", NetworkPort: 9100, IsDefault: true}
	usb := registry.Profile{ID: 3, Name: "Kitchen", TransportKind: registry.TransportUSB, VendorID: "04b8", ProductID: "0202"}

	assert.Equal(t, "★ #2 Front", ProfileTitle(network))
	assert.Equal(t, "  #3 Kitchen", ProfileTitle(usb))
	assert.Equal(t, "10.0.0.5:9100", ProfileTarget(network))
	assert.Equal(t, "Kitchen [04b8:0202]", ProfileTarget(usb))
	assert.Equal(t, "Bar", ProfileTarget(registry.Profile{Name: "Bar", TransportKind: registry.TransportUSB}))
}

func TestResultText(t *testing.T) {
	ok := ResultText(command.PrintResult{Success: true, Message: "Receipt printed", JobID: "j1", PrinterID: 4})
	assert.Contains(t, ok, "[green]✓ Receipt printed")
	assert.Contains(t, ok, "j1")
	assert.Contains(t, ok, "4")

	failed := ResultText(command.PrintResult{Message: "Printer is unreachable [x]", Code: "unreachable"})
	assert.Contains(t, failed, "[red]✗")
	assert.Contains(t, failed, "unreachable")
	// tview tags in messages are escaped
	assert.NotContains(t, failed, "unreachable [x]")
}

func TestPaperText(t *testing.T) {
	seq := renderer.NewSequence(
		renderer.Command{Op: renderer.OpAlign, Align: renderer.AlignCenter},
		renderer.Command{Op: renderer.OpPrintln, Text: "Shop"},
		renderer.Command{Op: renderer.OpAlign, Align: renderer.AlignLeft},
		renderer.Command{Op: renderer.OpDrawLine},
		renderer.Command{Op: renderer.OpTableRow, Columns: []renderer.Column{
			{Text: "A", Align: renderer.AlignLeft, Width: 0.5},
			{Text: "9", Align: renderer.AlignRight, Width: 0.5},
		}},
		renderer.Command{Op: renderer.OpTextSize, Width: 2, Height: 2},
		renderer.Command{Op: renderer.OpPrintln, Text: "Big"},
		renderer.Command{Op: renderer.OpTextSize, Width: 1, Height: 1},
		renderer.Command{Op: renderer.OpCut},
	)

	want := strings.Join([]string{
		"   Shop",
		"----------",
		"A        9",
		"Big",
		"✂ ✂ ✂ ✂ ✂ ",
		"",
	}, "\n")
	assert.Equal(t, want, PaperText(seq, 10))
}

func TestPaperText_RenderedReceipt(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC) }
	seq := renderer.New(renderer.DefaultLayout(), now).Render(receiptformat.Sample())

	text := PaperText(seq, 48)
	assert.Contains(t, text, receiptformat.Sample().StoreName)
	assert.Contains(t, text, "[QR ")
	assert.True(t, strings.HasSuffix(strings.TrimRight(text, "\n"), "✂ "))
}

func TestPaperText_NarrowPaperKeepsAmounts(t *testing.T) {
	seq := renderer.New(renderer.DefaultLayout(), nil).Render(receiptformat.Sample())

	text := PaperText(seq, 32)
	assert.Contains(t, text, "Cappuccino   2   $150.00 $300.00\n")
	assert.Contains(t, text, "TOTAL:   $418.00\n")
}

func TestDeviceDetails(t *testing.T) {
	good := DeviceDetails(registry.Profile{
		ID: 1, Name: "Front", Kind: registry.KindEpson, TransportKind: registry.TransportNetwork,
		NetworkAddress: "10.0.0.5", NetworkPort: 9100,
	})
	assert.Contains(t, good, "tcp:10.0.0.5:9100")
	assert.Contains(t, good, "EPSON")

	bad := DeviceDetails(registry.Profile{ID: 2, Name: "Broken", Kind: registry.KindEpson, TransportKind: registry.TransportNetwork})
	assert.Contains(t, bad, "[red]✗")
	assert.Contains(t, bad, "needs an address")
}

func TestJobDetails(t *testing.T) {
	created := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
	finished := created.Add(1500 * time.Millisecond)
	job := command.PrintJob{
		ID: "abc", Kind: "receipt", PrinterID: 1, PrinterName: "Front", OrderNumber: "1001",
		Status: command.JobFailed, Code: "unreachable", Error: "Printer is unreachable",
		CreatedAt: created, FinishedAt: &finished,
	}

	details := JobDetails(job)
	assert.Contains(t, details, "#1 Front")
	assert.Contains(t, details, "1001")
	assert.Contains(t, details, "1.5s")
	assert.Contains(t, details, "Error (unreachable)")

	assert.Contains(t, JobDetails(command.PrintJob{ID: "x", Status: command.JobQueued}), "[yellow]Printer:[white] -")
}
