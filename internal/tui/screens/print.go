package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

const defaultPrinterOption = "Default printer"

// PrintBuilder is a screen for loading a receipt file and sending it to a printer
type PrintBuilder struct {
	app          *tview.Application
	profiles     command.ProfileRegistry
	orchestrator *command.Orchestrator
	form         *tview.Form
	printerList  *tview.DropDown
	fileInput    *tview.InputField
	preview      *tview.TextView
	layout       *tview.Flex

	payload *receiptformat.Payload
	choices []registry.Profile
}

// NewPrintBuilder creates a new print builder screen
func NewPrintBuilder(app *tview.Application, profiles command.ProfileRegistry, orchestrator *command.Orchestrator) *PrintBuilder {
	p := &PrintBuilder{
		app:          app,
		profiles:     profiles,
		orchestrator: orchestrator,
	}

	p.setupUI()
	return p
}

func (p *PrintBuilder) setupUI() {
	// Printer selection
	p.printerList = tview.NewDropDown()
	p.printerList.SetLabel("Printer: ")

	// File input
	p.fileInput = tview.NewInputField()
	p.fileInput.SetLabel("Receipt File: ")
	p.fileInput.SetPlaceholder("/path/to/receipt.json")

	// Preview area
	p.preview = tview.NewTextView()
	p.preview.SetBorder(true)
	p.preview.SetTitle("Preview")
	p.preview.SetDynamicColors(true)
	p.preview.SetScrollable(true)

	// Form
	p.form = tview.NewForm()
	p.form.SetBorder(true)
	p.form.SetTitle("Print Receipt")
	p.form.AddFormItem(p.printerList)
	p.form.AddFormItem(p.fileInput)
	p.form.AddButton("Load Receipt", func() {
		p.loadReceipt()
	})
	p.form.AddButton("Print", func() {
		p.printReceipt()
	})
	p.form.AddButton("Test Print", func() {
		p.testPrint()
	})

	// Layout: Form | Preview
	p.layout = tview.NewFlex().
		AddItem(p.form, 0, 1, true).
		AddItem(p.preview, 0, 1, false)

	// Key bindings
	p.form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		}
		return event
	})

	p.Refresh()
}

// Refresh reloads the printer choices
func (p *PrintBuilder) Refresh() {
	ctx, cancel := storeContext()
	defer cancel()

	profiles, err := p.profiles.List(ctx)
	if err != nil {
		p.choices = nil
		p.printerList.SetOptions([]string{defaultPrinterOption}, nil)
		p.printerList.SetCurrentOption(0)
		p.showError(fmt.Sprintf("Error loading printers: %v", err))
		return
	}

	options := make([]string, 0, len(profiles)+1)
	options = append(options, defaultPrinterOption)
	for _, pr := range profiles {
		options = append(options, strings.TrimSpace(ProfileTitle(pr)))
	}
	p.choices = profiles
	p.printerList.SetOptions(options, nil)
	p.printerList.SetCurrentOption(0)
}

// target returns the selected profile id, nil for the default printer
func (p *PrintBuilder) target() *uint {
	index, _ := p.printerList.GetCurrentOption()
	if index <= 0 || index-1 >= len(p.choices) {
		return nil
	}
	id := p.choices[index-1].ID
	return &id
}

// columns returns the paper width in characters of the selected printer
func (p *PrintBuilder) columns() int {
	kind := registry.KindEpson
	if id := p.target(); id != nil {
		for _, pr := range p.choices {
			if pr.ID == *id {
				kind = pr.Kind
			}
		}
	}
	dialect, err := printer.DialectFor(kind)
	if err != nil {
		return 48
	}
	return dialect.Columns
}

func (p *PrintBuilder) loadReceipt() {
	filePath := strings.TrimSpace(p.fileInput.GetText())
	if filePath == "" {
		p.showError("Please enter a receipt file path")
		return
	}

	payload, err := receiptformat.ParseFile(filePath)
	if err != nil {
		p.showError(fmt.Sprintf("Error loading receipt: %v", err))
		return
	}

	p.payload = payload
	seq := p.orchestrator.Render(payload)
	p.preview.SetText(fmt.Sprintf("[green]✓ Receipt loaded[white]\n[yellow]Order:[white] %s, %d item(s), %d commands\n\n%s",
		tview.Escape(payload.OrderNumber), len(payload.Items), seq.Len(), tview.Escape(PaperText(seq, p.columns()))))
	p.preview.ScrollToBeginning()
}

func (p *PrintBuilder) printReceipt() {
	if p.payload == nil {
		p.showError("Please load a receipt first")
		return
	}
	payload := p.payload
	p.run(func(ctx context.Context, target *uint) command.PrintResult {
		return p.orchestrator.PrintReceipt(ctx, payload, target)
	})
}

func (p *PrintBuilder) testPrint() {
	p.run(p.orchestrator.TestPrint)
}

// run prints off the UI goroutine and shows the result when done
func (p *PrintBuilder) run(fn func(ctx context.Context, target *uint) command.PrintResult) {
	target := p.target()
	p.preview.SetText("[yellow]Printing...[white]")

	go func() {
		res := fn(context.Background(), target)
		p.app.QueueUpdateDraw(func() {
			p.preview.SetText(ResultText(res))
		})
	}()
}

func (p *PrintBuilder) showError(msg string) {
	p.preview.SetText("[red]✗ " + tview.Escape(msg) + "[white]")
}

// GetRoot returns the root primitive for this screen
func (p *PrintBuilder) GetRoot() tview.Primitive {
	return p.layout
}
