package screens

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
)

// DevicesView resolves each profile to its transport and probes the device on demand
type DevicesView struct {
	app          *tview.Application
	profiles     command.ProfileRegistry
	orchestrator *command.Orchestrator
	list         *tview.List
	details      *tview.TextView
	layout       *tview.Flex

	shown []registry.Profile
}

// NewDevicesView creates a new devices view screen
func NewDevicesView(app *tview.Application, profiles command.ProfileRegistry, orchestrator *command.Orchestrator) *DevicesView {
	d := &DevicesView{
		app:          app,
		profiles:     profiles,
		orchestrator: orchestrator,
	}

	d.setupUI()
	return d
}

func (d *DevicesView) setupUI() {
	// Device list
	d.list = tview.NewList()
	d.list.SetBorder(true)
	d.list.SetTitle("Devices")
	d.list.SetChangedFunc(func(index int, _, _ string, _ rune) {
		d.selectDevice(index)
	})
	d.list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		d.probe(index)
	})

	// Details view
	d.details = tview.NewTextView()
	d.details.SetBorder(true)
	d.details.SetTitle("Device Details")
	d.details.SetDynamicColors(true)

	// Layout: List | Details
	d.layout = tview.NewFlex().
		AddItem(d.list, 0, 1, true).
		AddItem(d.details, 0, 2, false)

	// Key bindings
	d.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				d.Refresh()
				return nil
			}
		}
		return event
	})

	d.Refresh()
}

// Refresh reloads the profile list
func (d *DevicesView) Refresh() {
	ctx, cancel := storeContext()
	defer cancel()

	profiles, err := d.profiles.List(ctx)
	d.list.Clear()
	if err != nil {
		d.shown = nil
		d.list.AddItem("Error loading devices", err.Error(), 0, nil)
		return
	}

	d.shown = profiles
	if len(profiles) == 0 {
		d.list.AddItem("No printers configured", "", 0, nil)
		d.details.SetText("[yellow]Add a printer in the registry editor first[white]")
		return
	}

	for _, p := range profiles {
		d.list.AddItem(ProfileTitle(p), ProfileSummary(p), 0, nil)
	}

	// Select first item
	d.list.SetCurrentItem(0)
	d.selectDevice(0)
}

func (d *DevicesView) selectDevice(index int) {
	if index < 0 || index >= len(d.shown) {
		return
	}
	d.details.SetText(DeviceDetails(d.shown[index]) + "\n[yellow]Enter[white] probe  [yellow]r[white] refresh")
}

func (d *DevicesView) probe(index int) {
	if index < 0 || index >= len(d.shown) {
		return
	}
	profile := d.shown[index]
	d.details.SetText(DeviceDetails(profile) + "\n[yellow]Probing...[white]")

	go func() {
		res := d.orchestrator.Probe(context.Background(), &profile.ID)
		d.app.QueueUpdateDraw(func() {
			d.details.SetText(DeviceDetails(profile) + "\n" + ResultText(res))
		})
	}()
}

// DeviceDetails shows how a profile resolves to a transport and dialect
func DeviceDetails(p registry.Profile) string {
	details := ProfileDetails(p)

	desc, err := printer.Resolve(p)
	if err != nil {
		return details + fmt.Sprintf("\n[red]✗ %s[white]\n", tview.Escape(err.Error()))
	}
	details += fmt.Sprintf("\n[yellow]Connects to:[white] %s\n", tview.Escape(desc.String()))

	if dialect, err := printer.DialectFor(p.Kind); err == nil {
		details += fmt.Sprintf("[yellow]Dialect:[white] %s, %d columns, %d dots\n", dialect.Kind, dialect.Columns, dialect.Dots)
	}
	return details
}

// GetRoot returns the root primitive for this screen
func (d *DevicesView) GetRoot() tview.Primitive {
	return d.layout
}
