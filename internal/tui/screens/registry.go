package screens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/registry"
)

var (
	kindOptions      = []string{string(registry.KindEpson), string(registry.KindStar), string(registry.KindGeneric)}
	transportOptions = []string{string(registry.TransportUSB), string(registry.TransportNetwork)}
)

// ProfileForm holds the raw text of the profile editor fields
type ProfileForm struct {
	Name           string
	Kind           string
	Transport      string
	NetworkAddress string
	NetworkPort    string
	USBIdentifier  string
	VendorID       string
	ProductID      string
	IsDefault      bool
}

// FormFromProfile fills a form from a stored profile
func FormFromProfile(p registry.Profile) ProfileForm {
	port := ""
	if p.NetworkPort != 0 {
		port = strconv.Itoa(p.NetworkPort)
	}
	return ProfileForm{
		Name:           p.Name,
		Kind:           string(p.Kind),
		Transport:      string(p.TransportKind),
		NetworkAddress: p.NetworkAddress,
		NetworkPort:    port,
		USBIdentifier:  p.USBIdentifier,
		VendorID:       p.VendorID,
		ProductID:      p.ProductID,
		IsDefault:      p.IsDefault,
	}
}

// Patch converts the form into a full update. Enum and field checks are left to the store.
func (f ProfileForm) Patch() (registry.Patch, error) {
	port := 0
	if s := strings.TrimSpace(f.NetworkPort); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 65535 {
			return registry.Patch{}, fmt.Errorf("invalid port %q", f.NetworkPort)
		}
		port = n
	}

	name := strings.TrimSpace(f.Name)
	kind := registry.Kind(strings.ToUpper(strings.TrimSpace(f.Kind)))
	transport := registry.TransportKind(strings.ToUpper(strings.TrimSpace(f.Transport)))
	address := strings.TrimSpace(f.NetworkAddress)
	identifier := strings.TrimSpace(f.USBIdentifier)
	vendor := strings.TrimSpace(f.VendorID)
	product := strings.TrimSpace(f.ProductID)
	isDefault := f.IsDefault

	return registry.Patch{
		Name:           &name,
		Kind:           &kind,
		TransportKind:  &transport,
		NetworkAddress: &address,
		NetworkPort:    &port,
		USBIdentifier:  &identifier,
		VendorID:       &vendor,
		ProductID:      &product,
		IsDefault:      &isDefault,
	}, nil
}

// Profile converts the form into a new profile
func (f ProfileForm) Profile() (registry.Profile, error) {
	patch, err := f.Patch()
	if err != nil {
		return registry.Profile{}, err
	}
	return registry.Profile{
		Name:           *patch.Name,
		Kind:           *patch.Kind,
		TransportKind:  *patch.TransportKind,
		NetworkAddress: *patch.NetworkAddress,
		NetworkPort:    *patch.NetworkPort,
		USBIdentifier:  *patch.USBIdentifier,
		VendorID:       *patch.VendorID,
		ProductID:      *patch.ProductID,
		IsDefault:      *patch.IsDefault,
	}, nil
}

// RegistryEditor is a screen for editing printer profiles
type RegistryEditor struct {
	app      *tview.Application
	profiles command.ProfileRegistry
	form     *tview.Form
	list     *tview.List
	details  *tview.TextView
	layout   *tview.Flex

	shown     []registry.Profile
	currentID uint // 0 while creating a new profile
	onChange  func()
}

// NewRegistryEditor creates a new registry editor screen. onChange runs after every successful write.
func NewRegistryEditor(app *tview.Application, profiles command.ProfileRegistry, onChange func()) *RegistryEditor {
	r := &RegistryEditor{
		app:      app,
		profiles: profiles,
		onChange: onChange,
	}

	r.setupUI()
	return r
}

func (r *RegistryEditor) setupUI() {
	// Profile list
	r.list = tview.NewList()
	r.list.SetBorder(true)
	r.list.SetTitle("Printers")
	r.list.SetChangedFunc(func(index int, _, _ string, _ rune) {
		r.selectProfile(index)
	})
	r.list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		r.selectProfile(index)
		r.app.SetFocus(r.form)
	})

	// Details view
	r.details = tview.NewTextView()
	r.details.SetBorder(true)
	r.details.SetTitle("Printer Details")
	r.details.SetDynamicColors(true)

	// Form for editing
	r.form = tview.NewForm()
	r.form.SetBorder(true)
	r.form.SetTitle("New Printer")
	r.form.AddInputField("Name", "", 30, nil, nil)
	r.form.AddDropDown("Kind", kindOptions, 0, nil)
	r.form.AddDropDown("Transport", transportOptions, 0, nil)
	r.form.AddInputField("Address", "", 30, nil, nil)
	r.form.AddInputField("Port", "", 6, tview.InputFieldInteger, nil)
	r.form.AddInputField("USB identifier", "", 30, nil, nil)
	r.form.AddInputField("Vendor ID", "", 8, nil, nil)
	r.form.AddInputField("Product ID", "", 8, nil, nil)
	r.form.AddCheckbox("Default", false, nil)
	r.form.AddButton("Save", func() {
		r.save()
	})
	r.form.AddButton("New", func() {
		r.newProfile()
	})
	r.form.AddButton("Back", func() {
		r.app.SetFocus(r.list)
	})

	// Layout: List | Details + Form
	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(r.details, 0, 1, false).
		AddItem(r.form, 0, 2, true)

	r.layout = tview.NewFlex().
		AddItem(r.list, 0, 1, true).
		AddItem(rightPanel, 0, 2, false)

	// Key bindings
	r.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				r.Refresh()
				return nil
			case 'n':
				r.newProfile()
				r.app.SetFocus(r.form)
				return nil
			case 'e':
				if len(r.shown) > 0 {
					r.app.SetFocus(r.form)
				}
				return nil
			case 'd':
				r.setDefault()
				return nil
			case 'x':
				r.remove()
				return nil
			}
		}
		return event
	})

	r.Refresh()
}

// Refresh reloads the profile list
func (r *RegistryEditor) Refresh() {
	ctx, cancel := storeContext()
	defer cancel()

	profiles, err := r.profiles.List(ctx)
	r.list.Clear()
	if err != nil {
		r.shown = nil
		r.list.AddItem("Error loading printers", err.Error(), 0, nil)
		return
	}

	r.shown = profiles
	if len(profiles) == 0 {
		r.list.AddItem("No printers configured", "press 'n' to add one", 0, nil)
		r.newProfile()
		return
	}

	for _, p := range profiles {
		r.list.AddItem(ProfileTitle(p), ProfileSummary(p), 0, nil)
	}
	for i, p := range profiles {
		if p.ID == r.currentID {
			r.list.SetCurrentItem(i)
			r.selectProfile(i)
			return
		}
	}
	r.selectProfile(0)
}

func (r *RegistryEditor) selectProfile(index int) {
	if index < 0 || index >= len(r.shown) {
		return
	}
	p := r.shown[index]
	r.currentID = p.ID
	r.details.SetText(ProfileDetails(p) + "\n[yellow]e[white] edit  [yellow]n[white] new  [yellow]d[white] make default  [yellow]x[white] delete")
	r.form.SetTitle(fmt.Sprintf("Edit Printer #%d", p.ID))
	r.fill(FormFromProfile(p))
}

func (r *RegistryEditor) newProfile() {
	r.currentID = 0
	r.form.SetTitle("New Printer")
	r.fill(ProfileForm{Kind: string(registry.KindEpson), Transport: string(registry.TransportUSB)})
}

func (r *RegistryEditor) fill(f ProfileForm) {
	r.input("Name").SetText(f.Name)
	setOption(r.dropDown("Kind"), kindOptions, f.Kind)
	setOption(r.dropDown("Transport"), transportOptions, f.Transport)
	r.input("Address").SetText(f.NetworkAddress)
	r.input("Port").SetText(f.NetworkPort)
	r.input("USB identifier").SetText(f.USBIdentifier)
	r.input("Vendor ID").SetText(f.VendorID)
	r.input("Product ID").SetText(f.ProductID)
	r.form.GetFormItemByLabel("Default").(*tview.Checkbox).SetChecked(f.IsDefault)
}

func (r *RegistryEditor) read() ProfileForm {
	_, kind := r.dropDown("Kind").GetCurrentOption()
	_, transport := r.dropDown("Transport").GetCurrentOption()
	return ProfileForm{
		Name:           r.input("Name").GetText(),
		Kind:           kind,
		Transport:      transport,
		NetworkAddress: r.input("Address").GetText(),
		NetworkPort:    r.input("Port").GetText(),
		USBIdentifier:  r.input("USB identifier").GetText(),
		VendorID:       r.input("Vendor ID").GetText(),
		ProductID:      r.input("Product ID").GetText(),
		IsDefault:      r.form.GetFormItemByLabel("Default").(*tview.Checkbox).IsChecked(),
	}
}

func (r *RegistryEditor) save() {
	ctx, cancel := storeContext()
	defer cancel()

	form := r.read()
	var (
		saved registry.Profile
		err   error
	)
	if r.currentID == 0 {
		var p registry.Profile
		if p, err = form.Profile(); err == nil {
			saved, err = r.profiles.Create(ctx, p)
		}
	} else {
		var patch registry.Patch
		if patch, err = form.Patch(); err == nil {
			saved, err = r.profiles.Update(ctx, r.currentID, patch)
		}
	}
	if err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ Failed to save printer[white]\n\n%v", err))
		return
	}

	r.currentID = saved.ID
	r.changed()
	r.details.SetText(fmt.Sprintf("[green]✓ Saved[white]\n\n%s", ProfileDetails(saved)))
	r.app.SetFocus(r.list)
}

func (r *RegistryEditor) setDefault() {
	if r.currentID == 0 {
		return
	}
	ctx, cancel := storeContext()
	defer cancel()

	p, err := r.profiles.SetDefault(ctx, r.currentID)
	if err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ %v[white]", err))
		return
	}
	r.changed()
	r.details.SetText(fmt.Sprintf("[green]✓ Default printer is now %s[white]", p.Label()))
}

func (r *RegistryEditor) remove() {
	if r.currentID == 0 {
		return
	}
	ctx, cancel := storeContext()
	defer cancel()

	id := r.currentID
	if err := r.profiles.Delete(ctx, id); err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ %v[white]", err))
		return
	}
	r.currentID = 0
	r.changed()
	r.details.SetText(fmt.Sprintf("[green]✓ Removed printer #%d[white]", id))
}

func (r *RegistryEditor) changed() {
	r.Refresh()
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *RegistryEditor) input(label string) *tview.InputField {
	return r.form.GetFormItemByLabel(label).(*tview.InputField)
}

func (r *RegistryEditor) dropDown(label string) *tview.DropDown {
	return r.form.GetFormItemByLabel(label).(*tview.DropDown)
}

func setOption(d *tview.DropDown, options []string, value string) {
	for i, o := range options {
		if strings.EqualFold(o, value) {
			d.SetCurrentOption(i)
			return
		}
	}
	d.SetCurrentOption(0)
}

// GetRoot returns the root primitive for this screen
func (r *RegistryEditor) GetRoot() tview.Primitive {
	return r.layout
}
