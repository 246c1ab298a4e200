// Package tui is the in-process console dashboard of the print server
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/tui/screens"
)

// TViewApp is the main TUI application using tview
type TViewApp struct {
	App          *tview.Application
	profiles     command.ProfileRegistry
	orchestrator *command.Orchestrator
	executor     *command.Executor
	addr         string

	// Main layout
	flex *tview.Flex

	// Panels
	printersList *tview.List
	jobsTable    *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	// State
	logs        *logBuffer
	startTime   time.Time
	unsubscribe func()

	// Screens
	currentScreen  string // "main", "registry", "devices", "jobs", "print"
	registryScreen *screens.RegistryEditor
	devicesScreen  *screens.DevicesView
	jobsScreen     *screens.JobsView
	printScreen    *screens.PrintBuilder
}

// NewTViewApp creates a new tview-based TUI. addr is the API listen address shown in the status panel.
func NewTViewApp(profiles command.ProfileRegistry, orchestrator *command.Orchestrator, addr string) *TViewApp {
	app := tview.NewApplication()

	t := &TViewApp{
		App:           app,
		profiles:      profiles,
		orchestrator:  orchestrator,
		executor:      command.NewExecutor(profiles, orchestrator),
		addr:          addr,
		logs:          newLogBuffer(200),
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.setupScreens()
	return t
}

func (t *TViewApp) setupScreens() {
	t.registryScreen = screens.NewRegistryEditor(t.App, t.profiles, func() {
		t.AddLog("Printer profiles changed", "info")
	})
	t.devicesScreen = screens.NewDevicesView(t.App, t.profiles, t.orchestrator)
	t.jobsScreen = screens.NewJobsView(t.App, t.orchestrator.Jobs())
	t.printScreen = screens.NewPrintBuilder(t.App, t.profiles, t.orchestrator)
}

func (t *TViewApp) setupUI() {
	// Create panels
	t.printersList = tview.NewList()
	t.printersList.SetBorder(true)
	t.printersList.SetTitle("Printers")

	t.jobsTable = tview.NewTable()
	t.jobsTable.SetBorder(true)
	t.jobsTable.SetTitle("Recent Jobs")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Server Status")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Server Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	// Top row: Printers, Jobs, Status
	topRow := tview.NewFlex().
		AddItem(t.printersList, 0, 1, false).
		AddItem(t.jobsTable, 0, 1, false).
		AddItem(t.statusBox, 0, 1, false)

	// Bottom: Logs and command
	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	// Main layout
	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	// Set up key bindings
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Handle screen navigation
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// Typing a command: only Esc leaves the input
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.printersList)
				return nil
			}
			return event
		}

		// Main screen key bindings (when command input doesn't have focus)
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 'r':
				t.showScreen("registry")
				return nil
			case 'd':
				t.showScreen("devices")
				return nil
			case 'j':
				t.showScreen("jobs")
				return nil
			case 'p':
				t.showScreen("print")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the TUI and blocks until the user quits or ctx is done
func (t *TViewApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initial refresh
	t.refreshAll()

	t.unsubscribe = t.orchestrator.Subscribe(t.onPrintEvent)
	defer t.unsubscribe()

	go t.refreshLoop(ctx)
	go func() {
		<-ctx.Done()
		t.App.Stop()
	}()

	t.AddLog("🖨️  Print server starting...", "info")

	return t.App.Run()
}

// refreshLoop redraws the log panel when it changes and the other panels every two seconds
func (t *TViewApp) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.logs.dirty:
			t.App.QueueUpdateDraw(t.renderLogs)
		case <-ticker.C:
			t.App.QueueUpdateDraw(t.refreshAll)
		}
	}
}

func (t *TViewApp) onPrintEvent(ev command.Event) {
	job := ev.Job
	switch ev.Type {
	case command.EventPrintStarted:
		t.AddLog(fmt.Sprintf("Printing %s job %s on #%d %s", job.Kind, shortID(job.ID), job.PrinterID, job.PrinterName), "info")
	case command.EventPrintFinished:
		if job.Status == command.JobFailed {
			t.AddLog(fmt.Sprintf("Job %s failed (%s): %s", shortID(job.ID), job.Code, job.Error), "error")
		} else {
			t.AddLog(fmt.Sprintf("Job %s completed", shortID(job.ID)), "info")
		}
	}
}

func (t *TViewApp) refreshAll() {
	t.refreshPrinters()
	t.refreshJobs()
	t.refreshStatus()
}

func (t *TViewApp) refreshPrinters() {
	current := t.printersList.GetCurrentItem()
	t.printersList.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	profiles, err := t.profiles.List(ctx)
	if err != nil {
		t.printersList.AddItem("Error loading printers", err.Error(), 0, nil)
		return
	}

	if len(profiles) == 0 {
		t.printersList.AddItem("No printers configured", "press 'r' to open the registry", 0, nil)
		return
	}

	for _, p := range profiles {
		t.printersList.AddItem(screens.ProfileTitle(p), screens.ProfileSummary(p), 0, nil)
	}
	if current < len(profiles) {
		t.printersList.SetCurrentItem(current)
	}
}

func (t *TViewApp) refreshJobs() {
	t.jobsTable.Clear()

	// Header
	for col, title := range []string{"Status", "Printer", "Order", "Age"} {
		t.jobsTable.SetCell(0, col, tview.NewTableCell(title).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := t.orchestrator.Jobs().GetAllJobs()

	// Count stats
	counts := make(map[command.JobStatus]int)
	for _, job := range jobs {
		counts[job.Status]++
	}

	// Newest first
	row := 1
	for i := len(jobs) - 1; i >= 0; i-- {
		job := jobs[i]
		printer := "-"
		if job.PrinterID != 0 {
			printer = fmt.Sprintf("#%d", job.PrinterID)
		}

		t.jobsTable.SetCell(row, 0, tview.NewTableCell(screens.StatusIcon(job.Status)+" "+string(job.Status)))
		t.jobsTable.SetCell(row, 1, tview.NewTableCell(printer))
		t.jobsTable.SetCell(row, 2, tview.NewTableCell(job.OrderNumber))
		t.jobsTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
		row++
	}

	// Add summary row
	if len(jobs) > 0 {
		summary := fmt.Sprintf("[%d] Waiting [%d] Printing [%d] Completed [%d] Failed",
			counts[command.JobQueued], counts[command.JobPrinting], counts[command.JobCompleted], counts[command.JobFailed])
		cell := tview.NewTableCell(tview.Escape(summary))
		cell.SetSelectable(false)
		t.jobsTable.SetCell(row, 0, cell)
	}
}

func (t *TViewApp) refreshStatus() {
	uptime := time.Since(t.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	status := fmt.Sprintf(`[green]🟢 Running[white]

Uptime: %dh %dm
API: %s
Jobs: %d recorded`, hours, minutes, t.addr, len(t.orchestrator.Jobs().GetAllJobs()))

	t.statusBox.SetText(status)
}

func (t *TViewApp) renderLogs() {
	t.logsArea.SetText(t.logs.text())
	t.logsArea.ScrollToEnd()
}

func (t *TViewApp) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	t.AddLog(cmd, "command")

	switch strings.ToLower(parts[0]) {
	case "registry", "r":
		t.showScreen("registry")

	case "devices", "d":
		t.showScreen("devices")

	case "jobs", "j":
		t.showScreen("jobs")

	case "builder", "b":
		t.showScreen("print")

	case "status", "s":
		t.refreshStatus()

	case "clear":
		t.logs.clear()

	case "refresh":
		t.AddLog("Refreshing all panels...", "info")
		t.refreshAll()

	case "quit", "q":
		t.App.Stop()

	case "help", "h", "?":
		t.showHelp()
		t.runCommand("help")

	default:
		t.runCommand(cmd)
	}
}

// runCommand sends cmd to the command executor off the UI goroutine
func (t *TViewApp) runCommand(cmd string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		result := t.executor.Execute(ctx, cmd)
		if !result.Success {
			t.AddLog(result.Error, "error")
			return
		}
		if result.Message != "" {
			t.AddLog(result.Message, "info")
		}
		if printers, ok := result.Data["printers"].([]registry.Profile); ok {
			for _, p := range printers {
				t.AddLog(screens.ProfileTitle(p)+" • "+screens.ProfileSummary(p), "info")
			}
		}
		t.App.QueueUpdateDraw(t.refreshAll)
	}()
}

func (t *TViewApp) showHelp() {
	help := []string{
		"Console commands:",
		"  registry, r          - Open registry editor",
		"  devices, d           - Probe configured printers",
		"  jobs, j              - Job history",
		"  builder, b           - Print a receipt file",
		"  status, s            - Refresh server status",
		"  clear                - Clear logs",
		"  refresh              - Refresh all panels",
		"  quit, q              - Exit application",
		"",
		"Keyboard shortcuts:",
		"  :   - Focus the command line",
		"  r   - Registry editor",
		"  d   - Devices view",
		"  j   - Jobs view",
		"  p   - Print builder",
		"  Esc - Back to main",
		"",
	}
	t.AddLog(strings.Join(help, "\n"), "info")
}

func (t *TViewApp) showScreen(screenName string) {
	t.currentScreen = screenName

	switch screenName {
	case "registry":
		t.registryScreen.Refresh()
		t.App.SetRoot(t.registryScreen.GetRoot(), true)
		t.App.SetFocus(t.registryScreen.GetRoot())
	case "devices":
		t.devicesScreen.Refresh()
		t.App.SetRoot(t.devicesScreen.GetRoot(), true)
		t.App.SetFocus(t.devicesScreen.GetRoot())
	case "jobs":
		t.jobsScreen.Refresh()
		t.App.SetRoot(t.jobsScreen.GetRoot(), true)
		t.App.SetFocus(t.jobsScreen.GetRoot())
	case "print":
		t.printScreen.Refresh()
		t.App.SetRoot(t.printScreen.GetRoot(), true)
		t.App.SetFocus(t.printScreen.GetRoot())
	case "main":
		t.showMainScreen()
	}
}

func (t *TViewApp) showMainScreen() {
	t.currentScreen = "main"
	t.refreshAll()
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.commandInput)
}

// AddLog adds a log entry. Safe from any goroutine.
func (t *TViewApp) AddLog(message string, level string) {
	t.logs.add(message, level)
}

// LogWriter creates an io.Writer that writes to the logs panel
func (t *TViewApp) LogWriter() io.Writer {
	return &logWriter{buf: t.logs}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
