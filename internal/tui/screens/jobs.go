package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/printbridge/internal/command"
)

// JobsView shows detailed information about print jobs
type JobsView struct {
	app     *tview.Application
	jobs    *command.JobHistory
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex

	shown []command.PrintJob
}

// NewJobsView creates a new jobs view screen
func NewJobsView(app *tview.Application, jobs *command.JobHistory) *JobsView {
	j := &JobsView{
		app:  app,
		jobs: jobs,
	}

	j.setupUI()
	return j
}

func (j *JobsView) setupUI() {
	// Jobs table
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Print Jobs")
	j.table.SetSelectable(true, false)
	j.table.SetFixed(1, 0)
	j.table.SetSelectedFunc(func(row, column int) {
		j.selectJob(row)
	})
	j.table.SetSelectionChangedFunc(func(row, column int) {
		j.selectJob(row)
	})

	// Details view
	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Job Details")
	j.details.SetDynamicColors(true)

	// Layout: Table | Details
	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	// Key bindings
	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				j.Refresh()
				return nil
			case 'c':
				j.clearFinished()
				return nil
			}
		}
		return event
	})

	j.Refresh()
}

// Refresh reloads the table, newest job first
func (j *JobsView) Refresh() {
	j.table.Clear()

	// Headers
	for col, title := range []string{"ID", "Kind", "Printer", "Order", "Status", "Age"} {
		j.table.SetCell(0, col, tview.NewTableCell(title).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := j.jobs.GetAllJobs()
	j.shown = make([]command.PrintJob, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		j.shown = append(j.shown, jobs[i])
	}

	for i, job := range j.shown {
		row := i + 1
		j.table.SetCell(row, 0, tview.NewTableCell(shortID(job.ID)))
		j.table.SetCell(row, 1, tview.NewTableCell(job.Kind))
		j.table.SetCell(row, 2, tview.NewTableCell(printerLabel(job)))
		j.table.SetCell(row, 3, tview.NewTableCell(job.OrderNumber))
		j.table.SetCell(row, 4, tview.NewTableCell(StatusIcon(job.Status)+" "+string(job.Status)))
		j.table.SetCell(row, 5, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(j.shown) == 0 {
		j.details.SetText("[yellow]No print jobs yet[white]")
	}
}

func (j *JobsView) selectJob(row int) {
	if row == 0 {
		return // Header row
	}
	if row-1 >= len(j.shown) {
		return
	}

	j.details.SetText(JobDetails(j.shown[row-1]) + "\n[yellow]Press 'r' to refresh, 'c' to clear finished[white]")
}

func (j *JobsView) clearFinished() {
	n := j.jobs.ClearFinished()
	j.Refresh()
	j.details.SetText(fmt.Sprintf("[green]✓ Cleared %d finished job(s)[white]", n))
}

// JobDetails renders a job for a details panel
func JobDetails(job command.PrintJob) string {
	var details strings.Builder
	details.WriteString(fmt.Sprintf("[yellow]Job ID:[white] %s\n", job.ID))
	details.WriteString(fmt.Sprintf("[yellow]Kind:[white] %s\n", job.Kind))
	details.WriteString(fmt.Sprintf("[yellow]Printer:[white] %s\n", printerLabel(job)))
	if job.OrderNumber != "" {
		details.WriteString(fmt.Sprintf("[yellow]Order:[white] %s\n", job.OrderNumber))
	}
	details.WriteString(fmt.Sprintf("[yellow]Status:[white] %s %s\n", StatusIcon(job.Status), job.Status))
	details.WriteString(fmt.Sprintf("[yellow]Created:[white] %s\n", job.CreatedAt.Format("2006-01-02 15:04:05")))
	if job.FinishedAt != nil {
		details.WriteString(fmt.Sprintf("[yellow]Took:[white] %s\n", job.FinishedAt.Sub(job.CreatedAt).Round(time.Millisecond)))
	}

	if job.Error != "" {
		details.WriteString(fmt.Sprintf("\n[red]Error (%s):[white] %s\n", job.Code, job.Error))
	}
	return details.String()
}

func printerLabel(job command.PrintJob) string {
	if job.PrinterID == 0 {
		return "-"
	}
	return fmt.Sprintf("#%d %s", job.PrinterID, job.PrinterName)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// GetRoot returns the root primitive for this screen
func (j *JobsView) GetRoot() tview.Primitive {
	return j.layout
}
