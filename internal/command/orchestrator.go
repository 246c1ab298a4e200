package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thereceipt/printbridge/internal/metrics"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/renderer"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
	"go.uber.org/zap"
)

// MsgNoPrinter is the message returned when no profile can be selected
const MsgNoPrinter = "no printer configured"

// Result codes that do not come from the printer package
const (
	CodeNotFound       = "not_found"
	CodeInvalidPayload = "invalid_payload"
	CodePrinterBusy    = "printer_busy"
	CodeInternal       = "internal_error"
)

// Job kinds
const (
	JobKindReceipt = "receipt"
	JobKindTest    = "test"
)

// ProfileStore is the part of the registry the orchestrator reads
type ProfileStore interface {
	Get(ctx context.Context, id uint) (registry.Profile, error)
	GetDefault(ctx context.Context) (registry.Profile, error)
}

// LayoutSource supplies the current receipt layout
type LayoutSource interface {
	Layout() renderer.Layout
}

// PrintResult is the outcome of one print request. It is never a panic or a bare error.
type PrintResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	PrinterID uint   `json:"printer_id,omitempty"`
}

// EventType names orchestrator events
type EventType string

const (
	EventPrintStarted  EventType = "print_started"
	EventPrintFinished EventType = "print_finished"
)

// Event is published to subscribers when a job starts printing and when it finishes
type Event struct {
	Type EventType `json:"type"`
	Job  PrintJob  `json:"job"`
}

// OrchestratorOptions tunes the orchestrator
type OrchestratorOptions struct {
	Session printer.SessionOptions
	Now     func() time.Time
}

// Orchestrator runs print requests end to end: profile lookup, transport
// resolution, rendering and one printer session per request.
type Orchestrator struct {
	store   ProfileStore
	layout  LayoutSource
	drivers printer.Drivers
	locks   *printer.Locks
	jobs    *JobHistory
	metrics *metrics.Metrics
	opts    OrchestratorOptions
	log     *zap.Logger

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSub     int
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(
	store ProfileStore,
	layout LayoutSource,
	drivers printer.Drivers,
	locks *printer.Locks,
	jobs *JobHistory,
	m *metrics.Metrics,
	opts OrchestratorOptions,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if locks == nil {
		locks = printer.NewLocks()
	}
	if jobs == nil {
		jobs = NewJobHistory(0)
	}
	return &Orchestrator{
		store:       store,
		layout:      layout,
		drivers:     drivers,
		locks:       locks,
		jobs:        jobs,
		metrics:     m,
		opts:        opts,
		log:         log,
		subscribers: make(map[int]func(Event)),
	}
}

// Jobs returns the job history
func (o *Orchestrator) Jobs() *JobHistory {
	return o.jobs
}

// Subscribe registers fn for print events. fn runs on the printing goroutine and must not block.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn

	return func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		delete(o.subscribers, id)
	}
}

func (o *Orchestrator) publish(ev Event) {
	o.subMu.RLock()
	defer o.subMu.RUnlock()
	for _, fn := range o.subscribers {
		fn(ev)
	}
}

// Render builds the command sequence for p with the current layout
func (o *Orchestrator) Render(p *receiptformat.Payload) renderer.Sequence {
	return renderer.New(o.currentLayout(), o.opts.Now).Render(p)
}

func (o *Orchestrator) currentLayout() renderer.Layout {
	if o.layout == nil {
		return renderer.DefaultLayout()
	}
	return o.layout.Layout()
}

// PrintReceipt prints payload on the profile targetID, or on the default profile when targetID is nil
func (o *Orchestrator) PrintReceipt(ctx context.Context, payload *receiptformat.Payload, targetID *uint) PrintResult {
	return o.print(ctx, JobKindReceipt, payload, targetID)
}

// TestPrint prints the sample receipt
func (o *Orchestrator) TestPrint(ctx context.Context, targetID *uint) PrintResult {
	return o.print(ctx, JobKindTest, receiptformat.Sample(), targetID)
}

func (o *Orchestrator) print(ctx context.Context, kind string, payload *receiptformat.Payload, targetID *uint) PrintResult {
	orderNumber := ""
	if payload != nil {
		orderNumber = payload.OrderNumber
	}
	job := o.jobs.Start(kind, orderNumber, o.opts.Now())
	log := o.log.With(zap.String("job_id", job.ID), zap.String("kind", kind))

	if err := receiptformat.Validate(payload); err != nil {
		return o.finish(log, job.ID, nil, CodeInvalidPayload, err)
	}

	profile, err := o.lookup(ctx, targetID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			log.Warn("No printer for print request", zap.Error(err))
			return o.finishMessage(log, job.ID, nil, CodeNotFound, MsgNoPrinter, err)
		}
		return o.finish(log, job.ID, nil, CodeInternal, err)
	}
	log = log.With(zap.Uint("printer_id", profile.ID), zap.String("printer", profile.Name))
	o.jobs.Update(job.ID, func(j *PrintJob) {
		j.PrinterID = profile.ID
		j.PrinterName = profile.Name
	})

	desc, err := printer.Resolve(profile)
	if err != nil {
		return o.finish(log, job.ID, &profile, printer.ErrorCode(err), err)
	}
	dialect, err := printer.DialectFor(profile.Kind)
	if err != nil {
		return o.finish(log, job.ID, &profile, printer.ErrorCode(err), err)
	}
	driver, err := o.drivers.For(desc)
	if err != nil {
		return o.finish(log, job.ID, &profile, printer.ErrorCode(err), err)
	}

	// Rendering needs no connection, so it happens before waiting on the printer
	seq := o.Render(payload)

	waitStart := time.Now()
	release, err := o.locks.Acquire(ctx, profile.ID)
	if err != nil {
		return o.finish(log, job.ID, &profile, CodePrinterBusy, fmt.Errorf("printer busy: %w", err))
	}
	defer release()
	o.metrics.ObserveLockWait(time.Since(waitStart))

	started, _ := o.jobs.Update(job.ID, func(j *PrintJob) { j.Status = JobPrinting })
	o.publish(Event{Type: EventPrintStarted, Job: started})

	start := time.Now()
	done := o.metrics.PrintStarted()
	err = o.transmit(ctx, driver, desc, dialect, seq, log)
	done()

	result := metrics.ResultOK
	if err != nil {
		result = printer.ErrorCode(err)
	}
	o.metrics.ObservePrint(string(profile.Kind), string(profile.TransportKind), result, time.Since(start))

	if err != nil {
		return o.finish(log, job.ID, &profile, printer.ErrorCode(err), err)
	}
	return o.finish(log, job.ID, &profile, "", nil)
}

// transmit runs one session: open, health check, transmit, close
func (o *Orchestrator) transmit(ctx context.Context, driver printer.Driver, desc printer.Descriptor, dialect printer.Dialect, seq renderer.Sequence, log *zap.Logger) error {
	session := printer.NewSession(driver, desc, dialect, o.opts.Session, log.Named("session"))
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return err
	}
	if err := session.CheckHealth(ctx); err != nil {
		return err
	}
	return session.Transmit(ctx, seq)
}

// Probe opens a session to the profile and runs the health check without printing.
// It takes the profile lock, so it never interleaves with a print, and records no job.
func (o *Orchestrator) Probe(ctx context.Context, targetID *uint) PrintResult {
	log := o.log.With(zap.String("kind", "probe"))

	profile, err := o.lookup(ctx, targetID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return PrintResult{Message: MsgNoPrinter, Code: CodeNotFound}
		}
		return PrintResult{Message: err.Error(), Code: CodeInternal}
	}

	fail := func(code string, err error) PrintResult {
		log.Warn("Printer probe failed", zap.Uint("printer_id", profile.ID), zap.String("code", code), zap.Error(err))
		return PrintResult{Message: err.Error(), Code: code, PrinterID: profile.ID}
	}

	desc, err := printer.Resolve(profile)
	if err != nil {
		return fail(printer.ErrorCode(err), err)
	}
	dialect, err := printer.DialectFor(profile.Kind)
	if err != nil {
		return fail(printer.ErrorCode(err), err)
	}
	driver, err := o.drivers.For(desc)
	if err != nil {
		return fail(printer.ErrorCode(err), err)
	}

	release, err := o.locks.Acquire(ctx, profile.ID)
	if err != nil {
		return fail(CodePrinterBusy, fmt.Errorf("printer busy: %w", err))
	}
	defer release()

	session := printer.NewSession(driver, desc, dialect, o.opts.Session, log.Named("session"))
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return fail(printer.ErrorCode(err), err)
	}
	if err := session.CheckHealth(ctx); err != nil {
		return fail(printer.ErrorCode(err), err)
	}

	return PrintResult{
		Success:   true,
		Message:   fmt.Sprintf("Printer ready: %s", profile.Label()),
		PrinterID: profile.ID,
	}
}

func (o *Orchestrator) lookup(ctx context.Context, targetID *uint) (registry.Profile, error) {
	if targetID != nil {
		return o.store.Get(ctx, *targetID)
	}
	return o.store.GetDefault(ctx)
}

func (o *Orchestrator) finish(log *zap.Logger, jobID string, profile *registry.Profile, code string, err error) PrintResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return o.finishMessage(log, jobID, profile, code, msg, err)
}

func (o *Orchestrator) finishMessage(log *zap.Logger, jobID string, profile *registry.Profile, code, msg string, err error) PrintResult {
	now := o.opts.Now()
	res := PrintResult{JobID: jobID}
	if profile != nil {
		res.PrinterID = profile.ID
	}

	if err == nil {
		res.Success = true
		res.Message = fmt.Sprintf("Printed on %s", profile.Label())
	} else {
		if code == "" {
			code = CodeInternal
		}
		res.Code = code
		res.Message = msg
	}

	job, _ := o.jobs.Update(jobID, func(j *PrintJob) {
		j.FinishedAt = &now
		if err == nil {
			j.Status = JobCompleted
			return
		}
		j.Status = JobFailed
		j.Code = code
		j.Error = msg
	})

	if err == nil {
		log.Info("Print job completed")
	} else {
		log.Warn("Print job failed", zap.String("code", code), zap.Error(err))
	}
	o.publish(Event{Type: EventPrintFinished, Job: job})

	return res
}
