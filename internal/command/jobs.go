package command

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle status of a print job
type JobStatus string

const (
	JobQueued    JobStatus = "queued" // waiting for the printer lock
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// PrintJob records one print attempt
type PrintJob struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"` // receipt or test
	PrinterID   uint       `json:"printer_id,omitempty"`
	PrinterName string     `json:"printer_name,omitempty"`
	OrderNumber string     `json:"order_number,omitempty"`
	Status      JobStatus  `json:"status"`
	Code        string     `json:"code,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the job reached a terminal status
func (j PrintJob) Finished() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// JobHistory keeps the most recent print jobs in memory, oldest first
type JobHistory struct {
	jobs  []*PrintJob
	limit int
	mu    sync.Mutex
}

// NewJobHistory creates a history holding at most limit jobs
func NewJobHistory(limit int) *JobHistory {
	if limit <= 0 {
		limit = 200
	}
	return &JobHistory{
		jobs:  make([]*PrintJob, 0),
		limit: limit,
	}
}

// Start records a new job and returns a copy of it
func (h *JobHistory) Start(kind, orderNumber string, now time.Time) PrintJob {
	h.mu.Lock()
	defer h.mu.Unlock()

	job := &PrintJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		OrderNumber: orderNumber,
		Status:      JobQueued,
		CreatedAt:   now,
	}
	h.jobs = append(h.jobs, job)
	h.trim()

	return *job
}

// Update applies fn to the stored job. It is a no-op if the job was evicted.
func (h *JobHistory) Update(id string, fn func(*PrintJob)) (PrintJob, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, job := range h.jobs {
		if job.ID == id {
			fn(job)
			return *job, true
		}
	}
	return PrintJob{}, false
}

// trim drops the oldest finished jobs over the limit. Jobs in progress are kept.
func (h *JobHistory) trim() {
	excess := len(h.jobs) - h.limit
	if excess <= 0 {
		return
	}

	filtered := make([]*PrintJob, 0, len(h.jobs))
	for _, job := range h.jobs {
		if excess > 0 && job.Finished() {
			excess--
			continue
		}
		filtered = append(filtered, job)
	}
	h.jobs = filtered
}

// GetJob returns a job by ID
func (h *JobHistory) GetJob(jobID string) *PrintJob {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, job := range h.jobs {
		if job.ID == jobID {
			// Return a copy
			jobCopy := *job
			return &jobCopy
		}
	}

	return nil
}

// GetAllJobs returns copies of all jobs, oldest first
func (h *JobHistory) GetAllJobs() []PrintJob {
	h.mu.Lock()
	defer h.mu.Unlock()

	jobs := make([]PrintJob, len(h.jobs))
	for i, job := range h.jobs {
		jobs[i] = *job
	}

	return jobs
}

// ClearFinished removes completed and failed jobs and returns how many were removed
func (h *JobHistory) ClearFinished() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	filtered := make([]*PrintJob, 0)
	for _, job := range h.jobs {
		if !job.Finished() {
			filtered = append(filtered, job)
		}
	}

	removed := len(h.jobs) - len(filtered)
	h.jobs = filtered
	return removed
}
