package command

import (
	"testing"
	"time"
)

func TestJobHistory_EvictsOldestFinished(t *testing.T) {
	h := NewJobHistory(2)
	now := time.Now()

	a := h.Start(JobKindReceipt, "A", now)
	h.Update(a.ID, func(j *PrintJob) { j.Status = JobCompleted })
	b := h.Start(JobKindReceipt, "B", now)
	c := h.Start(JobKindReceipt, "C", now)

	if h.GetJob(a.ID) != nil {
		t.Errorf("Expected finished job %s to be evicted", a.ID)
	}
	if h.GetJob(b.ID) == nil || h.GetJob(c.ID) == nil {
		t.Fatal("Expected unfinished jobs to be kept")
	}

	// Unfinished jobs are never evicted, even over the limit
	h.Start(JobKindReceipt, "D", now)
	if len(h.GetAllJobs()) != 3 {
		t.Errorf("Expected 3 jobs, got %d", len(h.GetAllJobs()))
	}
}

func TestJobHistory_ClearFinished(t *testing.T) {
	h := NewJobHistory(10)
	now := time.Now()

	done := h.Start(JobKindTest, "", now)
	h.Update(done.ID, func(j *PrintJob) { j.Status = JobFailed })
	h.Start(JobKindTest, "", now)

	if n := h.ClearFinished(); n != 1 {
		t.Errorf("Expected 1 cleared job, got %d", n)
	}
	if len(h.GetAllJobs()) != 1 {
		t.Errorf("Expected 1 remaining job, got %d", len(h.GetAllJobs()))
	}
}

func TestJobHistory_GetJobReturnsCopy(t *testing.T) {
	h := NewJobHistory(10)
	job := h.Start(JobKindReceipt, "A", time.Now())

	got := h.GetJob(job.ID)
	got.Status = JobCompleted
	if h.GetJob(job.ID).Status != JobQueued {
		t.Error("Expected GetJob to return a copy")
	}
	if _, ok := h.Update("missing", func(*PrintJob) {}); ok {
		t.Error("Expected update of a missing job to report false")
	}
}
