// Package activity records the append-only audit ledger. Recording is
// best-effort: a failed append is logged and counted but never fails
// the mutation that triggered it.
package activity

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
)

// Appender persists audit entries. Satisfied by the storage layer.
type Appender interface {
	Create(ctx context.Context, a *models.Activity) error
}

// Archiver receives a copy of each recorded entry for long-term
// retention. Enqueue must not block.
type Archiver interface {
	Enqueue(a *models.Activity)
}

// Recorder appends entries to the audit ledger.
type Recorder struct {
	store   Appender
	archive Archiver // may be nil
}

// NewRecorder creates a Recorder. archive may be nil when no archive
// backend is configured.
func NewRecorder(store Appender, archive Archiver) *Recorder {
	return &Recorder{store: store, archive: archive}
}

// Record appends one entry to the ledger. Failures are logged and
// counted; the caller's mutation has already succeeded and must not be
// rolled back over a missing audit row.
func (r *Recorder) Record(ctx context.Context, a *models.Activity) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if err := r.store.Create(ctx, a); err != nil {
		metrics.ActivityRecordFailures.Inc()
		log.Printf("activity record failed: action=%s entity=%s/%s: %v",
			a.Action, a.EntityType, a.EntityID, err)
		return
	}
	metrics.ActivitiesRecordedTotal.Inc()

	if r.archive != nil {
		r.archive.Enqueue(a)
	}
}

// RecordTaskUpdate classifies and records a task mutation from its
// before/after states. No entry is written when nothing changed.
func (r *Recorder) RecordTaskUpdate(ctx context.Context, actorID string, before, after *models.Task) {
	changes := DiffTask(before, after)
	if changes == nil {
		return
	}

	a := models.NewActivity(InferTaskAction(before, after), actorID, models.EntityTask, after.ID)
	a.ProjectID = after.ProjectID
	a.Changes = changes
	r.Record(ctx, a)
}
