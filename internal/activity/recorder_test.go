package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type mockAppender struct {
	entries []*models.Activity
	err     error
}

func (m *mockAppender) Create(_ context.Context, a *models.Activity) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, a)
	return nil
}

type mockArchive struct {
	entries []*models.Activity
}

func (m *mockArchive) Enqueue(a *models.Activity) {
	m.entries = append(m.entries, a)
}

func TestRecord(t *testing.T) {
	store := &mockAppender{}
	rec := NewRecorder(store, nil)

	a := models.NewActivity(models.ActionProjectCreate, "user-1", models.EntityProject, "proj-1")
	rec.Record(context.Background(), a)

	if len(store.entries) != 1 {
		t.Fatalf("stored %d entries, want 1", len(store.entries))
	}
	if store.entries[0].Action != models.ActionProjectCreate {
		t.Errorf("action = %s, want project.create", store.entries[0].Action)
	}
}

func TestRecord_StoreFailureIsSwallowed(t *testing.T) {
	store := &mockAppender{err: errors.New("disk full")}
	archive := &mockArchive{}
	rec := NewRecorder(store, archive)

	a := models.NewActivity(models.ActionTaskDelete, "user-1", models.EntityTask, "task-1")
	rec.Record(context.Background(), a) // must not panic or propagate

	if len(archive.entries) != 0 {
		t.Errorf("archived %d entries after store failure, want 0", len(archive.entries))
	}
}

func TestRecord_Archives(t *testing.T) {
	store := &mockAppender{}
	archive := &mockArchive{}
	rec := NewRecorder(store, archive)

	a := models.NewActivity(models.ActionTaskCreate, "user-1", models.EntityTask, "task-1")
	rec.Record(context.Background(), a)

	if len(archive.entries) != 1 {
		t.Fatalf("archived %d entries, want 1", len(archive.entries))
	}
}

func baseTask() *models.Task {
	return &models.Task{
		ID:        "task-1",
		ProjectID: "proj-1",
		Title:     "Fix login flow",
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityMedium,
	}
}

func TestInferTaskAction(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Task)
		want   models.Action
	}{
		{
			name:   "assign",
			mutate: func(a *models.Task) { a.AssigneeID = "user-2" },
			want:   models.ActionTaskAssign,
		},
		{
			name:   "status change",
			mutate: func(a *models.Task) { a.Status = models.TaskStatusInProgress },
			want:   models.ActionTaskStatusChange,
		},
		{
			name:   "priority change",
			mutate: func(a *models.Task) { a.Priority = models.TaskPriorityUrgent },
			want:   models.ActionTaskPriority,
		},
		{
			name:   "generic update",
			mutate: func(a *models.Task) { a.Title = "Fix login flow properly" },
			want:   models.ActionTaskUpdate,
		},
		{
			name: "assignment outranks status",
			mutate: func(a *models.Task) {
				a.AssigneeID = "user-2"
				a.Status = models.TaskStatusInProgress
			},
			want: models.ActionTaskAssign,
		},
		{
			name: "status outranks priority",
			mutate: func(a *models.Task) {
				a.Status = models.TaskStatusDone
				a.Priority = models.TaskPriorityLow
			},
			want: models.ActionTaskStatusChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := baseTask()
			after := baseTask()
			tt.mutate(after)

			if got := InferTaskAction(before, after); got != tt.want {
				t.Errorf("InferTaskAction() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInferTaskAction_Unassign(t *testing.T) {
	before := baseTask()
	before.AssigneeID = "user-2"
	after := baseTask()
	after.AssigneeID = ""
	// Unassignment wins even when status moves in the same update.
	after.Status = models.TaskStatusBacklog

	if got := InferTaskAction(before, after); got != models.ActionTaskUnassign {
		t.Errorf("InferTaskAction() = %s, want task.unassign", got)
	}
}

func TestDiffTask(t *testing.T) {
	before := baseTask()
	after := baseTask()
	after.Status = models.TaskStatusDone
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	after.DueDate = &due

	changes := DiffTask(before, after)
	if changes == nil {
		t.Fatal("DiffTask returned nil for a changed task")
	}
	if changes.Before["status"] != "todo" || changes.After["status"] != "done" {
		t.Errorf("status diff = %v -> %v", changes.Before["status"], changes.After["status"])
	}
	if _, ok := changes.After["due_date"]; !ok {
		t.Error("due_date change not recorded")
	}
	if _, ok := changes.Before["title"]; ok {
		t.Error("unchanged title recorded in diff")
	}
}

func TestDiffTask_NoChanges(t *testing.T) {
	if changes := DiffTask(baseTask(), baseTask()); changes != nil {
		t.Errorf("DiffTask on identical tasks = %v, want nil", changes)
	}
}

func TestRecordTaskUpdate_NoopOnIdenticalTasks(t *testing.T) {
	store := &mockAppender{}
	rec := NewRecorder(store, nil)

	rec.RecordTaskUpdate(context.Background(), "user-1", baseTask(), baseTask())

	if len(store.entries) != 0 {
		t.Errorf("recorded %d entries for a no-op update, want 0", len(store.entries))
	}
}

func TestRecordTaskUpdate(t *testing.T) {
	store := &mockAppender{}
	rec := NewRecorder(store, nil)

	before := baseTask()
	after := baseTask()
	after.AssigneeID = "user-2"

	rec.RecordTaskUpdate(context.Background(), "user-1", before, after)

	if len(store.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(store.entries))
	}
	got := store.entries[0]
	if got.Action != models.ActionTaskAssign {
		t.Errorf("action = %s, want task.assign", got.Action)
	}
	if got.ProjectID != "proj-1" {
		t.Errorf("project_id = %s, want proj-1", got.ProjectID)
	}
	if got.Changes == nil {
		t.Error("changes not attached")
	}
}
