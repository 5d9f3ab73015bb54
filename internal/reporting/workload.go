// Package reporting aggregates tasks and activity into dashboard and
// workload summaries. All functions are pure; callers load the rows.
package reporting

import (
	"sort"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// AssigneeWorkload summarizes the open tasks held by one assignee.
// UserID is empty for the unassigned bucket.
type AssigneeWorkload struct {
	UserID         string                      `json:"user_id,omitempty"`
	Name           string                      `json:"name,omitempty"`
	TaskCount      int                         `json:"task_count"`
	EstimatedHours float64                     `json:"estimated_hours"`
	ByPriority     map[models.TaskPriority]int `json:"by_priority"`
	ByStatus       map[models.TaskStatus]int   `json:"by_status"`
}

// BuildWorkload buckets a project's tasks by assignee. Terminal tasks
// are excluded. Buckets are ordered by task count descending, ties
// broken by user ID so the output is stable.
func BuildWorkload(tasks []*models.Task) []*AssigneeWorkload {
	buckets := make(map[string]*AssigneeWorkload)

	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		b, ok := buckets[t.AssigneeID]
		if !ok {
			b = &AssigneeWorkload{
				UserID:     t.AssigneeID,
				ByPriority: make(map[models.TaskPriority]int, len(models.TaskPriorities)),
				ByStatus:   make(map[models.TaskStatus]int),
			}
			// Zero-fill so every bucket reports all four priorities.
			for _, p := range models.TaskPriorities {
				b.ByPriority[p] = 0
			}
			buckets[t.AssigneeID] = b
		}
		b.TaskCount++
		b.EstimatedHours += t.EstimatedHours
		b.ByPriority[t.Priority]++
		b.ByStatus[t.Status]++
	}

	out := make([]*AssigneeWorkload, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskCount != out[j].TaskCount {
			return out[i].TaskCount > out[j].TaskCount
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// StatusBreakdown counts tasks per status, including terminal ones.
func StatusBreakdown(tasks []*models.Task) map[models.TaskStatus]int {
	out := make(map[models.TaskStatus]int)
	for _, t := range tasks {
		out[t.Status]++
	}
	return out
}

// PriorityBreakdown counts open tasks per priority.
func PriorityBreakdown(tasks []*models.Task) map[models.TaskPriority]int {
	out := make(map[models.TaskPriority]int)
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		out[t.Priority]++
	}
	return out
}
