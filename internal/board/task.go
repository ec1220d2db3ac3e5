// Package board implements the client-side task board: a remote gateway over
// the task API, an optimistic mutation store with rollback, pure
// visibility/filter derivations and the drag-and-drop status reducer.
package board

import (
	"strings"
	"time"

	"crewboard/backend/internal/models"

	"github.com/gofrs/uuid"
)

// Subtask mirrors the wire shape of a server subtask.
type Subtask struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
	Position    int        `json:"position"`
}

// Task is the client-side task document. IDs are opaque strings: either a
// server uuid or a temporary id minted during optimistic creation.
type Task struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         models.Status   `json:"status"`
	Priority       models.Priority `json:"priority"`
	AssigneeID     string          `json:"assigneeId"`
	Assignee       string          `json:"assignee"`
	CreatorID      string          `json:"creatorId"`
	Creator        string          `json:"creator"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	Tags           []string        `json:"tags"`
	Subtasks       []Subtask       `json:"subtasks"`
	EstimatedHours *float64        `json:"estimatedHours,omitempty"`
	ActualHours    *float64        `json:"actualHours,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy; snapshots taken for rollback must not share
// memory with the live collection.
func (t *Task) Clone() *Task {
	clone := *t
	if t.DueDate != nil {
		due := *t.DueDate
		clone.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		clone.CompletedAt = &completed
	}
	if t.EstimatedHours != nil {
		est := *t.EstimatedHours
		clone.EstimatedHours = &est
	}
	if t.ActualHours != nil {
		act := *t.ActualHours
		clone.ActualHours = &act
	}
	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}
	if t.Subtasks != nil {
		clone.Subtasks = make([]Subtask, len(t.Subtasks))
		for i, st := range t.Subtasks {
			if st.CompletedAt != nil {
				completed := *st.CompletedAt
				st.CompletedAt = &completed
			}
			clone.Subtasks[i] = st
		}
	}
	return &clone
}

// ApplyStatus mirrors models.Task.ApplyStatus for the client document:
// status and CompletedAt change together or not at all.
func (t *Task) ApplyStatus(s models.Status, now time.Time) {
	t.Status = s
	if s == models.StatusDone {
		completed := now
		t.CompletedAt = &completed
	} else {
		t.CompletedAt = nil
	}
}

const tempIDPrefix = "tmp-"

// NewTempID mints a client-side id for an optimistically created task. The
// prefix keeps it distinct from every server-assigned uuid.
func NewTempID() string {
	return tempIDPrefix + uuid.Must(uuid.NewV4()).String()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
