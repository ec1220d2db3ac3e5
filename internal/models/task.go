package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// NextStatus returns the successor in the toggle cycle:
// done -> todo -> inprogress -> done.
func NextStatus(s Status) Status {
	switch s {
	case StatusDone:
		return StatusTodo
	case StatusTodo:
		return StatusInProgress
	default:
		return StatusDone
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// StringList stores a []string as a single jsonb column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

type Task struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title          string     `json:"title" gorm:"not null"`
	Description    string     `json:"description"`
	Status         Status     `json:"status" gorm:"not null;default:'todo'"`
	Priority       Priority   `json:"priority" gorm:"not null;default:'medium'"`
	AssigneeID     uuid.UUID  `json:"assigneeId" gorm:"type:uuid;not null;index"`
	Assignee       string     `json:"assignee"`
	CreatorID      uuid.UUID  `json:"creatorId" gorm:"type:uuid;not null"`
	Creator        string     `json:"creator"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Tags           StringList `json:"tags" gorm:"type:jsonb;default:'[]'"`
	Subtasks       []Subtask  `json:"subtasks" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	ActualHours    *float64   `json:"actualHours,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ApplyStatus changes the status and keeps CompletedAt in lockstep:
// entering done stamps it, leaving done clears it. The two fields never
// change independently.
func (t *Task) ApplyStatus(s Status, now time.Time) {
	t.Status = s
	if s == StatusDone {
		completed := now
		t.CompletedAt = &completed
	} else {
		t.CompletedAt = nil
	}
}

func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("title is required")
	}
	if t.AssigneeID == uuid.Nil {
		return errors.New("assignee is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return errors.New("estimated hours must be non-negative")
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return errors.New("actual hours must be non-negative")
	}
	return nil
}

type Subtask struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID      uuid.UUID  `json:"taskId" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"not null"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy *uuid.UUID `json:"completedBy,omitempty" gorm:"type:uuid"`
	Position    int        `json:"position" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
