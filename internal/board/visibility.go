package board

import (
	"time"

	"crewboard/backend/internal/models"
)

// Viewer is the identity the board renders for.
type Viewer struct {
	ID   string
	Name string
	Role models.Role
}

// assignedTo matches a task against a viewer. Comparison is by assignee id
// when the gateway supplied one; the display-name match remains as a
// compatibility shim for records written before ids were denormalized.
func assignedTo(t *Task, v Viewer) bool {
	if t.AssigneeID != "" && t.AssigneeID == v.ID {
		return true
	}
	return t.Assignee != "" && (t.Assignee == v.Name || t.Assignee == v.ID)
}

// DeriveVisible returns the subset of tasks the viewer may see. Privileged
// viewers see the whole collection in its original order; everyone else sees
// only tasks assigned to them. The input is never mutated.
func DeriveVisible(all []Task, viewer Viewer) []Task {
	if viewer.Role.Privileged() {
		return all
	}

	visible := make([]Task, 0, len(all))
	for _, t := range all {
		if assignedTo(&t, viewer) {
			visible = append(visible, t)
		}
	}
	return visible
}

type FilterBucket string

const (
	BucketToday    FilterBucket = "today"
	BucketThisWeek FilterBucket = "this-week"
	BucketMine     FilterBucket = "mine"
	BucketOpen     FilterBucket = "open"
	BucketDone     FilterBucket = "done"
)

// Filters are independent predicates composed with AND. Zero values mean
// "filter inactive".
type Filters struct {
	Bucket   FilterBucket
	Priority models.Priority
	Assignee string // assignee id or display name
	Viewer   Viewer // resolves the "mine" bucket
	Now      time.Time
}

// ApplyFilters returns the tasks passing every active filter, in input order.
// Pure: the input slice is never modified.
func ApplyFilters(tasks []Task, f Filters) []Task {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchBucket(&t, f, now) {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Assignee != "" && t.AssigneeID != f.Assignee && t.Assignee != f.Assignee {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchBucket(t *Task, f Filters, now time.Time) bool {
	switch f.Bucket {
	case "":
		return true
	case BucketToday:
		if t.DueDate == nil {
			return false
		}
		y1, m1, d1 := t.DueDate.Year(), t.DueDate.Month(), t.DueDate.Day()
		y2, m2, d2 := now.Year(), now.Month(), now.Day()
		return y1 == y2 && m1 == m2 && d1 == d2
	case BucketThisWeek:
		if t.DueDate == nil {
			return false
		}
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return !t.DueDate.Before(startOfDay) && t.DueDate.Before(startOfDay.AddDate(0, 0, 7))
	case BucketMine:
		return assignedTo(t, f.Viewer)
	case BucketOpen:
		return t.Status != models.StatusDone
	case BucketDone:
		return t.Status == models.StatusDone
	default:
		return true
	}
}

// Columns holds the board's three lanes.
type Columns struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"inprogress"`
	Done       []Task `json:"done"`
}

// GroupByStatus partitions tasks into columns. The partition is stable:
// relative order inside each column matches the input.
func GroupByStatus(tasks []Task) Columns {
	cols := Columns{
		Todo:       []Task{},
		InProgress: []Task{},
		Done:       []Task{},
	}
	for _, t := range tasks {
		switch t.Status {
		case models.StatusInProgress:
			cols.InProgress = append(cols.InProgress, t)
		case models.StatusDone:
			cols.Done = append(cols.Done, t)
		default:
			cols.Todo = append(cols.Todo, t)
		}
	}
	return cols
}
