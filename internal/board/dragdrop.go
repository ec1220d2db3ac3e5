package board

import (
	"context"
	"sync"

	"crewboard/backend/internal/models"
)

// DragController tracks one drag gesture across the board's columns and
// converts a drop into a status mutation. It carries no task data of its own;
// the store stays the single writer.
//
// Hovering is tracked with a depth counter because enter/leave events from
// nested drop regions arrive interleaved: entering a child region fires a
// second enter before the parent's leave.
type DragController struct {
	store *Store

	mu       sync.Mutex
	taskID   string
	hover    models.Status
	hovering bool
	depth    int
}

func NewDragController(store *Store) *DragController {
	return &DragController{store: store}
}

// Begin starts a gesture for the given task. A new Begin replaces any
// gesture still in progress.
func (d *DragController) Begin(taskID string) {
	d.mu.Lock()
	d.taskID = taskID
	d.hovering = false
	d.depth = 0
	d.mu.Unlock()
}

// Enter records the pointer moving over a column's drop region.
func (d *DragController) Enter(column models.Status) {
	d.mu.Lock()
	if d.taskID == "" {
		d.mu.Unlock()
		return
	}
	if d.hovering && d.hover == column {
		d.depth++
	} else {
		d.hover = column
		d.hovering = true
		d.depth = 1
	}
	d.mu.Unlock()
}

// Leave records the pointer leaving a drop region. The column stays the
// active target until the outermost region is left.
func (d *DragController) Leave(column models.Status) {
	d.mu.Lock()
	if d.hovering && d.hover == column {
		d.depth--
		if d.depth <= 0 {
			d.hovering = false
			d.depth = 0
		}
	}
	d.mu.Unlock()
}

// Hovering reports the column currently highlighted as the drop target.
func (d *DragController) Hovering() (models.Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hover, d.hovering
}

// Dragging reports the task id of the gesture in progress.
func (d *DragController) Dragging() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.taskID, d.taskID != ""
}

// Drop ends the gesture on the given column. Dropping a task onto the column
// it already occupies is a no-op and returns (nil, nil); otherwise the status
// change goes through the store's single mutation path and the returned
// mutation settles like any other.
func (d *DragController) Drop(ctx context.Context, column models.Status) (*Mutation, error) {
	d.mu.Lock()
	taskID := d.taskID
	d.taskID = ""
	d.hovering = false
	d.depth = 0
	d.mu.Unlock()

	if taskID == "" {
		return nil, nil
	}
	return d.store.SetStatus(ctx, taskID, column)
}

// Cancel abandons the gesture without mutating anything.
func (d *DragController) Cancel() {
	d.mu.Lock()
	d.taskID = ""
	d.hovering = false
	d.depth = 0
	d.mu.Unlock()
}
