package board

import (
	"context"
	"testing"

	"crewboard/backend/internal/models"
)

func TestDragDropMovesTask(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Begin("t1")
	drag.Enter(models.StatusInProgress)

	m, err := drag.Drop(context.Background(), models.StatusInProgress)
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if m == nil {
		t.Fatal("Expected a mutation from a cross-column drop")
	}

	got, _ := store.Get("t1")
	if got.Status != models.StatusInProgress {
		t.Errorf("Expected optimistic move to inprogress, got %s", got.Status)
	}

	if err := waitSettle(t, m); err != nil {
		t.Errorf("Expected drop to settle cleanly, got %v", err)
	}

	if _, dragging := drag.Dragging(); dragging {
		t.Error("Expected the gesture cleared after drop")
	}
}

func TestDragDropSameColumnIsNoOp(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Begin("t1")
	m, err := drag.Drop(context.Background(), models.StatusTodo)
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if m != nil {
		t.Error("Expected nil mutation for a same-column drop")
	}
	if gw.callCount("updateStatus") != 0 {
		t.Error("Expected no network call for a same-column drop")
	}
}

func TestDragDropWithoutGesture(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	m, err := drag.Drop(context.Background(), models.StatusDone)
	if err != nil || m != nil {
		t.Errorf("Expected a drop with no gesture to be ignored, got m=%v err=%v", m, err)
	}
}

func TestDragCancel(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Begin("t1")
	drag.Enter(models.StatusDone)
	drag.Cancel()

	if _, dragging := drag.Dragging(); dragging {
		t.Error("Expected the gesture cleared after cancel")
	}
	if _, hovering := drag.Hovering(); hovering {
		t.Error("Expected hover cleared after cancel")
	}

	got, _ := store.Get("t1")
	if got.Status != models.StatusTodo {
		t.Errorf("Expected cancel to mutate nothing, got %s", got.Status)
	}
}

func TestDragHoverDepth(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Begin("t1")

	// Nested drop regions fire a second enter before the parent's leave.
	drag.Enter(models.StatusDone)
	drag.Enter(models.StatusDone)
	drag.Leave(models.StatusDone)

	if col, hovering := drag.Hovering(); !hovering || col != models.StatusDone {
		t.Error("Expected the column to stay hovered while a nested region holds it")
	}

	drag.Leave(models.StatusDone)
	if _, hovering := drag.Hovering(); hovering {
		t.Error("Expected hover cleared after the outermost leave")
	}
}

func TestDragEnterSwitchesColumns(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Begin("t1")
	drag.Enter(models.StatusInProgress)
	drag.Enter(models.StatusDone)

	if col, hovering := drag.Hovering(); !hovering || col != models.StatusDone {
		t.Errorf("Expected hover to follow the latest column, got %s", col)
	}
}

func TestDragEnterWithoutGestureIgnored(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, serverTask("t1", models.StatusTodo))
	drag := NewDragController(store)

	drag.Enter(models.StatusDone)
	if _, hovering := drag.Hovering(); hovering {
		t.Error("Expected enter without a gesture to be ignored")
	}
}
