package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"crewboard/backend/internal/models"
)

type EventKind string

const (
	EventApplied    EventKind = "applied"
	EventReconciled EventKind = "reconciled"
	EventRolledBack EventKind = "rolledback"
)

// Event tells the presentation layer to re-derive its views.
type Event struct {
	Kind   EventKind
	TaskID string
	Err    error
}

// Mutation is the handle for one optimistic operation. Done is closed once
// the operation has settled (reconciled or rolled back); Err is valid after
// that.
type Mutation struct {
	TaskID string

	// Request is set when a create fails, so the caller can retry with the
	// user's original input.
	Request *CreateRequest

	done chan struct{}
	err  error
}

func newMutation(taskID string) *Mutation {
	return &Mutation{TaskID: taskID, done: make(chan struct{})}
}

func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Err reports the settled outcome. Nil before Done is closed.
func (m *Mutation) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Store owns the in-memory task collection and is the only component that
// mutates it. Every mutation is optimistic: snapshot, apply locally, dispatch
// the gateway call, then reconcile with the canonical record or restore the
// snapshot exactly.
//
// A Store is created when a board mounts and closed when it unmounts; there
// is no ambient package state, so independent boards (and tests) never share
// a collection.
type Store struct {
	gw     Gateway
	viewer Viewer

	mu       sync.Mutex
	tasks    []Task
	index    map[string]int
	inflight map[string]*Mutation
	closed   bool
	listener func(Event)
}

func NewStore(gw Gateway, viewer Viewer) *Store {
	return &Store{
		gw:       gw,
		viewer:   viewer,
		index:    make(map[string]int),
		inflight: make(map[string]*Mutation),
	}
}

// OnEvent registers the single listener. The listener runs outside the store
// lock and may call back into the store.
func (s *Store) OnEvent(fn func(Event)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

func (s *Store) emit(e Event) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Load replaces the collection with the full remote task set.
func (s *Store) Load(ctx context.Context) error {
	var all []Task
	page := 1
	for {
		p, err := s.gw.List(ctx, ListParams{Page: page, Limit: 100})
		if err != nil {
			return err
		}
		all = append(all, p.Items...)
		if !p.HasMore {
			break
		}
		page++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.tasks = all
	s.reindex()
	return nil
}

// reindex rebuilds the id index; caller holds the lock.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.tasks))
	for i := range s.tasks {
		s.index[s.tasks[i].ID] = i
	}
}

// Tasks returns a deep copy of the collection; readers never alias store
// memory.
func (s *Store) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, len(s.tasks))
	for i := range s.tasks {
		out[i] = *s.tasks[i].Clone()
	}
	return out
}

func (s *Store) Get(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.tasks[idx].Clone(), true
}

func (s *Store) Viewer() Viewer {
	return s.viewer
}

// Visible derives the viewer's visible subset.
func (s *Store) Visible() []Task {
	return DeriveVisible(s.Tasks(), s.viewer)
}

// Columns derives the filtered board columns for the viewer.
func (s *Store) Columns(f Filters) Columns {
	if f.Viewer == (Viewer{}) {
		f.Viewer = s.viewer
	}
	return GroupByStatus(ApplyFilters(s.Visible(), f))
}

// Close tears the board down. In-flight network calls are allowed to finish
// but their results are no longer applied to the collection.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type applyFunc func(t *Task)
type callFunc func(ctx context.Context) (*Task, error)

// mutateTask is the single optimistic mutation path for existing tasks:
// snapshot, apply, dispatch, settle. Mutations are serialized per task id;
// a second mutation against a busy task is rejected, never interleaved.
func (s *Store) mutateTask(ctx context.Context, id string, apply applyFunc, call callFunc) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	idx, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return nil, ErrMutationInFlight
	}

	snapshot := s.tasks[idx].Clone()
	apply(&s.tasks[idx])
	m := newMutation(id)
	s.inflight[id] = m
	s.mu.Unlock()

	s.emit(Event{Kind: EventApplied, TaskID: id})

	go s.settle(ctx, m, snapshot, call)
	return m, nil
}

func (s *Store) settle(ctx context.Context, m *Mutation, snapshot *Task, call callFunc) {
	canonical, err := call(ctx)

	s.mu.Lock()
	delete(s.inflight, m.TaskID)

	if s.closed {
		// The board is gone; the result must not touch disposed state.
		m.err = err
		s.mu.Unlock()
		close(m.done)
		return
	}

	var event Event
	if err != nil {
		// Restore the exact pre-mutation snapshot; no partial rollback.
		if idx, ok := s.index[m.TaskID]; ok {
			s.tasks[idx] = *snapshot
		}
		m.err = err
		event = Event{Kind: EventRolledBack, TaskID: m.TaskID, Err: err}
	} else {
		if idx, ok := s.index[m.TaskID]; ok && canonical != nil {
			s.tasks[idx] = *canonical
		}
		event = Event{Kind: EventReconciled, TaskID: m.TaskID}
	}
	s.mu.Unlock()

	s.emit(event)
	close(m.done)
}

// ToggleStatus advances a task along the cycle done -> todo -> inprogress ->
// done.
func (s *Store) ToggleStatus(ctx context.Context, id string) (*Mutation, error) {
	now := time.Now()
	var next models.Status
	return s.mutateTask(ctx, id,
		func(t *Task) {
			next = models.NextStatus(t.Status)
			t.ApplyStatus(next, now)
		},
		func(ctx context.Context) (*Task, error) {
			return s.gw.UpdateStatus(ctx, id, next)
		})
}

// SetStatus moves a task straight to a column. Drag-and-drop lands here; it
// shares the toggle path's optimistic procedure, so rollback behaves
// identically for both. Setting the current status is a no-op and returns a
// nil mutation.
func (s *Store) SetStatus(ctx context.Context, id string, status models.Status) (*Mutation, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}

	s.mu.Lock()
	if idx, ok := s.index[id]; ok && s.tasks[idx].Status == status {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	now := time.Now()
	return s.mutateTask(ctx, id,
		func(t *Task) {
			t.ApplyStatus(status, now)
		},
		func(ctx context.Context) (*Task, error) {
			return s.gw.UpdateStatus(ctx, id, status)
		})
}

// ToggleSubtask flips one subtask's completion. The whole parent task is
// snapshotted and restored on failure; subtasks are not independently
// addressable for rollback.
func (s *Store) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*Mutation, error) {
	s.mu.Lock()
	idx, ok := s.index[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	completed, found := false, false
	for _, st := range s.tasks[idx].Subtasks {
		if st.ID == subtaskID {
			completed = !st.Completed
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, ErrNotFound
	}

	now := time.Now()
	return s.mutateTask(ctx, taskID,
		func(t *Task) {
			for i := range t.Subtasks {
				if t.Subtasks[i].ID != subtaskID {
					continue
				}
				t.Subtasks[i].Completed = completed
				if completed {
					completedAt := now
					t.Subtasks[i].CompletedAt = &completedAt
					t.Subtasks[i].CompletedBy = s.viewer.ID
				} else {
					t.Subtasks[i].CompletedAt = nil
					t.Subtasks[i].CompletedBy = ""
				}
			}
		},
		func(ctx context.Context) (*Task, error) {
			return s.gw.UpdateSubtask(ctx, taskID, subtaskID, completed)
		})
}

// UpdateTask applies a partial field edit optimistically.
func (s *Store) UpdateTask(ctx context.Context, id string, req UpdateRequest) (*Mutation, error) {
	if req.Title != nil && *req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	return s.mutateTask(ctx, id,
		func(t *Task) {
			if req.Title != nil {
				t.Title = *req.Title
			}
			if req.Description != nil {
				t.Description = *req.Description
			}
			if req.Priority != nil {
				t.Priority = *req.Priority
			}
			if req.AssigneeID != nil {
				// Reassignment replaces the assignee; the display name is
				// stale until the canonical record arrives.
				t.AssigneeID = *req.AssigneeID
			}
			if req.DueDate != nil {
				due := *req.DueDate
				t.DueDate = &due
			}
			if req.Tags != nil {
				t.Tags = append([]string(nil), (*req.Tags)...)
			}
			if req.EstimatedHours != nil {
				t.EstimatedHours = req.EstimatedHours
			}
			if req.ActualHours != nil {
				t.ActualHours = req.ActualHours
			}
		},
		func(ctx context.Context) (*Task, error) {
			return s.gw.Update(ctx, id, req)
		})
}

// CreateTask renders the new task immediately under a temporary id, then
// swaps in the server record. A failed create removes the optimistic row and
// hands the request back on the mutation for retry.
func (s *Store) CreateTask(ctx context.Context, req CreateRequest) (*Mutation, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.AssigneeID == "" {
		return nil, &ValidationError{Field: "assigneeId", Reason: "must not be empty"}
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, &ValidationError{Field: "priority", Reason: "unknown priority " + string(req.Priority)}
	}

	now := time.Now()
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	temp := Task{
		ID:             NewTempID(),
		Title:          req.Title,
		Description:    req.Description,
		Status:         models.StatusTodo,
		Priority:       priority,
		AssigneeID:     req.AssigneeID,
		CreatorID:      s.viewer.ID,
		Creator:        s.viewer.Name,
		DueDate:        req.DueDate,
		Tags:           append([]string(nil), req.Tags...),
		Subtasks:       []Subtask{},
		EstimatedHours: req.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.AssigneeID == s.viewer.ID {
		temp.Assignee = s.viewer.Name
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	// Newest first, matching the server's list order.
	s.tasks = append([]Task{temp}, s.tasks...)
	s.reindex()
	m := newMutation(temp.ID)
	s.inflight[temp.ID] = m
	s.mu.Unlock()

	s.emit(Event{Kind: EventApplied, TaskID: temp.ID})

	go s.settleCreate(ctx, m, req)
	return m, nil
}

func (s *Store) settleCreate(ctx context.Context, m *Mutation, req CreateRequest) {
	canonical, err := s.gw.Create(ctx, req)

	s.mu.Lock()
	delete(s.inflight, m.TaskID)

	if s.closed {
		m.err = err
		s.mu.Unlock()
		close(m.done)
		return
	}

	var event Event
	if err != nil {
		if idx, ok := s.index[m.TaskID]; ok {
			s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
			s.reindex()
		}
		m.err = err
		m.Request = &req
		event = Event{Kind: EventRolledBack, TaskID: m.TaskID, Err: err}
	} else {
		// Re-key temp id -> server id in one step; the board never holds two
		// copies of the same logical task.
		if idx, ok := s.index[m.TaskID]; ok {
			s.tasks[idx] = *canonical
			delete(s.index, m.TaskID)
			s.index[canonical.ID] = idx
		}
		event = Event{Kind: EventReconciled, TaskID: canonical.ID}
	}
	s.mu.Unlock()

	s.emit(event)
	close(m.done)
}

// DeleteTask removes the task optimistically. A server-side not-found leaves
// the local deletion in place (there is nothing to undo) but the caller is
// still informed through the mutation's error.
func (s *Store) DeleteTask(ctx context.Context, id string) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	idx, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return nil, ErrMutationInFlight
	}

	snapshot := s.tasks[idx].Clone()
	position := idx
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.reindex()
	m := newMutation(id)
	s.inflight[id] = m
	s.mu.Unlock()

	s.emit(Event{Kind: EventApplied, TaskID: id})

	go s.settleDelete(ctx, m, snapshot, position)
	return m, nil
}

func (s *Store) settleDelete(ctx context.Context, m *Mutation, snapshot *Task, position int) {
	err := s.gw.Delete(ctx, m.TaskID)

	s.mu.Lock()
	delete(s.inflight, m.TaskID)

	if s.closed {
		m.err = err
		s.mu.Unlock()
		close(m.done)
		return
	}

	var event Event
	if err != nil && !errors.Is(err, ErrNotFound) {
		if position > len(s.tasks) {
			position = len(s.tasks)
		}
		rest := append([]Task{*snapshot}, s.tasks[position:]...)
		s.tasks = append(s.tasks[:position], rest...)
		s.reindex()
		m.err = err
		event = Event{Kind: EventRolledBack, TaskID: m.TaskID, Err: err}
	} else {
		m.err = err
		event = Event{Kind: EventReconciled, TaskID: m.TaskID, Err: err}
	}
	s.mu.Unlock()

	s.emit(event)
	close(m.done)
}
