package services

import (
	"errors"
	"time"

	"crewboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var (
	ErrAssigneeNotFound = errors.New("assignee not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrSubtaskNotFound  = errors.New("subtask not found")
)

// Actor identifies the authenticated caller of a task operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role models.Role
}

type TaskListFilter struct {
	Status     models.Status
	Priority   models.Priority
	AssigneeID uuid.UUID
	Page       int
	Limit      int
}

type CreateTaskInput struct {
	Title          string            `json:"title" binding:"required"`
	Description    string            `json:"description"`
	AssigneeID     string            `json:"assigneeId" binding:"required"`
	Priority       models.Priority   `json:"priority"`
	DueDate        *time.Time        `json:"dueDate"`
	Tags           models.StringList `json:"tags"`
	EstimatedHours *float64          `json:"estimatedHours"`
	Subtasks       []string          `json:"subtasks"`
}

// UpdateTaskInput carries partial field updates; nil means "leave unchanged".
type UpdateTaskInput struct {
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Status         *models.Status     `json:"status"`
	Priority       *models.Priority   `json:"priority"`
	AssigneeID     *string            `json:"assigneeId"`
	DueDate        *time.Time         `json:"dueDate"`
	Tags           *models.StringList `json:"tags"`
	EstimatedHours *float64           `json:"estimatedHours"`
	ActualHours    *float64           `json:"actualHours"`
}

type TaskService interface {
	CreateTask(db *gorm.DB, actor Actor, input CreateTaskInput) (*models.Task, error)
	GetTaskByID(db *gorm.DB, id uuid.UUID) (*models.Task, error)
	GetTasksPaginated(db *gorm.DB, filter TaskListFilter) ([]models.Task, int64, error)
	UpdateTask(db *gorm.DB, id uuid.UUID, input UpdateTaskInput) (*models.Task, error)
	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.Status) (*models.Task, error)
	UpdateSubtask(db *gorm.DB, taskID, subtaskID uuid.UUID, completed bool, actor Actor) (*models.Task, error)
	DeleteTask(db *gorm.DB, id uuid.UUID) error
}

// Notifier enqueues background notifications for task events. Implementations
// must tolerate being called on the request path; failures are logged by the
// caller, never returned to the client.
type Notifier interface {
	TaskAssigned(task *models.Task) error
	TaskCompleted(task *models.Task) error
}

type TaskServiceImpl struct {
	notifier Notifier
}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

func NewTaskServiceWithNotifier(n Notifier) *TaskServiceImpl {
	return &TaskServiceImpl{notifier: n}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, actor Actor, input CreateTaskInput) (*models.Task, error) {
	assigneeID := uuid.FromStringOrNil(input.AssigneeID)

	// Non-privileged creators always get the task themselves, whatever the
	// request says.
	if !actor.Role.Privileged() {
		assigneeID = actor.ID
	}

	var assignee models.User
	if err := db.Where("id = ?", assigneeID).First(&assignee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	task := models.Task{
		ID:             uuid.Must(uuid.NewV4()),
		Title:          input.Title,
		Description:    input.Description,
		Status:         models.StatusTodo,
		Priority:       priority,
		AssigneeID:     assignee.ID,
		Assignee:       assignee.DisplayName(),
		CreatorID:      actor.ID,
		Creator:        actor.Name,
		DueDate:        input.DueDate,
		Tags:           input.Tags,
		EstimatedHours: input.EstimatedHours,
	}
	if task.Tags == nil {
		task.Tags = models.StringList{}
	}
	for i, title := range input.Subtasks {
		task.Subtasks = append(task.Subtasks, models.Subtask{
			ID:       uuid.Must(uuid.NewV4()),
			TaskID:   task.ID,
			Title:    title,
			Position: i,
		})
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := db.Create(&task).Error; err != nil {
		return nil, err
	}

	if s.notifier != nil && task.AssigneeID != actor.ID {
		if err := s.notifier.TaskAssigned(&task); err != nil {
			// Notification loss is acceptable; the mutation already committed.
			_ = err
		}
	}

	return &task, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := db.Preload("Subtasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) GetTasksPaginated(db *gorm.DB, filter TaskListFilter) ([]models.Task, int64, error) {
	query := db.Model(&models.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.AssigneeID != uuid.Nil {
		query = query.Where("assignee_id = ?", filter.AssigneeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var tasks []models.Task
	err := query.Preload("Subtasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, id uuid.UUID, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTaskByID(db, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.AssigneeID != nil {
		assigneeID := uuid.FromStringOrNil(*input.AssigneeID)
		var assignee models.User
		if err := db.Where("id = ?", assigneeID).First(&assignee).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAssigneeNotFound
			}
			return nil, err
		}
		task.AssigneeID = assignee.ID
		task.Assignee = assignee.DisplayName()
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Tags != nil {
		task.Tags = *input.Tags
	}
	if input.EstimatedHours != nil {
		task.EstimatedHours = input.EstimatedHours
	}
	if input.ActualHours != nil {
		task.ActualHours = input.ActualHours
	}
	if input.Status != nil && *input.Status != task.Status {
		task.ApplyStatus(*input.Status, time.Now())
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.Status) (*models.Task, error) {
	task, err := s.GetTaskByID(db, id)
	if err != nil {
		return nil, err
	}

	task.ApplyStatus(status, time.Now())

	// Status and completed_at move together or not at all.
	updates := map[string]interface{}{
		"status":       task.Status,
		"completed_at": task.CompletedAt,
	}
	if err := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}

	if status == models.StatusDone && s.notifier != nil {
		if err := s.notifier.TaskCompleted(task); err != nil {
			_ = err
		}
	}

	return s.GetTaskByID(db, id)
}

func (s *TaskServiceImpl) UpdateSubtask(db *gorm.DB, taskID, subtaskID uuid.UUID, completed bool, actor Actor) (*models.Task, error) {
	var subtask models.Subtask
	err := db.Where("id = ? AND task_id = ?", subtaskID, taskID).First(&subtask).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubtaskNotFound
		}
		return nil, err
	}

	subtask.Completed = completed
	if completed {
		now := time.Now()
		subtask.CompletedAt = &now
		actorID := actor.ID
		subtask.CompletedBy = &actorID
	} else {
		subtask.CompletedAt = nil
		subtask.CompletedBy = nil
	}

	if err := db.Save(&subtask).Error; err != nil {
		return nil, err
	}

	// The subtask is owned by its parent; callers always get the whole task
	// back so their copy stays coherent.
	return s.GetTaskByID(db, taskID)
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&models.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
