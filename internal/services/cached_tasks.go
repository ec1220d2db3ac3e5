package services

import (
	"fmt"
	"time"

	"crewboard/backend/internal/cache"
	"crewboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	taskCacheTTL    = 5 * time.Minute
	taskKeyPrefix   = "tasks:id:"
	taskListPrefix  = "tasks:list:"
	taskKeyWildcard = "tasks:*"
)

// CachedTaskService decorates a TaskService with read-through caching.
// Every write invalidates the whole task keyspace; correctness over cleverness,
// the board re-derives its views from fresh reads anyway.
type CachedTaskService struct {
	inner TaskService
	cache cache.Cache
}

func NewCachedTaskService(inner TaskService, c cache.Cache) *CachedTaskService {
	return &CachedTaskService{inner: inner, cache: c}
}

type cachedTaskList struct {
	Tasks []models.Task `json:"tasks"`
	Total int64         `json:"total"`
}

func (s *CachedTaskService) CreateTask(db *gorm.DB, actor Actor, input CreateTaskInput) (*models.Task, error) {
	task, err := s.inner.CreateTask(db, actor, input)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return task, nil
}

func (s *CachedTaskService) GetTaskByID(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	key := taskKeyPrefix + id.String()

	var cached models.Task
	if err := s.cache.Get(key, &cached); err == nil {
		return &cached, nil
	}

	task, err := s.inner.GetTaskByID(db, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, task, taskCacheTTL)
	return task, nil
}

func (s *CachedTaskService) GetTasksPaginated(db *gorm.DB, filter TaskListFilter) ([]models.Task, int64, error) {
	key := fmt.Sprintf("%s%s:%s:%s:%d:%d",
		taskListPrefix, filter.Status, filter.Priority, filter.AssigneeID, filter.Page, filter.Limit)

	var cached cachedTaskList
	if err := s.cache.Get(key, &cached); err == nil {
		return cached.Tasks, cached.Total, nil
	}

	tasks, total, err := s.inner.GetTasksPaginated(db, filter)
	if err != nil {
		return nil, 0, err
	}

	s.cache.Set(key, cachedTaskList{Tasks: tasks, Total: total}, taskCacheTTL)
	return tasks, total, nil
}

func (s *CachedTaskService) UpdateTask(db *gorm.DB, id uuid.UUID, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.inner.UpdateTask(db, id, input)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return task, nil
}

func (s *CachedTaskService) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.Status) (*models.Task, error) {
	task, err := s.inner.UpdateStatus(db, id, status)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return task, nil
}

func (s *CachedTaskService) UpdateSubtask(db *gorm.DB, taskID, subtaskID uuid.UUID, completed bool, actor Actor) (*models.Task, error) {
	task, err := s.inner.UpdateSubtask(db, taskID, subtaskID, completed, actor)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return task, nil
}

func (s *CachedTaskService) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	if err := s.inner.DeleteTask(db, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *CachedTaskService) invalidate() {
	s.cache.DeletePattern(taskKeyWildcard)
}
