package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"crewboard/backend/internal/models"
	"crewboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService}
}

func parseUUID(s string) uuid.UUID {
	return uuid.FromStringOrNil(s)
}

// GetTasks lists tasks, newest created first. Filters compose with AND.
// Non-privileged callers only ever see their own tasks, whatever assigneeId
// they ask for.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := services.TaskListFilter{
		Status:     models.Status(c.Query("status")),
		Priority:   models.Priority(c.Query("priority")),
		AssigneeID: parseUUID(c.Query("assigneeId")),
		Page:       atoiDefault(c.DefaultQuery("page", "1"), 1),
		Limit:      atoiDefault(c.DefaultQuery("limit", "20"), 20),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		respondError(c, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		respondError(c, http.StatusBadRequest, "invalid priority filter")
		return
	}

	if !actor.Role.Privileged() {
		filter.AssigneeID = actor.ID
	}

	tasks, total, err := h.taskService.GetTasksPaginated(h.db, filter)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	respondData(c, http.StatusOK, TaskListData{
		Data:    tasks,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(page*limit) < total,
	})
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id := parseUUID(c.Param("id"))
	if id == uuid.Nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.taskService.GetTaskByID(h.db, id)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input services.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Priority != "" && !input.Priority.Valid() {
		respondError(c, http.StatusBadRequest, "invalid priority")
		return
	}

	task, err := h.taskService.CreateTask(h.db, actor, input)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id := parseUUID(c.Param("id"))
	if id == uuid.Nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	var input services.UpdateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Status != nil && !input.Status.Valid() {
		respondError(c, http.StatusBadRequest, "invalid status")
		return
	}
	if input.Priority != nil && !input.Priority.Valid() {
		respondError(c, http.StatusBadRequest, "invalid priority")
		return
	}

	task, err := h.taskService.UpdateTask(h.db, id, input)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusOK, task)
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id := parseUUID(c.Param("id"))
	if id == uuid.Nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	var input struct {
		Status models.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !input.Status.Valid() {
		respondError(c, http.StatusBadRequest, "invalid status")
		return
	}

	task, err := h.taskService.UpdateStatus(h.db, id, input.Status)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusOK, task)
}

// UpdateSubtask toggles one subtask and returns the whole parent task, so
// clients can replace their copy wholesale.
func (h *TaskHandler) UpdateSubtask(c *gin.Context) {
	taskID := parseUUID(c.Param("id"))
	subtaskID := parseUUID(c.Param("subtaskId"))
	if taskID == uuid.Nil || subtaskID == uuid.Nil {
		respondError(c, http.StatusBadRequest, "invalid task or subtask id")
		return
	}

	var input struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	task, err := h.taskService.UpdateSubtask(h.db, taskID, subtaskID, *input.Completed, actor)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id := parseUUID(c.Param("id"))
	if id == uuid.Nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := h.taskService.DeleteTask(h.db, id); err != nil {
		h.respondTaskError(c, err)
		return
	}
	respondData(c, http.StatusOK, nil)
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrSubtaskNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAssigneeNotFound):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "failed to process task request")
	}
}

func atoiDefault(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
