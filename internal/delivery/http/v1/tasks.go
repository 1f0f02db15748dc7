package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/services"
)

// dueDate accepts both a full RFC 3339 timestamp and a bare date.
type dueDate struct {
	time.Time
}

func (d *dueDate) UnmarshalJSON(data []byte) error {
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.DateOnly, s)
	}
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required,max=200"`
	Description string  `json:"description" binding:"max=1000"`
	DueDate     dueDate `json:"dueDate" binding:"required"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssignedTo  string  `json:"assignedTo" binding:"max=100"`
}

type updateTaskRequest struct {
	ID          string  `json:"id" binding:"required"`
	Title       string  `json:"title" binding:"required,max=200"`
	Description string  `json:"description" binding:"max=1000"`
	DueDate     dueDate `json:"dueDate" binding:"required"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssignedTo  string  `json:"assignedTo" binding:"max=100"`
}

func (h *handlerImpl) HandleListTasks(c *gin.Context) {
	tasks, err := h.tasks.ListTasks(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to list tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *handlerImpl) HandleGetTask(c *gin.Context) {
	taskID := c.Param("id")

	task, err := h.tasks.GetTaskByID(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to get task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind create task request")
		abortBinding(c, err)
		return
	}

	createdBy, _ := getStringFromContext(c, usernameCtxKey)

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.Time,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   createdBy,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Header("Location", "/api/tasks/"+task.ID)
	c.JSON(http.StatusCreated, task)
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	taskID := c.Param("id")

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind update task request")
		abortBinding(c, err)
		return
	}

	if req.ID != taskID {
		h.logger.Warn().
			Str("path_id", taskID).
			Str("body_id", req.ID).
			Msg("task id mismatch")
		abort(c, newBadRequestError("task id mismatch"))
		return
	}

	_, err = h.tasks.UpdateTask(c, services.UpdateTaskParams{
		ID:          taskID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.Time,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleAssignTask takes the assignee as a bare JSON string body. The
// assignee is free text and is not checked against known accounts.
func (h *handlerImpl) HandleAssignTask(c *gin.Context) {
	taskID := c.Param("id")

	var assignedTo string
	err := c.ShouldBindJSON(&assignedTo)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind assignee")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	_, err = h.tasks.AssignTask(c, taskID, assignedTo)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to assign task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleSetTaskStatus takes the status as a bare JSON string body and
// stores it as supplied.
func (h *handlerImpl) HandleSetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	var status string
	err := c.ShouldBindJSON(&status)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind status")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	_, err = h.tasks.UpdateTaskStatus(c, taskID, status)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task status")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	taskID := c.Param("id")

	err := h.tasks.DeleteTask(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Status(http.StatusNoContent)
}
