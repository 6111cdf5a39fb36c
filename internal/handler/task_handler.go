package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/session"
)

type TaskHandler struct {
	manager *session.Manager
}

type taskRequest struct {
	Title   string `json:"title"`
	TagName string `json:"tagName"`
}

func NewTaskHandler(manager *session.Manager) *TaskHandler {
	return &TaskHandler{manager: manager}
}

func (h *TaskHandler) List(c *gin.Context) {
	snapshot := h.manager.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"activeTasks":    snapshot.ActiveTasks,
		"completedTasks": snapshot.CompletedTasks,
	})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, apperrors.BadRequest("invalid_title", "title is required"))
		return
	}
	if !h.manager.BackendAvailable() {
		writeError(c, errStoreUnavailable())
		return
	}

	task, err := h.manager.AddTask(c.Request.Context(), req.Title, req.TagName)
	if err != nil {
		writeFailure(c, "failed to create task", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *TaskHandler) Update(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, apperrors.BadRequest("invalid_title", "title is required"))
		return
	}

	task, err := h.manager.UpdateTask(c.Request.Context(), c.Param("id"), req.Title, req.TagName)
	if err != nil {
		writeFailure(c, "failed to update task", err)
		return
	}
	if task == nil {
		writeError(c, apperrors.NotFound("task_not_found", "task not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) Toggle(c *gin.Context) {
	task, err := h.manager.ToggleTaskStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFailure(c, "failed to toggle task", err)
		return
	}
	if task == nil {
		writeError(c, apperrors.NotFound("task_not_found", "task not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	removed, err := h.manager.RemoveTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFailure(c, "failed to delete task", err)
		return
	}
	if !removed {
		writeError(c, apperrors.NotFound("task_not_found", "task not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
