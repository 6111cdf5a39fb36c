package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/session"
)

type FocusHandler struct {
	manager *session.Manager
}

type focusRecordRequest struct {
	TaskID    *string `json:"taskId"`
	TaskName  string  `json:"taskName"`
	TagName   string  `json:"tagName"`
	TagColor  string  `json:"tagColor"`
	StartTime int64   `json:"startTime"`
	EndTime   int64   `json:"endTime"`
	Duration  int64   `json:"duration"`
	Mode      string  `json:"mode"`
	TimerMode string  `json:"timerMode"`
}

type markSyncedRequest struct {
	CalendarEventID string `json:"calendarEventId"`
}

func NewFocusHandler(manager *session.Manager) *FocusHandler {
	return &FocusHandler{manager: manager}
}

func (h *FocusHandler) List(c *gin.Context) {
	var (
		records []model.FocusRecord
		err     error
	)
	if c.Query("syncStatus") == string(model.SyncStatusPending) {
		records, err = h.manager.ListPendingRecords(c.Request.Context())
	} else {
		records, err = h.manager.ListFocusRecords(c.Request.Context())
	}
	if err != nil {
		writeFailure(c, "failed to list focus records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *FocusHandler) Create(c *gin.Context) {
	var req focusRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	mode := model.FocusMode(req.Mode)
	if req.Mode == "" {
		mode = h.manager.ResolveMode(req.TimerMode)
	}
	if !mode.Valid() {
		writeError(c, apperrors.BadRequest("invalid_mode", "mode must be one of Pomodoro, ShortBreak, LongBreak, Flow"))
		return
	}
	if req.EndTime <= req.StartTime {
		writeError(c, apperrors.BadRequest("invalid_interval", "endTime must be after startTime"))
		return
	}
	if !h.manager.BackendAvailable() {
		writeError(c, errStoreUnavailable())
		return
	}

	record, err := h.manager.AddFocusRecord(c.Request.Context(), service.CompletionInput{
		TaskID:    req.TaskID,
		TaskName:  req.TaskName,
		TagName:   req.TagName,
		TagColor:  req.TagColor,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Duration:  req.Duration,
		Mode:      mode,
	})
	if err != nil {
		writeFailure(c, "failed to save focus record", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"record": record,
		"meta":   h.manager.Snapshot().Meta,
	})
}

func (h *FocusHandler) Delete(c *gin.Context) {
	removed, err := h.manager.RemoveFocusRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFailure(c, "failed to delete focus record", err)
		return
	}
	if !removed {
		writeError(c, apperrors.NotFound("record_not_found", "focus record not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": h.manager.Snapshot().Meta})
}

func (h *FocusHandler) MarkSynced(c *gin.Context) {
	var req markSyncedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if strings.TrimSpace(req.CalendarEventID) == "" {
		writeError(c, apperrors.BadRequest("invalid_event_id", "calendarEventId is required"))
		return
	}

	ok, err := h.manager.MarkFocusRecordSynced(c.Request.Context(), c.Param("id"), req.CalendarEventID)
	if err != nil {
		writeFailure(c, "failed to mark record synced", err)
		return
	}
	if !ok {
		writeError(c, apperrors.Conflict("not_pending", "record is missing or already synced", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": h.manager.Snapshot().Meta})
}

// SyncPending pushes every pending record of the caller to the calendar.
func (h *FocusHandler) SyncPending(c *gin.Context) {
	synced, err := h.manager.SyncPending(c.Request.Context())
	if err != nil {
		writeFailure(c, "failed to sync records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
