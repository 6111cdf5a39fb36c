package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
}

type updateSettingsRequest struct {
	FocusDuration      int `json:"focusDuration"`
	ShortBreakDuration int `json:"shortBreakDuration"`
	LongBreakDuration  int `json:"longBreakDuration"`
}

type migrationIntentRequest struct {
	MigrateGuestOnLogin bool `json:"migrateGuestOnLogin"`
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"session": h.manager.Snapshot()})
}

func (h *SessionHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"meta": h.manager.Snapshot().Meta})
}

func (h *SessionHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	settings := model.Settings{
		FocusDuration:      req.FocusDuration,
		ShortBreakDuration: req.ShortBreakDuration,
		LongBreakDuration:  req.LongBreakDuration,
	}
	if !settings.Valid() {
		writeError(c, apperrors.BadRequest("invalid_duration", "all durations must be positive seconds"))
		return
	}
	if !h.manager.BackendAvailable() {
		writeError(c, errStoreUnavailable())
		return
	}

	meta, err := h.manager.UpdateSettings(c.Request.Context(), settings)
	if err != nil {
		writeFailure(c, "failed to update settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": meta})
}

func (h *SessionHandler) Recalculate(c *gin.Context) {
	meta, err := h.manager.Recalculate(c.Request.Context())
	if err != nil {
		writeFailure(c, "failed to recalculate stats", err)
		return
	}
	if meta == nil {
		snapshot := h.manager.Snapshot().Meta
		meta = &snapshot
	}
	c.JSON(http.StatusOK, gin.H{"meta": meta})
}

func (h *SessionHandler) Today(c *gin.Context) {
	seconds, err := h.manager.TodayFocusTime(c.Request.Context(), time.Now())
	if err != nil {
		writeFailure(c, "failed to read today's focus time", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"focusSeconds": seconds})
}

func (h *SessionHandler) GuestStatus(c *gin.Context) {
	has, err := h.manager.HasGuestData(c.Request.Context())
	if err != nil {
		writeFailure(c, "failed to inspect guest data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasGuestData": has})
}

func (h *SessionHandler) SetMigrationIntent(c *gin.Context) {
	var req migrationIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if err := h.manager.SetMigrateGuestOnLogin(req.MigrateGuestOnLogin); err != nil {
		writeFailure(c, "failed to store migration intent", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"migrateGuestOnLogin": req.MigrateGuestOnLogin})
}

func (h *SessionHandler) TagPresentation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tag": h.manager.TagPresentation(c.Param("slug"))})
}
