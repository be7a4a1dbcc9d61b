package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/benvon/chronos-console/internal/core"
	"github.com/benvon/chronos-console/pkg/model"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

type seasonRequest struct {
	Season string `json:"season" binding:"required"`
}

type overrideRequest struct {
	State string `json:"state" binding:"required"`
}

type settingsRequest struct {
	Fields  map[string]string `json:"fields" binding:"required"`
	Confirm bool              `json:"confirm"`
}

type setpointRequest struct {
	// Temperature is kept as text so "150" and 150 are both accepted
	Temperature any `json:"temperature" binding:"required"`
}

func (h *Handler) getState(c *gin.Context) {
	sendData(c, "", h.console.State())
}

func (h *Handler) switchSeason(c *gin.Context) {
	var req seasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "season is required")
		return
	}
	target, err := model.ParseSeason(req.Season)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.console.Season.RequestSwitch(c.Request.Context(), target); err != nil {
		h.sendFailure(c, err)
		return
	}
	sendData(c, "Season switch requested", h.console.State())
}

func (h *Handler) setOverride(c *gin.Context) {
	device, err := model.ParseDeviceID(c.Param("device"))
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "state is required")
		return
	}
	state, err := model.ParseOverrideState(req.State)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.console.Overrides.SetOverride(c.Request.Context(), device, state); err != nil {
		h.sendFailure(c, err)
		return
	}
	sendData(c, "Override applied", h.console.State().Overrides)
}

func (h *Handler) submitSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "fields are required")
		return
	}

	confirm := func(string) bool { return req.Confirm }
	msg, err := h.console.Settings.SubmitSettings(c.Request.Context(), core.SettingsForm(req.Fields), confirm)
	if err != nil {
		h.sendFailure(c, err)
		return
	}
	sendData(c, msg, nil)
}

func (h *Handler) setSetpoint(c *gin.Context) {
	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "temperature is required")
		return
	}

	var value string
	switch v := req.Temperature.(type) {
	case string:
		value = v
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		sendError(c, http.StatusBadRequest, "temperature must be a number")
		return
	}

	msg, err := h.console.Settings.SetBoilerSetpoint(c.Request.Context(), value)
	if err != nil {
		h.sendFailure(c, err)
		return
	}
	sendData(c, msg, nil)
}

func (h *Handler) dismissBanner(c *gin.Context) {
	if !h.console.Notifier.Dismiss(c.Param("id")) {
		sendError(c, http.StatusNotFound, "Banner not found")
		return
	}
	sendData(c, "Banner dismissed", nil)
}

func (h *Handler) getChart(c *gin.Context) {
	samples, err := h.console.Chart(c.Request.Context())
	if err != nil {
		h.sendFailure(c, err)
		return
	}
	sendData(c, "", samples)
}

func (h *Handler) getJournal(c *gin.Context) {
	if h.journal == nil {
		sendError(c, http.StatusNotFound, "Journal is not enabled")
		return
	}

	limit := defaultJournalLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxJournalLimit {
			sendError(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxJournalLimit))
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		h.logger.Error("Failed to read journal", "error", err)
		sendError(c, http.StatusInternalServerError, "Failed to read journal")
		return
	}
	sendData(c, "", entries)
}
