package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meridian/models"
	"meridian/services/transcript"
	"meridian/utils"
	"meridian/services/widgets"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetSession returns the stored transcript of a session.
func (h *ChatHandler) GetSession(c *gin.Context) {
	logger := getLogger(c)
	sessionID := c.Param("id")

	msgs, err := h.Store.Load(c.Request.Context(), sessionID)
	if errors.Is(err, transcript.ErrSessionNotFound) {
		utils.JSONError(c, http.StatusNotFound, "Session not found", "")
		return
	}
	if err != nil {
		logger.Error("Failed to load session", zap.String("sessionId", sessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load session", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "messages": msgs})
}

// GetSessionWidgets renders the current view of every tool invocation in
// the session, in transcript order.
func (h *ChatHandler) GetSessionWidgets(c *gin.Context) {
	logger := getLogger(c)
	sessionID := c.Param("id")

	msgs, err := h.Store.Load(c.Request.Context(), sessionID)
	if errors.Is(err, transcript.ErrSessionNotFound) {
		utils.JSONError(c, http.StatusNotFound, "Session not found", "")
		return
	}
	if err != nil {
		logger.Error("Failed to load session", zap.String("sessionId", sessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load session", "")
		return
	}

	invs := transcript.FromMessages(sessionID, msgs).Invocations()
	views := make([]widgets.View, 0, len(invs))
	for _, inv := range invs {
		views = append(views, widgets.FromInvocation(h.Registry, inv, nil).View())
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "widgets": views})
}

// HandleWidgetAction receives an action emitted by a widget. Only
// BOOKING_CONFIRMED is handled on the server; the confirmation is noted
// in the transcript as a system message.
func (h *ChatHandler) HandleWidgetAction(c *gin.Context) {
	logger := getLogger(c)
	sessionID := c.Param("id")

	var req models.WidgetActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input: "+err.Error(), "")
		return
	}
	if req.Type != widgets.ActionBookingConfirmed {
		utils.JSONError(c, http.StatusBadRequest, fmt.Sprintf("Unsupported action type %q", req.Type), "")
		return
	}
	sel, err := widgets.ParseSlotSelection(req.Payload)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input: "+err.Error(), "")
		return
	}

	release, err := h.Guard.Acquire(c.Request.Context(), sessionID)
	if errors.Is(err, transcript.ErrTurnInFlight) {
		utils.JSONError(c, http.StatusConflict, err.Error(), "")
		return
	}
	if err != nil {
		logger.Error("Failed to acquire session turn", zap.String("sessionId", sessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to open session", "")
		return
	}
	defer release()

	msgs, err := h.Store.Load(c.Request.Context(), sessionID)
	if errors.Is(err, transcript.ErrSessionNotFound) {
		utils.JSONError(c, http.StatusNotFound, "Session not found", "")
		return
	}
	if err != nil {
		logger.Error("Failed to load session", zap.String("sessionId", sessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load session", "")
		return
	}
	tr := transcript.FromMessages(sessionID, msgs)
	tr.SetClock(h.now)

	inv, ok := tr.Invocation(req.ToolCallID)
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "Tool call not found", "")
		return
	}

	var (
		confirmation models.BookingConfirmation
		inst         *widgets.Instance
	)
	inst = widgets.FromInvocation(h.Registry, inv, func(a widgets.Action) error {
		data, _ := inst.Booking()
		conf, err := widgets.ConfirmBooking(a, data.AmenityName, h.now())
		if err != nil {
			return err
		}
		confirmation = conf
		return nil
	})

	if err := inst.SelectSlot(sel.SlotID); err != nil {
		utils.JSONError(c, actionStatus(err), err.Error(), "")
		return
	}
	if _, err := inst.Confirm(); err != nil {
		logger.Error("Booking confirmation failed", zap.String("toolCallId", req.ToolCallID), zap.Error(err))
		utils.JSONError(c, actionStatus(err), err.Error(), "")
		return
	}

	tr.AppendSystem(fmt.Sprintf("Reserva confirmada: %s el %s de %s a %s. Código %s.",
		confirmation.AmenityName,
		confirmation.Date,
		confirmation.TimeSlot.StartTime,
		confirmation.TimeSlot.EndTime,
		confirmation.ConfirmationCode,
	))
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Store.Save(saveCtx, sessionID, tr.Messages()); err != nil {
		logger.Error("Failed to save session", zap.String("sessionId", sessionID), zap.Error(err))
	}

	logger.Info("Booking confirmed",
		zap.String("sessionId", sessionID),
		zap.String("bookingId", confirmation.BookingID),
		zap.String("amenity", string(confirmation.AmenityType)),
		zap.String("date", confirmation.Date),
	)
	c.JSON(http.StatusOK, gin.H{"confirmation": confirmation})
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, widgets.ErrUnknownSlot), errors.Is(err, widgets.ErrNothingSelected):
		return http.StatusBadRequest
	case errors.Is(err, widgets.ErrSlotUnavailable),
		errors.Is(err, widgets.ErrNotInteractive),
		errors.Is(err, widgets.ErrAlreadyConfirmed),
		errors.Is(err, widgets.ErrConfirmInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
