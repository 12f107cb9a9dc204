package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meridian/config"
	"meridian/models"
	"meridian/services/intelligence"
	"meridian/services/temporal"
	"meridian/services/tools"
	"meridian/services/transcript"
	"meridian/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const invalidMessagesMsg = "Invalid request: messages array required"

// Resident defaults used when the deployment does not configure one.
const (
	defaultResidentName = "Carlos Mendoza"
	defaultResidentUnit = "12B"
)

// ChatHandler serves chat turns and the session endpoints built on them.
type ChatHandler struct {
	Loop     *intelligence.Loop
	Registry *tools.Registry
	Store    transcript.Store
	Guard    transcript.TurnGuard
	Config   config.Config
	Clock    func() time.Time
}

func NewChatHandler(cfg config.Config, loop *intelligence.Loop, registry *tools.Registry, store transcript.Store, guard transcript.TurnGuard) *ChatHandler {
	return &ChatHandler{
		Loop:     loop,
		Registry: registry,
		Store:    store,
		Guard:    guard,
		Config:   cfg,
		Clock:    time.Now,
	}
}

func (h *ChatHandler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

func (h *ChatHandler) resident() intelligence.Resident {
	r := intelligence.Resident{Name: h.Config.ResidentName, Unit: h.Config.ResidentUnit}
	if r.Name == "" {
		r.Name = defaultResidentName
	}
	if r.Unit == "" {
		r.Unit = defaultResidentUnit
	}
	return r
}

// HandleChat runs one turn and streams its frames as Server-Sent Events.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	logger := getLogger(c)

	// The credential is checked before anything else so a misconfigured
	// deployment never reaches the model.
	if !h.Config.CredentialConfigured() {
		logger.Error("Model credential missing", zap.String("provider", h.Config.ModelProvider))
		utils.JSONError(c, http.StatusInternalServerError, intelligence.ErrMissingCredential.Error(), "")
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid chat request", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, invalidMessagesMsg, "")
		return
	}
	msgs, err := req.DecodeMessages()
	if err != nil {
		logger.Warn("Invalid chat messages", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, invalidMessagesMsg, "")
		return
	}

	tc, err := temporal.At(h.now(), h.Config.Timezone, h.Config.Locale)
	if err != nil {
		logger.Error("Failed to build temporal context", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Error: "+err.Error(), "")
		return
	}

	turn := intelligence.Turn{
		SessionID: req.SessionID,
		Temporal:  tc,
		Resident:  h.resident(),
	}
	stream := newSSESink(c)

	if req.SessionID == "" {
		turn.Messages = toHistory(msgs)
		if len(turn.Messages) == 0 {
			utils.JSONError(c, http.StatusBadRequest, invalidMessagesMsg, "")
			return
		}
		_ = h.run(c, turn, stream, stream, logger)
		return
	}

	last := msgs[len(msgs)-1]
	if last.Role != models.RoleUser {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request: last message must come from the user", "")
		return
	}

	release, err := h.Guard.Acquire(c.Request.Context(), req.SessionID)
	if errors.Is(err, transcript.ErrTurnInFlight) {
		utils.JSONError(c, http.StatusConflict, err.Error(), "")
		return
	}
	if err != nil {
		logger.Error("Failed to acquire session turn", zap.String("sessionId", req.SessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to open session", "")
		return
	}
	defer release()

	tr, err := transcript.Open(c.Request.Context(), h.Store, req.SessionID)
	if err != nil {
		logger.Error("Failed to load session", zap.String("sessionId", req.SessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to open session", "")
		return
	}
	tr.SetClock(h.now)
	tr.AppendUser(last.Content)
	turn.Messages = tr.History()

	if err := h.run(c, turn, intelligence.MultiSink{stream, tr}, stream, logger); err != nil && !stream.Started() {
		// Nothing reached the client, so the stored session stays as it was.
		return
	}

	// The request context may already be gone once the stream ends.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Store.Save(saveCtx, req.SessionID, tr.Messages()); err != nil {
		logger.Error("Failed to save session", zap.String("sessionId", req.SessionID), zap.Error(err))
	}
}

// run executes the turn and reports a failure on whichever channel is
// still open: a JSON error before the stream starts, an error frame after.
func (h *ChatHandler) run(c *gin.Context, turn intelligence.Turn, sink intelligence.Sink, stream *sseSink, logger *zap.Logger) error {
	_, err := h.Loop.Run(c.Request.Context(), turn, sink)
	if err == nil {
		return nil
	}

	msg := err.Error()
	var ue *intelligence.UpstreamError
	if errors.As(err, &ue) {
		msg = ue.Message
		logger.Warn("Chat turn failed", zap.String("category", ue.Category), zap.Error(ue.Err))
	} else {
		msg = "Error: " + msg
		logger.Error("Chat turn failed", zap.Error(err))
	}

	if !stream.Started() {
		utils.JSONError(c, http.StatusInternalServerError, msg, "")
		return err
	}
	_ = sink.Emit(intelligence.Frame{Type: intelligence.FrameError, Error: msg})
	return err
}

// toHistory converts the client's messages into model history. System
// messages never reach the model.
func toHistory(msgs []models.ChatMessage) []intelligence.Message {
	out := make([]intelligence.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			out = append(out, intelligence.Message{Role: intelligence.RoleUser, Content: m.Content})
		case models.RoleAssistant:
			out = append(out, intelligence.Message{Role: intelligence.RoleAssistant, Content: m.Content})
		}
	}
	return out
}
