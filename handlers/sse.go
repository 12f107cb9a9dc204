package handlers

import (
	"net/http"
	"sync"

	"meridian/services/intelligence"

	"github.com/gin-gonic/gin"
)

// sseSink writes loop frames as Server-Sent Events. Headers are only sent
// with the first frame, so a turn that fails before producing anything
// can still answer with a plain JSON error.
type sseSink struct {
	mu      sync.Mutex
	c       *gin.Context
	started bool
}

func newSSESink(c *gin.Context) *sseSink {
	return &sseSink{c: c}
}

func (s *sseSink) Emit(fr intelligence.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
		s.c.Status(http.StatusOK)
		s.started = true
	}
	s.c.SSEvent(string(fr.Type), fr)
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
