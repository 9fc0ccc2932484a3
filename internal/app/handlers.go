package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"meeting-agent/internal/agent"
	"meeting-agent/internal/invite"
	"meeting-agent/internal/llm"
	"meeting-agent/internal/store"
)

const maxToolBody = 64 << 10

type chatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=4000"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages" binding:"required,min=1,max=50,dive"`
}

// ChatHandler runs one conversation turn and streams its progress as
// Server-Sent Events: tool_use, tool_result, answer or error.
// POST /api/chat
func (a *App) ChatHandler(c *gin.Context) {
	if a.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": a.Tools.Fallback()})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Messages[len(req.Messages)-1].Role != llm.RoleUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the last message must come from the user"})
		return
	}

	history := make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	// The request context is cancelled when the client goes away, which
	// stops the loop before any further tool call.
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.Config.ChatTimeout)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func(event string, data interface{}) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}

	start := time.Now()
	answer, err := a.Agent.RunWithCallback(ctx, history, func(event, data string) {
		if event == agent.EventAnswer {
			return
		}
		send(event, data)
	})
	if err != nil {
		slog.Error("chat turn failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if c.Request.Context().Err() == nil {
			send("error", gin.H{"message": a.Tools.Fallback()})
		}
		return
	}

	slog.Info("chat turn completed",
		"messages", len(history),
		"duration_ms", time.Since(start).Milliseconds())
	send(agent.EventAnswer, gin.H{"content": answer})
}

// ToolHandler invokes one tool directly with the raw JSON body.
// POST /api/tools/:name
func (a *App) ToolHandler(c *gin.Context) {
	name := c.Param("name")
	if _, err := agent.ParseToolKind(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxToolBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	res := a.Tools.Execute(c.Request.Context(), name, string(body))
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(res.JSON()))
}

// ListBookingsHandler lists ledger entries, optionally restricted to
// bookings starting in [from, to).
// GET /api/bookings?from=ISO&to=ISO
func (a *App) ListBookingsHandler(c *gin.Context) {
	if a.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking ledger not configured"})
		return
	}

	filtered := c.Query("from") != "" || c.Query("to") != ""
	var from, to time.Time
	if filtered {
		var ok bool
		if from, to, ok = parseRangeQuery(c); !ok {
			return
		}
	}

	bookings, err := a.Store.ListBookings(c.Request.Context(), from, to, filtered)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if bookings == nil {
		bookings = []store.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

// InviteHandler serves the iCalendar invite of a ledger booking.
// GET /api/bookings/:id/invite.ics
func (a *App) InviteHandler(c *gin.Context) {
	if a.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking ledger not configured"})
		return
	}

	b, err := a.Store.GetBooking(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := invite.Render(&buf, *b, a.Config.ContactEmail); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+invite.Filename(*b)+`"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// HealthHandler reports which collaborators are wired.
// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"calendar": a.Provider != nil,
		"model":    a.Agent != nil,
		"ledger":   a.Store != nil,
		"timezone": a.Config.Timezone,
	})
}

// parseRangeQuery reads the from/to query parameters as RFC 3339 instants.
// It writes a 400 response and returns false when they are unusable.
func parseRangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to required (ISO8601)"})
		return time.Time{}, time.Time{}, false
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return time.Time{}, time.Time{}, false
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return time.Time{}, time.Time{}, false
	}
	return from.UTC(), to.UTC(), true
}
