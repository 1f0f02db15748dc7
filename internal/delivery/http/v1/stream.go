package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/broadcast"
)

const streamHeartbeatInterval = 30 * time.Second

// HandleStreamEvents pushes task mutation events to the client as
// server-sent events. EventSource cannot set request headers, so the
// bearer token is also accepted as a query parameter.
func (h *handlerImpl) HandleStreamEvents(c *gin.Context) {
	token := c.Query("token")
	header := c.GetHeader("Authorization")
	if header != "" {
		const bearerPrefix = "Bearer "
		if len(header) > len(bearerPrefix) && header[:len(bearerPrefix)] == bearerPrefix {
			token = header[len(bearerPrefix):]
		}
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to validate stream token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.logger.Error().Msg("streaming unsupported by response writer")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.broker.Subscribe(broadcast.TopicTasks)
	defer h.broker.Unsubscribe(broadcast.TopicTasks, ch)

	h.logger.Info().
		Str("user_id", claims.Subject).
		Msg("stream client connected")

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().
				Str("user_id", claims.Subject).
				Msg("stream client disconnected")
			return
		case <-heartbeat.C:
			_, err = fmt.Fprint(c.Writer, ": keep-alive\n\n")
			if err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			data, err := marshalEventPayload(ev)
			if err != nil {
				h.logger.Error().
					Err(err).
					Str("event_id", ev.ID).
					Msg("failed to marshal event payload")
				continue
			}
			_, err = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Kind, data)
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// marshalEventPayload renders the full task record for every kind except
// deletion, which carries the id alone.
func marshalEventPayload(ev broadcast.Event) ([]byte, error) {
	if ev.Kind == broadcast.KindTaskDeleted {
		return json.Marshal(struct {
			ID string `json:"id"`
		}{ID: ev.TaskID})
	}
	return json.Marshal(ev.Task)
}
