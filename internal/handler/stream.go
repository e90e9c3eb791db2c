package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const defaultHeartbeat = 15 * time.Second

// Subscriber streams raw notification payloads published to topics. The
// returned cancel func ends the subscription and closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (<-chan []byte, func(), error)
}

// StreamHandler relays notification topics to browsers as server-sent events.
type StreamHandler struct {
	sub       Subscriber
	events    EventService
	logger    *zap.Logger
	heartbeat time.Duration

	quit      chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(sub Subscriber, events EventService, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		sub:       sub,
		events:    events,
		logger:    logger,
		heartbeat: defaultHeartbeat,
		quit:      make(chan struct{}),
	}
}

// Close ends every open stream. New streams end right after they open.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// EventStream handles GET /events/{id}/stream
// Streams the event's capacity notifications.
func (h *StreamHandler) EventStream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if _, err := h.events.GetEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.stream(w, r, model.EventTopic(eventID))
}

// UserStream handles GET /me/stream
// Streams the caller's reservation notifications.
func (h *StreamHandler) UserStream(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	h.stream(w, r, model.UserTopic(id.UserID))
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request, topic string) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("clear write deadline", zap.Error(err))
	}

	msgs, cancel, err := h.sub.Subscribe(ctx, topic)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("response does not support flushing", zap.Error(err))
		return
	}

	h.logger.Debug("stream opened", zap.String("topic", topic))
	defer h.logger.Debug("stream closed", zap.String("topic", topic))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := writeEvent(w, payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent frames one payload, naming the SSE event after its kind so
// clients can listen per kind.
func writeEvent(w http.ResponseWriter, payload []byte) error {
	var head struct {
		Type model.NotificationKind `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err == nil && head.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", head.Type); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
