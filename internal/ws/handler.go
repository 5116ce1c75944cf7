package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/analysis"
	"github.com/lmoreira/opsight/internal/auth"
	"github.com/lmoreira/opsight/internal/event"
)

// Handler provides the WebSocket endpoint for real-time analysis updates.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	bus    *event.Bus
	logger *zap.Logger
}

// NewHandler creates a WebSocket handler and subscribes to analysis
// events. tokens may be nil when authentication is disabled.
func NewHandler(tokens *auth.TokenService, bus *event.Bus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		tokens: tokens,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// Hub returns the underlying hub, for tests.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// RegisterRoutes registers the WebSocket route on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws", h.handleStream)
}

// handleStream upgrades the connection to WebSocket and streams
// analysis events.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	// Validate JWT from query parameter (browser WS API doesn't support headers).
	user := "anonymous"
	if h.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token parameter", http.StatusUnauthorized)
			return
		}
		claims, err := h.tokens.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		user = claims.Username
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Allow any origin since we validate via JWT token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		user:   user,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards analysis bus events to all connected
// WebSocket clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(analysis.TopicRunStarted, func(_ context.Context, e event.Event) {
		h.hub.Broadcast(Message{
			Type:      MessageRunStarted,
			RunID:     payloadString(e.Payload, "run_id"),
			Timestamp: e.Timestamp,
			Data: RunStartedData{
				ProcessCount: payloadInt(e.Payload, "process_count"),
			},
		})
	})

	h.bus.Subscribe(analysis.TopicRunCompleted, func(_ context.Context, e event.Event) {
		h.hub.Broadcast(Message{
			Type:      MessageRunCompleted,
			RunID:     payloadString(e.Payload, "run_id"),
			Timestamp: e.Timestamp,
			Data: RunCompletedData{
				ProcessCount: payloadInt(e.Payload, "process_count"),
				AnomalyCount: payloadInt(e.Payload, "anomaly_count"),
				Threshold:    payloadFloat(e.Payload, "threshold"),
				DurationMS:   int64(payloadInt(e.Payload, "duration_ms")),
			},
		})
	})

	h.bus.Subscribe(analysis.TopicAnomalyDetected, func(_ context.Context, e event.Event) {
		h.hub.Broadcast(Message{
			Type:      MessageAnomalyDetected,
			RunID:     payloadString(e.Payload, "run_id"),
			Timestamp: e.Timestamp,
			Data: AnomalyDetectedData{
				ProcessID: payloadString(e.Payload, "process_id"),
				Score:     payloadFloat(e.Payload, "score"),
				Threshold: payloadFloat(e.Payload, "threshold"),
			},
		})
	})

	h.logger.Info("subscribed to analysis events for WebSocket broadcasting")
}

func payloadString(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
