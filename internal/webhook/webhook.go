// Package webhook delivers analysis events as HTTP POST notifications
// to a configurable endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/analysis"
	"github.com/lmoreira/opsight/internal/event"
)

// Config holds the webhook notifier configuration.
type Config struct {
	URL     string
	Timeout time.Duration
	Enabled bool
}

// Notifier subscribes to analysis events and forwards them to the
// configured URL.
type Notifier struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
}

// New creates a webhook notifier. A missing URL is tolerated; events
// are then dropped with a warning at startup.
func New(cfg Config, logger *zap.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	n := &Notifier{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Enabled && cfg.URL == "" {
		logger.Warn("webhook URL not configured; notifications will be dropped")
	}
	return n
}

// Subscribe attaches the notifier to the bus. Anomaly and run-completed
// events are forwarded; deliveries run asynchronously via the bus.
func (n *Notifier) Subscribe(bus *event.Bus) {
	bus.Subscribe(analysis.TopicAnomalyDetected, n.handleEvent)
	bus.Subscribe(analysis.TopicRunCompleted, n.handleEvent)
	n.logger.Info("webhook notifier subscribed",
		zap.String("url", n.cfg.URL),
		zap.Duration("timeout", n.cfg.Timeout),
		zap.Bool("enabled", n.cfg.Enabled),
	)
}

// Payload is the JSON body sent to the webhook URL.
type Payload struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

func (n *Notifier) handleEvent(ctx context.Context, e event.Event) {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return
	}

	payload := Payload{
		Event:     e.Topic,
		Source:    e.Source,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Data:      e.Payload,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal webhook payload",
			zap.String("topic", e.Topic),
			zap.Error(err),
		)
		return
	}

	n.send(ctx, body, e.Topic)
}

func (n *Notifier) send(ctx context.Context, body []byte, topic string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Opsight-Webhook/0.1")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.URL),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook endpoint returned error",
			zap.String("url", n.cfg.URL),
			zap.String("topic", topic),
			zap.Int("status_code", resp.StatusCode),
		)
		return
	}

	n.logger.Debug("webhook delivered",
		zap.String("topic", topic),
		zap.Int("status_code", resp.StatusCode),
	)
}
