package ws

import "time"

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageRunStarted      MessageType = "run.started"
	MessageRunCompleted    MessageType = "run.completed"
	MessageAnomalyDetected MessageType = "anomaly.detected"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// RunStartedData is the payload for run.started messages.
type RunStartedData struct {
	ProcessCount int `json:"process_count"`
}

// RunCompletedData is the payload for run.completed messages.
type RunCompletedData struct {
	ProcessCount int     `json:"process_count"`
	AnomalyCount int     `json:"anomaly_count"`
	Threshold    float64 `json:"threshold"`
	DurationMS   int64   `json:"duration_ms"`
}

// AnomalyDetectedData is the payload for anomaly.detected messages.
type AnomalyDetectedData struct {
	ProcessID string  `json:"process_id"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}
