package analysis

// Event topics published by the pipeline.
const (
	// TopicRunStarted fires when a scoring run begins. Payload: run_id,
	// process_count.
	TopicRunStarted = "analysis.run.started"

	// TopicRunCompleted fires when a scoring run finishes. Payload:
	// run_id, process_count, anomaly_count, threshold, duration_ms.
	TopicRunCompleted = "analysis.run.completed"

	// TopicAnomalyDetected fires once per anomalous process in a run.
	// Payload: run_id, process_id, score, threshold.
	TopicAnomalyDetected = "analysis.anomaly.detected"
)

// eventSource identifies the pipeline as the publisher on the bus.
const eventSource = "analysis"
