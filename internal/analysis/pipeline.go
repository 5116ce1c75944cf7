package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/event"
	"github.com/lmoreira/opsight/internal/ingest"
)

// Pipeline metrics.
var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Total number of analysis runs.",
		},
		[]string{"status"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_run_duration_seconds",
			Help:    "Analysis run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	anomaliesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_anomalies_detected_total",
			Help: "Total number of anomalous processes detected across runs.",
		},
	)
	processesScored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysis_processes_scored",
			Help: "Number of processes scored in the most recent run.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(anomaliesDetected)
	prometheus.MustRegister(processesScored)
}

// Analyze scores every series and classifies the result table:
// per-series metrics, score = cv * acf_max_diff, then the median+k*MAD
// threshold. Series shorter than cfg.MinSeriesLength get zero metrics
// and a zero score so the table still has one row per input process.
// Pure function; returns ErrEmptyDataset when nothing is classifiable.
func Analyze(series []ingest.Series, cfg Config) (*Table, error) {
	metrics := make([]Metrics, len(series))
	for i, s := range series {
		if len(s.Values) < cfg.MinSeriesLength {
			metrics[i] = Metrics{ProcessID: s.ProcessID}
			continue
		}
		metrics[i] = ComputeMetrics(s.ProcessID, s.Values, cfg.ScoringMaxLag)
	}

	table := BuildTable(metrics)
	if err := Classify(table, cfg.ThresholdMultiplier); err != nil {
		return nil, err
	}
	return table, nil
}

// SeriesSource supplies the series for a run. The file loader and the
// tests both satisfy it.
type SeriesSource interface {
	Load(ctx context.Context) ([]ingest.Series, error)
}

// SourceFunc adapts a function to SeriesSource.
type SourceFunc func(ctx context.Context) ([]ingest.Series, error)

// Load implements SeriesSource.
func (f SourceFunc) Load(ctx context.Context) ([]ingest.Series, error) { return f(ctx) }

// FileSource loads series by parsing an export log from disk on every
// run, so a refreshed export is picked up without a restart.
func FileSource(path string) SeriesSource {
	return SourceFunc(func(ctx context.Context) ([]ingest.Series, error) {
		records, err := ingest.ParseExportFile(path)
		if err != nil {
			return nil, err
		}
		return ingest.BuildSeries(records), nil
	})
}

// Pipeline orchestrates scoring runs: load series, analyze, persist,
// and publish events.
type Pipeline struct {
	source SeriesSource
	store  *Store
	bus    *event.Bus
	logger *zap.Logger
	cfg    Config
}

// NewPipeline assembles a pipeline. store and bus may be nil (the
// one-shot CLI path runs without persistence or events).
func NewPipeline(source SeriesSource, st *Store, bus *event.Bus, logger *zap.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		source: source,
		store:  st,
		bus:    bus,
		logger: logger,
		cfg:    cfg,
	}
}

// Run executes one scoring run end to end.
func (p *Pipeline) Run(ctx context.Context) (*Run, error) {
	start := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: start.UTC(),
	}

	series, err := p.source.Load(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load series: %w", err)
	}
	run.ProcessCount = len(series)

	p.publish(ctx, event.Event{
		Topic:     TopicRunStarted,
		Source:    eventSource,
		Timestamp: run.StartedAt,
		Payload: map[string]any{
			"run_id":        run.ID,
			"process_count": run.ProcessCount,
		},
	})

	table, err := Analyze(series, p.cfg)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("analyze run %s: %w", run.ID, err)
	}

	run.Table = table
	run.Median = table.Median
	run.MAD = table.MAD
	run.Threshold = table.Threshold
	run.CompletedAt = time.Now().UTC()
	for _, row := range table.Rows {
		if row.IsAnomaly {
			run.AnomalyCount++
		}
	}

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			runsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("persist run %s: %w", run.ID, err)
		}
	}

	elapsed := time.Since(start)
	runsTotal.WithLabelValues("ok").Inc()
	runDuration.Observe(elapsed.Seconds())
	anomaliesDetected.Add(float64(run.AnomalyCount))
	processesScored.Set(float64(run.ProcessCount))

	for _, row := range table.Rows {
		if !row.IsAnomaly {
			continue
		}
		p.publish(ctx, event.Event{
			Topic:     TopicAnomalyDetected,
			Source:    eventSource,
			Timestamp: run.CompletedAt,
			Payload: map[string]any{
				"run_id":     run.ID,
				"process_id": row.ProcessID,
				"score":      row.Score,
				"threshold":  run.Threshold,
			},
		})
	}
	p.publish(ctx, event.Event{
		Topic:     TopicRunCompleted,
		Source:    eventSource,
		Timestamp: run.CompletedAt,
		Payload: map[string]any{
			"run_id":        run.ID,
			"process_count": run.ProcessCount,
			"anomaly_count": run.AnomalyCount,
			"threshold":     run.Threshold,
			"duration_ms":   elapsed.Milliseconds(),
		},
	})

	p.logger.Info("analysis run completed",
		zap.String("run_id", run.ID),
		zap.Int("processes", run.ProcessCount),
		zap.Int("anomalies", run.AnomalyCount),
		zap.Float64("threshold", run.Threshold),
		zap.Duration("duration", elapsed),
	)
	return run, nil
}

func (p *Pipeline) publish(ctx context.Context, e event.Event) {
	if p.bus != nil {
		p.bus.Publish(ctx, e)
	}
}
