package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benvon/chronos-console/pkg/model"
)

// Recorder archives poll snapshots and operator actions to every sink.
// A failing sink is logged and skipped; recording never fails the caller.
type Recorder struct {
	sinks   []model.Sink
	idGen   model.DocumentIDGenerator
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder writing to sinks. metrics may be nil.
func NewRecorder(sinks []model.Sink, metrics *Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sinks:   sinks,
		idGen:   model.NewIDGenerator(),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Sinks returns the configured sinks
func (r *Recorder) Sinks() []model.Sink {
	return r.sinks
}

// RecordSnapshot archives a polled dashboard
func (r *Recorder) RecordSnapshot(ctx context.Context, d model.Dashboard, online bool) {
	if len(r.sinks) == 0 {
		return
	}
	body := model.NewSnapshotDoc(d, online)
	id, err := r.idGen.GenerateSnapshotID(body)
	if err != nil {
		r.logger.Error("Failed to generate snapshot ID", "error", err)
		return
	}
	r.writeToAllSinks(ctx, []model.Doc{{ID: id, Type: model.DocTypeSnapshot, Body: body}})
}

// RecordAction archives an operator action and its outcome
func (r *Recorder) RecordAction(ctx context.Context, action, target, value, outcome, message string) {
	if len(r.sinks) == 0 {
		return
	}
	body := &model.ActionDoc{
		Type:    model.DocTypeAction,
		At:      r.now().UTC(),
		Action:  action,
		Target:  target,
		Value:   value,
		Outcome: outcome,
		Message: message,
	}
	id, err := r.idGen.GenerateActionID(body)
	if err != nil {
		r.logger.Error("Failed to generate action ID", "error", err)
		return
	}
	r.writeToAllSinks(ctx, []model.Doc{{ID: id, Type: model.DocTypeAction, Body: body}})
}

// Close closes every sink, returning the first error
func (r *Recorder) Close(ctx context.Context) error {
	var first error
	for _, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil {
			r.logger.Error("Failed to close sink", "sink", sink.Info().Name, "error", err)
			if first == nil {
				first = fmt.Errorf("closing sink %s: %w", sink.Info().Name, err)
			}
		}
	}
	return first
}

// writeToAllSinks writes documents to all configured sinks
func (r *Recorder) writeToAllSinks(ctx context.Context, docs []model.Doc) {
	for _, sink := range r.sinks {
		name := sink.Info().Name
		result, err := sink.Write(ctx, docs)
		if err != nil {
			r.logger.Error("Failed to write to sink", "sink", name, "error", err)
			if r.metrics != nil {
				r.metrics.RecordSinkError(name)
			}
			continue
		}

		r.logger.Debug("Wrote to sink",
			"sink", name,
			"success_count", result.SuccessCount,
			"error_count", result.ErrorCount)
		if r.metrics != nil {
			r.metrics.RecordSinkWrite(name, result.SuccessCount)
		}

		if result.ErrorCount > 0 {
			r.logger.Warn("Some documents failed to write",
				"sink", name,
				"errors", result.Errors)
		}
	}
}
