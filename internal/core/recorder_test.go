package core

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/benvon/chronos-console/pkg/model"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	good := &mockSink{name: "sqlite"}
	bad := &mockSink{name: "influxdb", fail: true}
	metrics := NewMetrics()
	recorder := NewRecorder([]model.Sink{bad, good}, metrics, discardLogger())

	d := model.Dashboard{Season: model.SeasonSummer, SeasonMode: model.ModeSummer, CollectedAt: testStart}
	recorder.RecordSnapshot(ctx, d, true)
	recorder.RecordAction(ctx, ActionSeasonSwitch, "winter", "winter", model.OutcomeRejected, MsgReadOnly)

	docs := good.written()
	if len(docs) != 2 {
		t.Fatalf("Expected the healthy sink to receive 2 documents, got %d", len(docs))
	}
	if !strings.HasPrefix(docs[0].ID, "snapshot:2024-01-15T12:00:00Z:") {
		t.Errorf("Unexpected snapshot ID %q", docs[0].ID)
	}
	action := docs[1].Body.(*model.ActionDoc)
	if action.Outcome != model.OutcomeRejected || action.Message != MsgReadOnly || action.ID == "" {
		t.Errorf("Unexpected action document %+v", action)
	}

	if got := testutil.ToFloat64(metrics.sinkWrites.WithLabelValues("influxdb", "error")); got != 2 {
		t.Errorf("Expected 2 sink errors, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.sinkDocuments.WithLabelValues("sqlite")); got != 2 {
		t.Errorf("Expected 2 documents written, got %v", got)
	}

	if err := recorder.Close(ctx); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
	if !good.closed || !bad.closed {
		t.Error("Expected every sink closed")
	}
}

func TestRecorderWithoutSinks(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(nil, nil, discardLogger())
	recorder.RecordSnapshot(context.Background(), model.Dashboard{}, false)
	recorder.RecordAction(context.Background(), ActionOverride, "boiler", "on", model.OutcomeAccepted, "")
	if len(recorder.Sinks()) != 0 {
		t.Error("Expected no sinks")
	}
}
