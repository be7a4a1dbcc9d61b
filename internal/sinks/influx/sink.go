// Package influx writes dashboard snapshots and operator actions to InfluxDB
// as time-series points.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/benvon/chronos-console/pkg/model"
)

// Config configures the InfluxDB sink
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Sink implements the time-series sink on InfluxDB v2
type Sink struct {
	cfg    Config
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewSink creates an InfluxDB sink
func NewSink(cfg Config) *Sink {
	return &Sink{cfg: cfg}
}

// Info returns metadata about the sink
func (s *Sink) Info() model.SinkInfo {
	return model.SinkInfo{
		Name:        "influxdb",
		Version:     "1.0.0",
		Description: "InfluxDB v2 sink writing loop temperatures and operator actions as points",
	}
}

// Open creates the client and checks the server is reachable
func (s *Sink) Open(ctx context.Context) error {
	if s.client == nil {
		s.client = influxdb2.NewClient(s.cfg.URL, s.cfg.Token)
		s.writer = s.client.WriteAPIBlocking(s.cfg.Org, s.cfg.Bucket)
	}
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to influxdb: %w", err)
	}
	return nil
}

// Write converts each document to a point and writes them in one request
func (s *Sink) Write(ctx context.Context, docs []model.Doc) (model.WriteResult, error) {
	if len(docs) == 0 {
		return model.WriteResult{}, nil
	}
	if s.writer == nil {
		return model.WriteResult{}, errors.New("sink is not open")
	}

	var result model.WriteResult
	points := make([]*write.Point, 0, len(docs))
	for _, doc := range docs {
		point, err := toPoint(doc)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.ID, err))
			continue
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return result, nil
	}

	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return model.WriteResult{}, fmt.Errorf("writing points: %w", err)
	}
	result.SuccessCount = len(points)
	return result, nil
}

// Ping checks the server answers its ping endpoint
func (s *Sink) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("sink is not open")
	}
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("influxdb ping failed")
	}
	return nil
}

// Close releases the client
func (s *Sink) Close(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func toPoint(doc model.Doc) (*write.Point, error) {
	switch body := doc.Body.(type) {
	case *model.SnapshotDoc:
		return snapshotPoint(body), nil
	case *model.ActionDoc:
		return actionPoint(body), nil
	default:
		return nil, fmt.Errorf("unsupported document body %T", doc.Body)
	}
}

func snapshotPoint(doc *model.SnapshotDoc) *write.Point {
	tags := map[string]string{
		"season":    doc.Season,
		"read_only": strconv.FormatBool(doc.ReadOnly),
	}
	fields := map[string]any{
		"season_mode":   doc.SeasonMode,
		"system_online": doc.SystemOnline,
	}
	addFloat(fields, "water_out_temp", doc.Sensors.WaterOutTemp)
	addFloat(fields, "return_temp", doc.Sensors.ReturnTemp)
	addFloat(fields, "outside_temp", doc.Sensors.OutsideTemp)
	addFloat(fields, "baseline_setpoint", doc.Results.BaselineSetpoint)
	addFloat(fields, "tha_setpoint", doc.Results.THASetpoint)
	addFloat(fields, "effective_setpoint", doc.Results.EffectiveSetpoint)
	addFloat(fields, "wind_chill_avg", doc.Results.WindChillAvg)
	for name, state := range doc.Devices {
		fields["device_"+name] = state
	}
	if doc.UnlockAt != nil {
		fields["lockout_remaining_s"] = doc.UnlockAt.Sub(doc.CollectedAt).Seconds()
	}
	return influxdb2.NewPoint(model.DocTypeSnapshot, tags, fields, doc.CollectedAt)
}

func actionPoint(doc *model.ActionDoc) *write.Point {
	tags := map[string]string{
		"action":  doc.Action,
		"target":  doc.Target,
		"outcome": doc.Outcome,
	}
	fields := map[string]any{
		"value": doc.Value,
	}
	if doc.Message != "" {
		fields["message"] = doc.Message
	}
	return influxdb2.NewPoint(model.DocTypeAction, tags, fields, doc.At)
}

func addFloat(fields map[string]any, name string, v *float64) {
	if v != nil {
		fields[name] = *v
	}
}
