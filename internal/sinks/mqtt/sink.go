// Package mqtt publishes dashboard snapshots and operator actions to an MQTT
// broker so other plant services can follow the console.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/benvon/chronos-console/pkg/model"
)

const (
	publishTimeout = 10 * time.Second
	disconnectWait = 250
)

// Config configures the MQTT sink
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// publisher is the part of the paho client the sink uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Sink publishes each document as JSON to <prefix>/<document type>.
// Snapshots are retained so new subscribers see the latest state.
type Sink struct {
	cfg    Config
	client publisher
	logger *slog.Logger
}

// NewSink creates an MQTT sink
func NewSink(cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "chronos"
	}
	return &Sink{cfg: cfg, logger: logger}
}

// Info returns metadata about the sink
func (s *Sink) Info() model.SinkInfo {
	return model.SinkInfo{
		Name:        "mqtt",
		Version:     "1.0.0",
		Description: "MQTT fan-out of snapshots and operator actions",
	}
}

// Open connects to the broker, retrying with exponential backoff
func (s *Sink) Open(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn("MQTT connection lost", "broker", s.cfg.Broker, "error", err)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client paho.Client
	err := backoff.Retry(func() error {
		client = paho.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(publishTimeout) {
			return errors.New("timed out connecting to broker")
		}
		if err := token.Error(); err != nil {
			s.logger.Warn("Failed to connect to MQTT broker", "broker", s.cfg.Broker, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}

	s.client = client
	s.logger.Info("Connected to MQTT broker", "broker", s.cfg.Broker)
	return nil
}

// Write publishes every document and waits for the broker to acknowledge it
func (s *Sink) Write(ctx context.Context, docs []model.Doc) (model.WriteResult, error) {
	if len(docs) == 0 {
		return model.WriteResult{}, nil
	}
	if s.client == nil {
		return model.WriteResult{}, errors.New("sink is not open")
	}

	var result model.WriteResult
	for _, doc := range docs {
		if err := s.publish(ctx, doc); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.ID, err))
			continue
		}
		result.SuccessCount++
	}
	if result.SuccessCount == 0 && result.ErrorCount > 0 && !s.client.IsConnectionOpen() {
		return result, errors.New("mqtt broker connection is down")
	}
	return result, nil
}

func (s *Sink) publish(ctx context.Context, doc model.Doc) error {
	payload, err := json.Marshal(doc.Body)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	token := s.client.Publish(s.Topic(doc.Type), s.cfg.QoS, doc.Type == model.DocTypeSnapshot, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("timed out publishing")
	}
	return token.Error()
}

// Topic returns the topic a document type is published to
func (s *Sink) Topic(docType string) string {
	return strings.TrimRight(s.cfg.TopicPrefix, "/") + "/" + docType
}

// Ping reports whether the broker connection is up
func (s *Sink) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("sink is not open")
	}
	if !s.client.IsConnectionOpen() {
		return errors.New("mqtt broker connection is down")
	}
	return nil
}

// Close disconnects from the broker
func (s *Sink) Close(ctx context.Context) error {
	if s.client != nil && s.client.IsConnectionOpen() {
		s.client.Disconnect(disconnectWait)
		s.logger.Info("MQTT client disconnected")
	}
	return nil
}
