package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/config"
	"github.com/denzueee/gonsters-backend-assessment/internal/models"
	"github.com/denzueee/gonsters-backend-assessment/internal/service"
	"github.com/denzueee/gonsters-backend-assessment/internal/timeseries"
)

const (
	topicSegments   = 5
	machineSegment  = 3
	processTimeout  = 10 * time.Second
	disconnectQuiet = 250 // ms
)

// telemetryPayload is the reading-shaped MQTT message body.
type telemetryPayload struct {
	Timestamp   string   `json:"timestamp"`
	SensorType  string   `json:"sensor_type"`
	Temperature *float64 `json:"temperature,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
}

// Subscriber consumes single-reading telemetry messages from the broker and
// pushes them through resolve, write, evaluate and broadcast. Message failures
// are terminal for that message only; delivery is at most once.
type Subscriber struct {
	cfg       config.Config
	client    paho.Client
	resolver  service.MachineResolver
	writer    timeseries.Writer
	evaluator service.ReadingEvaluator
	publisher service.EventPublisher
	logger    *zap.Logger
}

// NewSubscriber builds the subscriber; Start connects it.
func NewSubscriber(cfg *config.Config, resolver service.MachineResolver, writer timeseries.Writer, evaluator service.ReadingEvaluator, publisher service.EventPublisher, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		cfg:       *cfg,
		resolver:  resolver,
		writer:    writer,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
	}
}

// Start connects to the broker and subscribes. The retained last-will status
// record lets downstream consumers detect an ingestion-path outage. Paho
// reconnects on its own and the OnConnect handler resubscribes.
func (s *Subscriber) Start(ctx context.Context) error {
	will, _ := json.Marshal(map[string]string{
		"status":    "offline",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	opts := paho.NewClientOptions().
		AddBroker(s.cfg.MQTT.Broker).
		SetClientID(s.cfg.MQTT.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetWill(s.cfg.MQTT.StatusTopic, string(will), 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("mqtt connection lost, reconnecting", zap.Error(err))
		}).
		SetOnConnectHandler(func(client paho.Client) {
			token := client.Subscribe(s.cfg.MQTT.Topic, byte(s.cfg.MQTT.QoS), s.onMessage)
			if token.Wait() && token.Error() != nil {
				s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.MQTT.Topic), zap.Error(token.Error()))
				return
			}
			s.logger.Info("mqtt subscribed", zap.String("topic", s.cfg.MQTT.Topic))
		})

	if s.cfg.MQTT.Username != "" {
		opts.SetUsername(s.cfg.MQTT.Username)
		opts.SetPassword(s.cfg.MQTT.Password)
	}

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.logger.Info("mqtt subscriber started", zap.String("broker", s.cfg.MQTT.Broker))
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiet)
	}
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	s.process(ctx, msg.Topic(), msg.Payload())
}

// process handles one message. Messages on one connection arrive in order and
// are processed sequentially; every validation failure drops only this message.
func (s *Subscriber) process(ctx context.Context, topic string, payload []byte) {
	machineID, ok := parseTopic(topic)
	if !ok {
		s.logger.Warn("invalid topic format, dropping message", zap.String("topic", topic))
		return
	}

	var body telemetryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		s.logger.Warn("invalid json payload, dropping message", zap.String("topic", topic), zap.Error(err))
		return
	}
	if body.Timestamp == "" || body.SensorType == "" {
		s.logger.Warn("missing required field, dropping message", zap.String("machine_id", machineID))
		return
	}
	if body.Temperature == nil && body.Pressure == nil && body.Speed == nil {
		s.logger.Warn("no sensor values in payload, dropping message", zap.String("machine_id", machineID))
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	if err != nil {
		s.logger.Warn("invalid timestamp, dropping message",
			zap.String("machine_id", machineID), zap.String("timestamp", body.Timestamp))
		return
	}

	machine, err := s.resolver.Resolve(ctx, machineID)
	if err != nil {
		s.logger.Warn("unknown machine, dropping message", zap.String("machine_id", machineID))
		return
	}

	reading := models.Reading{
		MachineID:   machine.ID,
		SensorType:  body.SensorType,
		Location:    machine.Location,
		Timestamp:   ts,
		Temperature: body.Temperature,
		Pressure:    body.Pressure,
		Speed:       body.Speed,
	}

	if err := s.writer.WritePoint(ctx, reading); err != nil {
		// At-most-once: no retry queue, the failure is terminal for this message.
		s.logger.Error("time-series write failed, dropping message",
			zap.String("machine_id", machine.ID), zap.Error(err))
		return
	}

	alerts := s.evaluator.Evaluate(machine, reading)
	s.publisher.PublishReading(reading)
	for _, alert := range alerts {
		s.publisher.PublishAlert(alert)
	}
}

// parseTopic extracts the machine id from the fixed five-segment path
// <realm>/<realm-id>/machine/<machine-id>/telemetry.
func parseTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicSegments {
		return "", false
	}
	if parts[2] != "machine" || parts[4] != "telemetry" {
		return "", false
	}
	if parts[machineSegment] == "" {
		return "", false
	}
	return parts[machineSegment], true
}
