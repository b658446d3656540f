package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

type stubResolver struct {
	machines map[string]*models.Machine
}

func (s *stubResolver) Resolve(_ context.Context, id string) (*models.Machine, error) {
	if m, ok := s.machines[id]; ok {
		return m, nil
	}
	return nil, models.ErrMachineNotFound
}

type recordingWriter struct {
	points []models.Reading
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, r models.Reading) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, r)
	return nil
}

type recordingEvaluator struct {
	calls  int
	alerts []models.AlertEvent
}

func (e *recordingEvaluator) Evaluate(*models.Machine, models.Reading) []models.AlertEvent {
	e.calls++
	return e.alerts
}

type recordingPublisher struct {
	readings []models.Reading
	alerts   []models.AlertEvent
}

func (p *recordingPublisher) PublishReading(r models.Reading)  { p.readings = append(p.readings, r) }
func (p *recordingPublisher) PublishAlert(a models.AlertEvent) { p.alerts = append(p.alerts, a) }

func newTestSubscriber(resolver *stubResolver, writer *recordingWriter, evaluator *recordingEvaluator, publisher *recordingPublisher) *Subscriber {
	return &Subscriber{
		resolver:  resolver,
		writer:    writer,
		evaluator: evaluator,
		publisher: publisher,
		logger:    zap.NewNop(),
	}
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		want   string
		wantOK bool
	}{
		{"valid", "factory/plant-1/machine/m-42/telemetry", "m-42", true},
		{"too few segments", "factory/machine/m-42/telemetry", "", false},
		{"too many segments", "factory/a/b/machine/m-42/telemetry", "", false},
		{"wrong literal", "factory/plant-1/device/m-42/telemetry", "", false},
		{"wrong suffix", "factory/plant-1/machine/m-42/status", "", false},
		{"empty machine id", "factory/plant-1/machine//telemetry", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTopic(tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcess_ValidMessageWritesEvaluatesBroadcasts(t *testing.T) {
	machine := &models.Machine{ID: "m-1", Name: "Press 4", Location: "Floor 1", SensorType: "Temperature", Status: models.StatusActive}
	resolver := &stubResolver{machines: map[string]*models.Machine{"m-1": machine}}
	writer := &recordingWriter{}
	evaluator := &recordingEvaluator{alerts: []models.AlertEvent{{Severity: models.SeverityCritical, Metric: "temperature"}}}
	publisher := &recordingPublisher{}
	s := newTestSubscriber(resolver, writer, evaluator, publisher)

	s.process(context.Background(), "factory/plant-1/machine/m-1/telemetry",
		[]byte(`{"timestamp":"2025-01-01T00:00:00Z","sensor_type":"Temperature","temperature":85.5}`))

	require.Len(t, writer.points, 1)
	assert.Equal(t, "m-1", writer.points[0].MachineID)
	assert.Equal(t, "Floor 1", writer.points[0].Location) // denormalized from the machine
	assert.Equal(t, 1, evaluator.calls)
	assert.Len(t, publisher.readings, 1)
	assert.Len(t, publisher.alerts, 1)
}

func TestProcess_DropsInvalidMessages(t *testing.T) {
	machine := &models.Machine{ID: "m-1", Location: "Floor 1"}
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"malformed topic", "factory/machine/m-1/telemetry", `{"timestamp":"2025-01-01T00:00:00Z","sensor_type":"T","temperature":1}`},
		{"invalid json", "factory/p/machine/m-1/telemetry", `{not json`},
		{"missing timestamp", "factory/p/machine/m-1/telemetry", `{"sensor_type":"T","temperature":1}`},
		{"missing sensor_type", "factory/p/machine/m-1/telemetry", `{"timestamp":"2025-01-01T00:00:00Z","temperature":1}`},
		{"no sensor values", "factory/p/machine/m-1/telemetry", `{"timestamp":"2025-01-01T00:00:00Z","sensor_type":"T"}`},
		{"bad timestamp", "factory/p/machine/m-1/telemetry", `{"timestamp":"noon","sensor_type":"T","temperature":1}`},
		{"unknown machine", "factory/p/machine/ghost/telemetry", `{"timestamp":"2025-01-01T00:00:00Z","sensor_type":"T","temperature":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &recordingWriter{}
			publisher := &recordingPublisher{}
			s := newTestSubscriber(&stubResolver{machines: map[string]*models.Machine{"m-1": machine}}, writer, &recordingEvaluator{}, publisher)

			s.process(context.Background(), tt.topic, []byte(tt.payload))
			assert.Empty(t, writer.points)
			assert.Empty(t, publisher.readings)
		})
	}
}

func TestProcess_WriteFailureDropsWithoutBroadcast(t *testing.T) {
	machine := &models.Machine{ID: "m-1", Location: "Floor 1"}
	resolver := &stubResolver{machines: map[string]*models.Machine{"m-1": machine}}
	writer := &recordingWriter{err: assert.AnError}
	evaluator := &recordingEvaluator{}
	publisher := &recordingPublisher{}
	s := newTestSubscriber(resolver, writer, evaluator, publisher)

	s.process(context.Background(), "factory/p/machine/m-1/telemetry",
		[]byte(`{"timestamp":"2025-01-01T00:00:00Z","sensor_type":"T","temperature":1}`))

	assert.Zero(t, evaluator.calls)
	assert.Empty(t, publisher.readings)
	assert.Empty(t, publisher.alerts)
}
