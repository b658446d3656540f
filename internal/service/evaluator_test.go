package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

type stubSettings struct {
	values map[string]string
	err    error
}

func (s *stubSettings) All(context.Context) (map[string]string, error) {
	return s.values, s.err
}

func f(v float64) *float64 { return &v }

func testMachine() *models.Machine {
	return &models.Machine{
		ID:         "m-1",
		Name:       "Press 4",
		Location:   "Floor 1 - Zone A",
		SensorType: "Temperature",
		Status:     models.StatusActive,
	}
}

func newEvaluator(t *testing.T) *ThresholdEvaluator {
	t.Helper()
	return NewThresholdEvaluator(&stubSettings{}, time.Minute, time.Minute, zap.NewNop())
}

func reading(ts time.Time, temp, pressure *float64) models.Reading {
	return models.Reading{
		MachineID:   "m-1",
		SensorType:  "Temperature",
		Location:    "Floor 1 - Zone A",
		Timestamp:   ts,
		Temperature: temp,
		Pressure:    pressure,
	}
}

func TestEvaluate_TemperatureAtThresholdDoesNotAlert(t *testing.T) {
	e := newEvaluator(t)

	alerts := e.Evaluate(testMachine(), reading(time.Now(), f(80.0), nil))
	assert.Empty(t, alerts)

	alerts = e.Evaluate(testMachine(), reading(time.Now(), f(81.0), nil))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "temperature", alerts[0].Metric)
	assert.Equal(t, 81.0, alerts[0].Value)
	assert.Equal(t, 80.0, alerts[0].Threshold)
}

func TestEvaluate_LowTemperatureWarns(t *testing.T) {
	e := newEvaluator(t)

	alerts := e.Evaluate(testMachine(), reading(time.Now(), f(-5.0), nil))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "temperature", alerts[0].Metric)
}

func TestEvaluate_SingleReadingCanProduceMultipleAlerts(t *testing.T) {
	e := newEvaluator(t)

	alerts := e.Evaluate(testMachine(), reading(time.Now(), f(95.0), f(160.0)))
	require.Len(t, alerts, 2)
	assert.Equal(t, "temperature", alerts[0].Metric)
	assert.Equal(t, "pressure", alerts[1].Metric)
	assert.Equal(t, models.SeverityCritical, alerts[1].Severity)
	assert.Equal(t, 150.0, alerts[1].Threshold)
}

func TestSweep_FlagsOncePerTransition(t *testing.T) {
	e := newEvaluator(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	e.now = func() time.Time { return current }

	e.Evaluate(testMachine(), reading(base, f(50.0), nil))

	// Within the timeout: silent but not yet inactive.
	current = base.Add(2 * time.Minute)
	assert.Empty(t, e.Sweep())

	// Past the timeout: exactly one info alert.
	current = base.Add(10 * time.Minute)
	alerts := e.Sweep()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityInfo, alerts[0].Severity)
	assert.Equal(t, "inactivity", alerts[0].Metric)
	assert.Equal(t, 300.0, alerts[0].Threshold)

	// Still silent: no repeat while flagged.
	current = base.Add(20 * time.Minute)
	assert.Empty(t, e.Sweep())

	// A new reading clears the flag; going silent again re-alerts.
	e.Evaluate(testMachine(), reading(current, f(50.0), nil))
	current = current.Add(10 * time.Minute)
	alerts = e.Sweep()
	require.Len(t, alerts, 1)
}

func TestSweep_MaintenanceSuppressesInactivity(t *testing.T) {
	e := newEvaluator(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	e.now = func() time.Time { return current }

	m := testMachine()
	m.Status = models.StatusMaintenance
	e.Evaluate(m, reading(base, f(50.0), nil))

	current = base.Add(time.Hour)
	assert.Empty(t, e.Sweep())
}

func TestSweep_StatusIsSnapshotAtLastReading(t *testing.T) {
	e := newEvaluator(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	e.now = func() time.Time { return current }

	// Last reading arrived while the machine was still active; a later move
	// into maintenance is invisible to the sweep until a new reading lands.
	e.Evaluate(testMachine(), reading(base, f(50.0), nil))

	current = base.Add(time.Hour)
	alerts := e.Sweep()
	require.Len(t, alerts, 1)
	assert.Equal(t, "inactivity", alerts[0].Metric)

	m := testMachine()
	m.Status = models.StatusMaintenance
	e.Evaluate(m, reading(current, f(50.0), nil))
	current = current.Add(time.Hour)
	assert.Empty(t, e.Sweep())
}

func TestSweep_DoesNotBlockConcurrentIngestion(t *testing.T) {
	e := newEvaluator(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base.Add(time.Hour) }

	for i := 0; i < 100; i++ {
		m := testMachine()
		m.ID = uuid.NewString()
		e.Evaluate(m, reading(base, f(50.0), nil))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e.Evaluate(testMachine(), reading(base.Add(time.Hour), f(50.0), nil))
		}
	}()

	alerts := e.Sweep()
	<-done
	assert.Len(t, alerts, 100)
}

func TestRefresh_UpdatesSnapshotAndKeepsPreviousOnBadValues(t *testing.T) {
	settings := &stubSettings{values: map[string]string{
		"max_temperature":    "90.5",
		"min_temperature":    "not-a-number",
		"max_pressure":       "200",
		"inactivity_timeout": "120",
	}}
	e := NewThresholdEvaluator(settings, time.Minute, time.Minute, zap.NewNop())

	e.Refresh(context.Background())
	snap := e.Snapshot()
	assert.Equal(t, 90.5, snap.MaxTemperature)
	assert.Equal(t, 0.0, snap.MinTemperature) // default kept, value unparseable
	assert.Equal(t, 200.0, snap.MaxPressure)
	assert.Equal(t, 2*time.Minute, snap.InactivityTimeout)
}

func TestRefresh_FetchFailureKeepsSnapshot(t *testing.T) {
	settings := &stubSettings{err: assert.AnError}
	e := NewThresholdEvaluator(settings, time.Minute, time.Minute, zap.NewNop())

	e.Refresh(context.Background())
	assert.Equal(t, defaultSnapshot(), e.Snapshot())
}
