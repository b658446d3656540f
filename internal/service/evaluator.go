package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// Threshold setting names in the system_config table.
const (
	settingMaxTemperature    = "max_temperature"
	settingMinTemperature    = "min_temperature"
	settingMaxPressure       = "max_pressure"
	settingInactivityTimeout = "inactivity_timeout"
)

// ThresholdSnapshot is the typed view of the threshold settings, materialized
// once per refresh. A value that fails to parse keeps its previous valid value.
type ThresholdSnapshot struct {
	MaxTemperature    float64
	MinTemperature    float64
	MaxPressure       float64
	InactivityTimeout time.Duration
}

func defaultSnapshot() ThresholdSnapshot {
	return ThresholdSnapshot{
		MaxTemperature:    80.0,
		MinTemperature:    0.0,
		MaxPressure:       150.0,
		InactivityTimeout: 5 * time.Minute,
	}
}

// SettingsSource supplies raw threshold values (the config provider).
type SettingsSource interface {
	All(ctx context.Context) (map[string]string, error)
}

type machineActivity struct {
	lastReading time.Time
	name        string
	location    string
	status      string
	flagged     bool
}

// ThresholdEvaluator compares accepted readings, and elapsed silence per
// machine, against the current threshold snapshot.
type ThresholdEvaluator struct {
	settings        SettingsSource
	logger          *zap.Logger
	refreshInterval time.Duration
	sweepInterval   time.Duration
	now             func() time.Time

	mu       sync.Mutex
	snapshot ThresholdSnapshot
	activity map[string]*machineActivity
}

// NewThresholdEvaluator returns an evaluator seeded with usable defaults,
// so evaluation works before the first refresh.
func NewThresholdEvaluator(settings SettingsSource, refreshInterval, sweepInterval time.Duration, logger *zap.Logger) *ThresholdEvaluator {
	return &ThresholdEvaluator{
		settings:        settings,
		logger:          logger,
		refreshInterval: refreshInterval,
		sweepInterval:   sweepInterval,
		now:             time.Now,
		snapshot:        defaultSnapshot(),
		activity:        make(map[string]*machineActivity),
	}
}

// Snapshot returns a copy of the current thresholds.
func (e *ThresholdEvaluator) Snapshot() ThresholdSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Evaluate checks one accepted reading. All rules trigger independently, so a
// single reading can produce zero, one or multiple alerts. Inequalities are
// strict: a value exactly at the threshold does not alert. The reading also
// refreshes the machine's activity record and clears any inactivity flag.
func (e *ThresholdEvaluator) Evaluate(machine *models.Machine, reading models.Reading) []models.AlertEvent {
	snap := e.Snapshot()

	var alerts []models.AlertEvent
	if reading.Temperature != nil {
		if *reading.Temperature > snap.MaxTemperature {
			alerts = append(alerts, e.alert(machine, models.SeverityCritical, "temperature", *reading.Temperature, snap.MaxTemperature,
				fmt.Sprintf("temperature %.1f exceeds maximum %.1f", *reading.Temperature, snap.MaxTemperature)))
		}
		if *reading.Temperature < snap.MinTemperature {
			alerts = append(alerts, e.alert(machine, models.SeverityWarning, "temperature", *reading.Temperature, snap.MinTemperature,
				fmt.Sprintf("temperature %.1f below minimum %.1f", *reading.Temperature, snap.MinTemperature)))
		}
	}
	if reading.Pressure != nil && *reading.Pressure > snap.MaxPressure {
		alerts = append(alerts, e.alert(machine, models.SeverityCritical, "pressure", *reading.Pressure, snap.MaxPressure,
			fmt.Sprintf("pressure %.1f exceeds maximum %.1f", *reading.Pressure, snap.MaxPressure)))
	}

	e.mu.Lock()
	e.activity[machine.ID] = &machineActivity{
		lastReading: reading.Timestamp,
		name:        machine.Name,
		location:    machine.Location,
		status:      machine.Status,
	}
	e.mu.Unlock()

	return alerts
}

func (e *ThresholdEvaluator) alert(machine *models.Machine, severity, metric string, value, threshold float64, message string) models.AlertEvent {
	return models.AlertEvent{
		Severity:    severity,
		Message:     message,
		Metric:      metric,
		Value:       value,
		Threshold:   threshold,
		MachineID:   machine.ID,
		MachineName: machine.Name,
		Location:    machine.Location,
		Timestamp:   e.now().UTC(),
	}
}

// Sweep flags machines that went silent for longer than the inactivity
// timeout. Each machine alerts once per transition into the inactive state;
// the flag clears only when a new reading is accepted. Maintenance uses the
// status captured with the machine's last accepted reading: a machine moved
// into maintenance after it already stopped reporting is still flagged once.
// The lock is taken per machine, so ingestion never waits behind a full scan,
// and a reading accepted mid-sweep wins over the stale snapshot of its entry.
func (e *ThresholdEvaluator) Sweep() []models.AlertEvent {
	now := e.now().UTC()
	snap := e.Snapshot()

	e.mu.Lock()
	ids := make([]string, 0, len(e.activity))
	for id := range e.activity {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var alerts []models.AlertEvent
	for _, id := range ids {
		e.mu.Lock()
		act, ok := e.activity[id]
		if !ok || act.status == models.StatusMaintenance || act.flagged {
			e.mu.Unlock()
			continue
		}
		silent := now.Sub(act.lastReading)
		if silent <= snap.InactivityTimeout {
			e.mu.Unlock()
			continue
		}
		act.flagged = true
		name, location := act.name, act.location
		e.mu.Unlock()

		alerts = append(alerts, models.AlertEvent{
			Severity:    models.SeverityInfo,
			Message:     fmt.Sprintf("machine %s inactive: no data received for %s", name, silent.Round(time.Second)),
			Metric:      "inactivity",
			Value:       silent.Seconds(),
			Threshold:   snap.InactivityTimeout.Seconds(),
			MachineID:   id,
			MachineName: name,
			Location:    location,
			Timestamp:   now,
		})
	}
	return alerts
}

// Refresh re-reads thresholds from the config provider. Fetch failures keep the
// previous snapshot; so does any single value that fails to parse.
func (e *ThresholdEvaluator) Refresh(ctx context.Context) {
	raw, err := e.settings.All(ctx)
	if err != nil {
		e.logger.Warn("threshold refresh failed, keeping previous snapshot", zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.snapshot
	e.applyFloat(raw, settingMaxTemperature, &next.MaxTemperature)
	e.applyFloat(raw, settingMinTemperature, &next.MinTemperature)
	e.applyFloat(raw, settingMaxPressure, &next.MaxPressure)
	if v, ok := raw[settingInactivityTimeout]; ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			next.InactivityTimeout = time.Duration(secs * float64(time.Second))
		} else {
			e.logger.Warn("unparseable threshold value, keeping previous",
				zap.String("setting", settingInactivityTimeout), zap.String("value", v))
		}
	}
	e.snapshot = next
}

func (e *ThresholdEvaluator) applyFloat(raw map[string]string, name string, target *float64) {
	v, ok := raw[name]
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.logger.Warn("unparseable threshold value, keeping previous",
			zap.String("setting", name), zap.String("value", v))
		return
	}
	*target = parsed
}

// RunRefresh polls the config provider until ctx is cancelled.
func (e *ThresholdEvaluator) RunRefresh(ctx context.Context) {
	e.Refresh(ctx)
	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Refresh(ctx)
		}
	}
}

// RunSweep drives the inactivity watchdog until ctx is cancelled, publishing
// each emitted alert. The sweep never blocks ingestion; it holds the shared
// lock only while scanning the activity map.
func (e *ThresholdEvaluator) RunSweep(ctx context.Context, publisher EventPublisher) {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, alert := range e.Sweep() {
				publisher.PublishAlert(alert)
			}
		}
	}
}
