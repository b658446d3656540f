package models

import "time"

// Reading is a single accepted measurement. Location is denormalized from the
// resolved machine at write time. Readings are immutable once written.
type Reading struct {
	MachineID   string    `json:"machine_id"`
	SensorType  string    `json:"sensor_type"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
}

// HasValue reports whether at least one numeric field is present.
func (r Reading) HasValue() bool {
	return r.Temperature != nil || r.Pressure != nil || r.Speed != nil
}

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertEvent is a derived, non-persistent threshold or inactivity alert. It
// always carries both the measured value and the threshold it crossed.
type AlertEvent struct {
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	Metric      string    `json:"metric"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	MachineID   string    `json:"machine_id"`
	MachineName string    `json:"machine_name"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}
