package models

import (
	"errors"
	"time"
)

// Machine lifecycle statuses enforced by the machine_metadata check constraint.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
	StatusError       = "error"
)

// ErrMachineNotFound is returned when a machine id has no registry record.
var ErrMachineNotFound = errors.New("machine not found")

// Machine is the registry record for one industrial machine. The relational
// store owns it; cached copies expire and are never authoritative.
type Machine struct {
	ID         string    `db:"id" json:"machine_id"`
	Name       string    `db:"name" json:"name"`
	Location   string    `db:"location" json:"location"`
	SensorType string    `db:"sensor_type" json:"sensor_type"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
