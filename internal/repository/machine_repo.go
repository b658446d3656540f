package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// MachineRepository reads machine_metadata. This service never writes it.
type MachineRepository struct {
	db *sql.DB
}

// NewMachineRepository returns repository.
func NewMachineRepository(db *sql.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// Find returns the machine record for id, or models.ErrMachineNotFound.
func (r *MachineRepository) Find(ctx context.Context, id string) (*models.Machine, error) {
	const query = `
		SELECT id, name, location, sensor_type, status, created_at, updated_at
		FROM machine_metadata
		WHERE id = $1
	`
	var m models.Machine
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.Location,
		&m.SensorType,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrMachineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MachineFilter narrows List results. Empty fields match everything.
type MachineFilter struct {
	Location   string
	Status     string
	SensorType string
}

// List returns machines matching the filter, ordered by name.
func (r *MachineRepository) List(ctx context.Context, filter MachineFilter) ([]models.Machine, error) {
	query := `
		SELECT id, name, location, sensor_type, status, created_at, updated_at
		FROM machine_metadata
		WHERE 1=1
	`
	args := make([]interface{}, 0, 3)
	if filter.Location != "" {
		args = append(args, filter.Location)
		query += fmt.Sprintf(" AND location = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.SensorType != "" {
		args = append(args, filter.SensorType)
		query += fmt.Sprintf(" AND sensor_type = $%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Machine
	for rows.Next() {
		var m models.Machine
		if err := rows.Scan(&m.ID, &m.Name, &m.Location, &m.SensorType, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
