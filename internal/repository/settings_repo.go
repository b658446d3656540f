package repository

import (
	"context"
	"database/sql"
)

// SettingsRepository reads the system_config key/value table. All values are
// stored as text; the evaluator materializes them into a typed snapshot.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository returns repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// All returns every setting as name -> raw value.
func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	const query = `SELECT setting_name, setting_value FROM system_config`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}
