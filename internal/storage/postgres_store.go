package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ev-rescue/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS rescues (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	role          TEXT NOT NULL,
	customer_name TEXT NOT NULL DEFAULT '',
	driver_name   TEXT NOT NULL DEFAULT '',
	vehicle       TEXT NOT NULL DEFAULT '',
	start_battery INT NOT NULL,
	end_battery   INT NOT NULL,
	amount        INT NOT NULL,
	stars         INT NOT NULL,
	feedback      TEXT NOT NULL DEFAULT '',
	completed_at  TIMESTAMPTZ NOT NULL
)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate rescues: %w", err)
	}
	return nil
}

func (p *PostgresStore) SaveRescue(ctx context.Context, r *models.RescueRecord) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rescues(session_id, role, customer_name, driver_name, vehicle, start_battery, end_battery, amount, stars, feedback, completed_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.SessionID, r.Role, r.CustomerName, r.DriverName, r.Vehicle, r.StartBattery, r.EndBattery, r.Amount, r.Stars, r.Feedback, r.CompletedAt)
	return err
}

func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]models.RescueRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT session_id, role, customer_name, driver_name, vehicle, start_battery, end_battery, amount, stars, feedback, completed_at FROM rescues ORDER BY completed_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RescueRecord
	for rows.Next() {
		var r models.RescueRecord
		if err := rows.Scan(&r.SessionID, &r.Role, &r.CustomerName, &r.DriverName, &r.Vehicle, &r.StartBattery, &r.EndBattery, &r.Amount, &r.Stars, &r.Feedback, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
