package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"barberbot/internal/model"
)

func (db *DB) ListActiveBarbers(ctx context.Context) ([]model.Barber, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, is_active FROM barbers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list barbers: %w", err)
	}
	defer rows.Close()

	var out []model.Barber
	for rows.Next() {
		var b model.Barber
		if err := rows.Scan(&b.ID, &b.Name, &b.IsActive); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindBarberByName matches the exact name among active barbers.
func (db *DB) FindBarberByName(ctx context.Context, name string) (model.Barber, error) {
	return scanBarber(db.QueryRowContext(ctx,
		`SELECT id, name, is_active FROM barbers WHERE name = ? AND is_active = 1`, name))
}

func (db *DB) FindBarberByID(ctx context.Context, id int64) (model.Barber, error) {
	return scanBarber(db.QueryRowContext(ctx, `SELECT id, name, is_active FROM barbers WHERE id = ?`, id))
}

func scanBarber(row *sql.Row) (model.Barber, error) {
	var b model.Barber
	err := row.Scan(&b.ID, &b.Name, &b.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Barber{}, model.ErrNotFound
	}
	return b, err
}

const serviceColumns = `id, name, duration_minutes, price_cents, is_active`

func (db *DB) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindServiceByName matches the exact name among active services.
func (db *DB) FindServiceByName(ctx context.Context, name string) (model.Service, error) {
	return scanService(db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE name = ? AND is_active = 1`, name))
}

func (db *DB) FindServiceByID(ctx context.Context, id int64) (model.Service, error) {
	return scanService(db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
}

func scanService(row *sql.Row) (model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Service{}, model.ErrNotFound
	}
	return s, err
}
