package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"barberbot/internal/config"
)

// SyncCatalog applies catalog.yaml to the database. Entries are upserted by name and
// barbers or services missing from the file are deactivated, never deleted, so past
// appointments keep their references.
func (db *DB) SyncCatalog(ctx context.Context, cfg *config.CatalogConfig) error {
	if cfg == nil {
		return fmt.Errorf("catalog config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog sync: %w", err)
	}
	defer tx.Rollback()

	now := utc(db.now())
	barbers := make([]any, 0, len(cfg.Barbers))
	for _, b := range cfg.Barbers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO barbers (name, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			b.Name, b.Active(), now, now)
		if err != nil {
			return fmt.Errorf("sync barber %q: %w", b.Name, err)
		}
		barbers = append(barbers, b.Name)
	}

	services := make([]any, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (name, duration_minutes, price_cents, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				duration_minutes = excluded.duration_minutes,
				price_cents = excluded.price_cents,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.Name, s.DurationMinutes, s.PriceCents, s.Active(), now, now)
		if err != nil {
			return fmt.Errorf("sync service %q: %w", s.Name, err)
		}
		services = append(services, s.Name)
	}

	if err := deactivateMissing(ctx, tx, "barbers", barbers, now); err != nil {
		return err
	}
	if err := deactivateMissing(ctx, tx, "services", services, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog sync: %w", err)
	}

	db.logger.Info().
		Int("barbers", len(cfg.Barbers)).
		Int("services", len(cfg.Services)).
		Msg("Catalog synced")
	return nil
}

func deactivateMissing(ctx context.Context, tx *sql.Tx, table string, keep []any, now any) error {
	query := `UPDATE ` + table + ` SET is_active = 0, updated_at = ? WHERE is_active = 1`
	if len(keep) > 0 {
		query += ` AND name NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
	}
	args := append([]any{now}, keep...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate %s: %w", table, err)
	}
	return nil
}
