package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
)

const appointmentColumns = `id, client_id, barber_id, service_id, start_at, end_at, status, reminder_sent_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a        model.Appointment
		status   string
		reminder sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ClientID, &a.BarberID, &a.ServiceID, &a.StartAt, &a.EndAt,
		&status, &reminder, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.StartAt = db.local(a.StartAt)
	a.EndAt = db.local(a.EndAt)
	a.CreatedAt = db.local(a.CreatedAt)
	a.UpdatedAt = db.local(a.UpdatedAt)
	if reminder.Valid {
		t := db.local(reminder.Time)
		a.ReminderSentAt = &t
	}
	return a, nil
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := db.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListForBarberOnDate returns the scheduled appointments of a barber starting on the
// civil date of day.
func (db *DB) ListForBarberOnDate(ctx context.Context, barberID int64, day time.Time) ([]model.Appointment, error) {
	from, to := calendar.DayBounds(day.In(db.location), db.location)
	out, err := db.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE barber_id = ? AND status = 'scheduled' AND start_at >= ? AND start_at < ?
		ORDER BY start_at`, barberID, utc(from), utc(to))
	if err != nil {
		return nil, fmt.Errorf("list barber appointments: %w", err)
	}
	return out, nil
}

// ListForClient returns the client's appointments, newest first. An empty status
// returns every status.
func (db *DB) ListForClient(ctx context.Context, clientID int64, status model.Status) ([]model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE client_id = ?`
	args := []any{clientID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY start_at DESC`

	out, err := db.queryAppointments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list client appointments: %w", err)
	}
	return out, nil
}

func (db *DB) Get(ctx context.Context, id int64) (model.Appointment, error) {
	a, err := db.scanAppointment(db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	return a, err
}

// Create books an appointment. Validation, the overlap check and the insert run in
// one transaction.
func (db *DB) Create(ctx context.Context, a model.NewAppointment) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	id, err := db.insertAppointment(ctx, tx, a)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create: %w", err)
	}
	return id, nil
}

// Cancel marks an appointment cancelled.
func (db *DB) Cancel(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = 'cancelled', updated_at = ? WHERE id = ?`, utc(db.now()), id)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// Reschedule cancels oldID and books a as a single transaction. The old appointment
// no longer blocks the new interval.
func (db *DB) Reschedule(ctx context.Context, oldID int64, a model.NewAppointment) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE appointments SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'scheduled'`, utc(db.now()), oldID)
	if err != nil {
		return 0, fmt.Errorf("cancel old appointment: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("appointment %d: %w", oldID, model.ErrNotFound)
	}

	id, err := db.insertAppointment(ctx, tx, a)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reschedule: %w", err)
	}
	return id, nil
}

func (db *DB) insertAppointment(ctx context.Context, tx *sql.Tx, a model.NewAppointment) (int64, error) {
	if !a.EndAt.After(a.StartAt) {
		return 0, fmt.Errorf("invalid interval %s-%s", a.StartAt, a.EndAt)
	}

	if err := requireActive(ctx, tx, `SELECT is_active FROM barbers WHERE id = ?`, a.BarberID, "barber"); err != nil {
		return 0, err
	}
	if err := requireActive(ctx, tx, `SELECT is_active FROM services WHERE id = ?`, a.ServiceID, "service"); err != nil {
		return 0, err
	}
	var clientID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM clients WHERE id = ?`, a.ClientID).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("client %d: %w", a.ClientID, model.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("check client: %w", err)
	}

	var conflicts int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM appointments
		WHERE barber_id = ? AND status = 'scheduled' AND start_at < ? AND end_at > ?`,
		a.BarberID, utc(a.EndAt), utc(a.StartAt)).Scan(&conflicts)
	if err != nil {
		return 0, fmt.Errorf("check overlap: %w", err)
	}
	if conflicts > 0 {
		return 0, model.ErrSlotTaken
	}

	now := utc(db.now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (client_id, barber_id, service_id, start_at, end_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'scheduled', ?, ?)`,
		a.ClientID, a.BarberID, a.ServiceID, utc(a.StartAt), utc(a.EndAt), now, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, model.ErrSlotTaken
		}
		return 0, fmt.Errorf("insert appointment: %w", err)
	}
	return res.LastInsertId()
}

func requireActive(ctx context.Context, tx *sql.Tx, query string, id int64, what string) error {
	var active bool
	err := tx.QueryRowContext(ctx, query, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check %s: %w", what, err)
	}
	if !active {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrInactive)
	}
	return nil
}

const detailQuery = `
	SELECT a.id, a.client_id, a.barber_id, a.service_id, a.start_at, a.end_at, a.status,
		a.reminder_sent_at, a.created_at, a.updated_at, c.client_key, b.name, s.name
	FROM appointments a
	JOIN clients c ON c.id = a.client_id
	JOIN barbers b ON b.id = a.barber_id
	JOIN services s ON s.id = a.service_id`

func (db *DB) queryDetails(ctx context.Context, query string, args ...any) ([]model.AppointmentDetail, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDetail
	for rows.Next() {
		var (
			d        model.AppointmentDetail
			status   string
			reminder sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.ClientID, &d.BarberID, &d.ServiceID, &d.StartAt, &d.EndAt,
			&status, &reminder, &d.CreatedAt, &d.UpdatedAt, &d.ClientKey, &d.BarberName, &d.ServiceName); err != nil {
			return nil, err
		}
		d.Status = model.Status(status)
		d.StartAt, d.EndAt = db.local(d.StartAt), db.local(d.EndAt)
		d.CreatedAt, d.UpdatedAt = db.local(d.CreatedAt), db.local(d.UpdatedAt)
		if reminder.Valid {
			t := db.local(reminder.Time)
			d.ReminderSentAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAppointmentsBetween returns every appointment starting in [from, to), oldest first.
func (db *DB) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.AppointmentDetail, error) {
	out, err := db.queryDetails(ctx, detailQuery+`
		WHERE a.start_at >= ? AND a.start_at < ?
		ORDER BY a.start_at, a.id`, utc(from), utc(to))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

// GetDetail returns one appointment with display names.
func (db *DB) GetDetail(ctx context.Context, id int64) (model.AppointmentDetail, error) {
	out, err := db.queryDetails(ctx, detailQuery+` WHERE a.id = ?`, id)
	if err != nil {
		return model.AppointmentDetail{}, fmt.Errorf("get appointment detail: %w", err)
	}
	if len(out) == 0 {
		return model.AppointmentDetail{}, fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	return out[0], nil
}
