package db

import (
	"context"
	"fmt"
	"time"

	"barberbot/internal/model"
)

// ListDueReminders returns scheduled appointments starting in [from, to) that have
// not been reminded yet.
func (db *DB) ListDueReminders(ctx context.Context, from, to time.Time) ([]model.AppointmentDetail, error) {
	out, err := db.queryDetails(ctx, detailQuery+`
		WHERE a.status = 'scheduled' AND a.reminder_sent_at IS NULL
			AND a.start_at >= ? AND a.start_at < ?
		ORDER BY a.start_at, a.id`, utc(from), utc(to))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return out, nil
}

// MarkReminderSent stamps the reminder marker.
func (db *DB) MarkReminderSent(ctx context.Context, appointmentID int64) error {
	now := utc(db.now())
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`, now, now, appointmentID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %d: %w", appointmentID, model.ErrNotFound)
	}
	return nil
}
