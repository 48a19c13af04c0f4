// Package report writes appointment exports as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"time"

	"barberbot/internal/model"

	"github.com/rs/zerolog"
)

// Source lists appointments with display names in [from, to).
type Source interface {
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.AppointmentDetail, error)
}

var columns = []string{"ID", "Cliente", "Barbeiro", "Serviço", "Data", "Início", "Fim", "Status", "Lembrete enviado", "Criado em"}

// Exporter builds the appointments workbook.
type Exporter struct {
	source   Source
	location *time.Location
	logger   zerolog.Logger
}

func NewExporter(source Source, loc *time.Location, logger zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{
		source:   source,
		location: loc,
		logger:   logger.With().Str("component", "report").Logger(),
	}
}

// ExportFile writes every appointment starting in [from, to) to path and
// returns how many rows were exported.
func (e *Exporter) ExportFile(ctx context.Context, from, to time.Time, path string) (int, error) {
	wb, n, err := e.build(ctx, from, to)
	if err != nil {
		return 0, err
	}
	defer wb.Close()

	if err := wb.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	e.logger.Info().Str("path", path).Int("rows", n).Msg("Appointments exported")
	return n, nil
}

func (e *Exporter) build(ctx context.Context, from, to time.Time) (*Workbook, int, error) {
	if !to.After(from) {
		return nil, 0, fmt.Errorf("invalid export range %s..%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	details, err := e.source.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	wb := NewWorkbook()
	sheet := fmt.Sprintf("Agenda %s a %s", from.In(e.location).Format("02-01"), to.In(e.location).Format("02-01"))
	if err := wb.AddSheet(sheet); err != nil {
		wb.Close()
		return nil, 0, err
	}
	if err := wb.WriteHeader(columns); err != nil {
		wb.Close()
		return nil, 0, err
	}
	for i := range details {
		if err := wb.WriteRow(RowValues(&details[i], e.location)); err != nil {
			wb.Close()
			return nil, 0, err
		}
	}
	return wb, len(details), nil
}

// RowValues renders one appointment in column order.
func RowValues(d *model.AppointmentDetail, loc *time.Location) []any {
	reminder := ""
	if d.ReminderSentAt != nil {
		reminder = d.ReminderSentAt.In(loc).Format("2006-01-02 15:04")
	}
	start := d.StartAt.In(loc)
	return []any{
		d.ID,
		d.ClientKey,
		d.BarberName,
		d.ServiceName,
		start.Format("02/01/2006"),
		start.Format("15:04"),
		d.EndAt.In(loc).Format("15:04"),
		string(d.Status),
		reminder,
		d.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
}
