// Package sheets mirrors appointment events into a Google Sheets journal.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"barberbot/internal/events"
	"barberbot/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	queueSize  = 256
	maxRetries = 3
)

// ErrQueueFull is returned when events arrive faster than the journal drains them.
var ErrQueueFull = errors.New("sheets journal queue is full")

// Details resolves the display fields of an appointment.
type Details interface {
	GetDetail(ctx context.Context, id int64) (model.AppointmentDetail, error)
}

// Appender writes one row to the journal sheet.
type Appender interface {
	Append(ctx context.Context, row []any) error
}

type valuesAppender struct {
	values        *sheetsapi.SpreadsheetsValuesService
	spreadsheetID string
	sheetRange    string
}

func (a *valuesAppender) Append(ctx context.Context, row []any) error {
	_, err := a.values.Append(a.spreadsheetID, a.sheetRange, &sheetsapi.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

// NewAPIAppender authenticates with a service account file.
func NewAPIAppender(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, opts ...option.ClientOption) (Appender, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return newAppender(ctx, spreadsheetID, sheetName, append([]option.ClientOption{option.WithCredentials(creds)}, opts...)...)
}

func newAppender(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (Appender, error) {
	srv, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	if sheetName == "" {
		sheetName = "Agendamentos"
	}
	return &valuesAppender{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetName + "!A:I",
	}, nil
}

// Journal appends one row per appointment event. Rows are written by a
// background worker so the conversation turn never waits on Google.
type Journal struct {
	details  Details
	out      Appender
	location *time.Location
	logger   zerolog.Logger
	queue    chan events.Event
	backoff  time.Duration

	wg sync.WaitGroup
}

func NewJournal(details Details, out Appender, loc *time.Location, logger zerolog.Logger) *Journal {
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{
		details:  details,
		out:      out,
		location: loc,
		logger:   logger.With().Str("component", "sheets").Logger(),
		queue:    make(chan events.Event, queueSize),
		backoff:  time.Second,
	}
}

// Subscribe registers the journal for every appointment event.
func (j *Journal) Subscribe(bus *events.EventBus) {
	for _, t := range []string{events.AppointmentCreated, events.AppointmentCancelled, events.AppointmentRescheduled} {
		bus.Subscribe(t, j.Enqueue)
	}
}

// Enqueue hands an event to the worker without blocking.
func (j *Journal) Enqueue(event events.Event) error {
	select {
	case j.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the worker until ctx is done; queued events are flushed first.
func (j *Journal) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for {
			select {
			case <-ctx.Done():
				j.drain()
				return
			case ev := <-j.queue:
				j.process(ctx, ev)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (j *Journal) Wait() {
	j.wg.Wait()
}

func (j *Journal) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-j.queue:
			j.process(ctx, ev)
		default:
			return
		}
	}
}

func (j *Journal) process(ctx context.Context, ev events.Event) {
	detail, err := j.details.GetDetail(ctx, ev.AppointmentID)
	if err != nil {
		j.logger.Error().Err(err).Int64("appointment_id", ev.AppointmentID).Msg("Journal lookup failed")
		return
	}
	row := appointmentRowValues(ev, &detail, j.location)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(j.backoff * time.Duration(attempt)):
			}
		}
		if err = j.out.Append(ctx, row); err == nil {
			j.logger.Debug().Str("type", ev.Type).Int64("appointment_id", ev.AppointmentID).Msg("Journal row appended")
			return
		}
		if ctx.Err() != nil {
			break
		}
	}
	j.logger.Error().Err(err).Str("type", ev.Type).Int64("appointment_id", ev.AppointmentID).Msg("Journal append failed")
}

// appointmentRowValues renders the journal row for an event.
func appointmentRowValues(ev events.Event, d *model.AppointmentDetail, loc *time.Location) []any {
	var previous any = ""
	if ev.PreviousID != 0 {
		previous = ev.PreviousID
	}
	start := d.StartAt.In(loc)
	return []any{
		ev.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
		ev.Type,
		d.ID,
		previous,
		d.ClientKey,
		d.BarberName,
		d.ServiceName,
		start.Format("2006-01-02"),
		start.Format("15:04") + "-" + d.EndAt.In(loc).Format("15:04"),
	}
}
