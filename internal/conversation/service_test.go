package conversation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barberbot/internal/calendar"
	"barberbot/internal/config"
	"barberbot/internal/db"
	"barberbot/internal/dialog"
	"barberbot/internal/events"
	"barberbot/internal/lock"
	"barberbot/internal/model"
	"barberbot/internal/slots"
)

var testLoc = time.FixedZone("BRT", -3*60*60)

func testNow() time.Time {
	return time.Date(2030, 5, 10, 8, 0, 0, 0, testLoc)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db      *db.DB
	service *Service
	events  *recorder
	locker  *lock.KeyedMutex
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "bot.db"), testLoc, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SyncCatalog(context.Background(), &config.CatalogConfig{
		Barbers:  []config.BarberConfig{{Name: "João"}, {Name: "Pedro"}},
		Services: []config.ServiceConfig{{Name: "Corte", DurationMinutes: 30}, {Name: "Corte + Barba", DurationMinutes: 60}},
	}))

	schedule := slots.Schedule{
		BusinessStart: calendar.MustParseClock("09:00"),
		BusinessEnd:   calendar.MustParseClock("18:00"),
		LunchStart:    calendar.MustParseClock("12:00"),
		LunchEnd:      calendar.MustParseClock("13:00"),
		Step:          30 * time.Minute,
	}
	engine := slots.NewEngine(store, schedule, testLoc, testNow)

	rec := &recorder{}
	machine := dialog.NewMachine(
		store,
		NewPublishingAppointments(store, rec),
		store,
		MeasureSuggester(engine),
		dialog.Config{Location: testLoc, Now: testNow},
		logger,
	)
	locker := lock.NewKeyedMutex()
	svc := NewService(store, machine, locker, Options{Location: testLoc, TurnTimeout: timeout}, logger)
	return &fixture{db: store, service: svc, events: rec, locker: locker}
}

func (f *fixture) say(t *testing.T, key, message string) Turn {
	t.Helper()
	turn, err := f.service.HandleTurn(context.Background(), key, message)
	require.NoError(t, err)
	return turn
}

func buttonIDs(buttons []model.Button) []string {
	out := make([]string, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.ID)
	}
	return out
}

func TestBookingConversation(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	ctx := context.Background()
	const key = "web:alice"

	turn := f.say(t, key, "oi")
	assert.Equal(t, "START", turn.State)
	assert.Contains(t, turn.Reply, "barbearia")

	turn = f.say(t, key, "quero agendar um corte")
	assert.Equal(t, "WAIT_BARBER", turn.State)
	assert.Equal(t, []string{"BARBER_1", "BARBER_2"}, buttonIDs(turn.Buttons))

	turn = f.say(t, key, "BARBER_1")
	assert.Equal(t, "WAIT_SERVICE", turn.State)

	turn = f.say(t, key, "Corte")
	assert.Equal(t, "WAIT_DATE", turn.State)

	turn = f.say(t, key, "20/05")
	assert.Equal(t, "WAIT_TIME_PREF", turn.State)

	turn = f.say(t, key, "10h")
	assert.Equal(t, "WAIT_CONFIRMATION", turn.State)

	state, raw, err := f.db.GetStateAndContext(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "WAIT_CONFIRMATION", state)
	stored, err := dialog.DecodeContext(raw, testLoc)
	require.NoError(t, err)
	assert.Equal(t, key, stored.ClientKey)
	assert.True(t, stored.BookingComplete())

	turn = f.say(t, key, "sim")
	assert.Equal(t, "CONFIRMED", turn.State)
	assert.Contains(t, turn.Reply, "confirmado")

	client, err := f.db.FindClientByKey(ctx, key)
	require.NoError(t, err)
	appts, err := f.db.ListForClient(ctx, client.ID, model.StatusScheduled)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.True(t, appts[0].StartAt.Equal(time.Date(2030, 5, 20, 10, 0, 0, 0, testLoc)))
	assert.Equal(t, []string{events.AppointmentCreated}, f.events.types())

	// Another client asking for the same slot is offered the nearest free times.
	f.say(t, "web:bob", "agendar")
	f.say(t, "web:bob", "João")
	f.say(t, "web:bob", "Corte")
	f.say(t, "web:bob", "20/05")
	turn = f.say(t, "web:bob", "10:00")
	assert.Equal(t, "WAIT_SLOT_PICK", turn.State)
	assert.Equal(t, []string{"SLOT_09:30", "SLOT_10:30", "SLOT_09:00"}, buttonIDs(turn.Buttons))
}

func TestCancelConversation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	const key = "tg:42"

	clientID, err := f.db.EnsureClient(ctx, key)
	require.NoError(t, err)
	id, err := f.db.Create(ctx, model.NewAppointment{
		ClientID: clientID, BarberID: 2, ServiceID: 1,
		StartAt: time.Date(2030, 5, 21, 15, 0, 0, 0, testLoc),
		EndAt:   time.Date(2030, 5, 21, 15, 30, 0, 0, testLoc),
	})
	require.NoError(t, err)

	turn := f.say(t, key, "Cancelar")
	assert.Equal(t, "WAIT_CANCEL_CONFIRMATION", turn.State)

	turn = f.say(t, key, "sim")
	assert.Equal(t, "START", turn.State)
	assert.Contains(t, turn.Reply, "cancelado")

	got, err := f.db.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, []string{events.AppointmentCancelled}, f.events.types())
}

func TestCorruptRecordResets(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		state string
		ctx   string
	}{
		{name: "UnknownState", state: "WAIT_FOREVER", ctx: "{}"},
		{name: "BrokenJSON", state: "WAIT_DATE", ctx: "{not json"},
		{name: "BadOperation", state: "WAIT_APPOINTMENT_PICK", ctx: `{"operation":"teleport"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "web:" + tt.name
			_, err := f.db.EnsureClient(ctx, key)
			require.NoError(t, err)
			require.NoError(t, f.db.SetStateAndContext(ctx, key, tt.state, []byte(tt.ctx)))

			turn := f.say(t, key, "20/05")
			assert.Equal(t, "START", turn.State)
			assert.Contains(t, turn.Reply, "me perdi")

			state, raw, err := f.db.GetStateAndContext(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "START", state)
			assert.JSONEq(t, "{}", string(raw))
		})
	}
}

func TestTurnTimeout(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	const key = "wa:5511999990000"

	unlock, err := f.locker.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	_, err = f.service.HandleTurn(context.Background(), key, "oi")
	assert.ErrorIs(t, err, ErrTurnTimeout)

	_, err = f.db.FindClientByKey(context.Background(), key)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEmptyKeyIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.service.HandleTurn(context.Background(), "", "oi")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestConcurrentTurnsForOneClient(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	const key = "web:carol"

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.HandleTurn(context.Background(), key, "oi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, _, err := f.db.GetStateAndContext(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "START", state)
	assert.Equal(t, 0, f.locker.Len())
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "wa", Channel("wa:5511"))
	assert.Equal(t, "tg", Channel("tg:1"))
	assert.Equal(t, "web", Channel("web:x"))
	assert.Equal(t, "unknown", Channel("nokey"))
}
