package dialog

import (
	"context"
	"sort"
	"sync"
	"time"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
	"barberbot/internal/slots"

	"github.com/rs/zerolog"
)

// memStore is an in-memory catalog, client directory and appointment store.
type memStore struct {
	mu       sync.Mutex
	barbers  []model.Barber
	services []model.Service
	clients  map[string]model.Client
	appts    map[int64]*model.Appointment
	nextID   int64

	listErr   error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		barbers: []model.Barber{
			{ID: 1, Name: "João", IsActive: true},
			{ID: 2, Name: "Pedro", IsActive: true},
			{ID: 3, Name: "Antigo", IsActive: false},
		},
		services: []model.Service{
			{ID: 1, Name: "Corte", DurationMinutes: 30, PriceCents: 4000, IsActive: true},
			{ID: 2, Name: "Corte + Barba", DurationMinutes: 60, PriceCents: 7000, IsActive: true},
		},
		clients: map[string]model.Client{
			"web:alice": {ID: 10, Key: "web:alice"},
		},
		appts:  make(map[int64]*model.Appointment),
		nextID: 100,
	}
}

func (s *memStore) ListActiveBarbers(context.Context) ([]model.Barber, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Barber
	for _, b := range s.barbers {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) FindBarberByName(_ context.Context, name string) (model.Barber, error) {
	for _, b := range s.barbers {
		if b.Name == name && b.IsActive {
			return b, nil
		}
	}
	return model.Barber{}, model.ErrNotFound
}

func (s *memStore) FindBarberByID(_ context.Context, id int64) (model.Barber, error) {
	for _, b := range s.barbers {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Barber{}, model.ErrNotFound
}

func (s *memStore) ListActiveServices(context.Context) ([]model.Service, error) {
	var out []model.Service
	for _, sv := range s.services {
		if sv.IsActive {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (s *memStore) FindServiceByName(_ context.Context, name string) (model.Service, error) {
	for _, sv := range s.services {
		if sv.Name == name && sv.IsActive {
			return sv, nil
		}
	}
	return model.Service{}, model.ErrNotFound
}

func (s *memStore) FindServiceByID(_ context.Context, id int64) (model.Service, error) {
	for _, sv := range s.services {
		if sv.ID == id {
			return sv, nil
		}
	}
	return model.Service{}, model.ErrNotFound
}

func (s *memStore) FindClientByKey(_ context.Context, key string) (model.Client, error) {
	c, ok := s.clients[key]
	if !ok {
		return model.Client{}, model.ErrNotFound
	}
	return c, nil
}

func (s *memStore) ListForBarberOnDate(_ context.Context, barberID int64, date time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.BarberID == barberID && a.Status == model.StatusScheduled && calendar.DateOf(a.StartAt).Equal(calendar.DateOf(date)) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) insertLocked(a model.NewAppointment) (int64, error) {
	for _, existing := range s.appts {
		if existing.BarberID == a.BarberID && existing.Status == model.StatusScheduled &&
			slots.Overlaps(a.StartAt, a.EndAt, existing.StartAt, existing.EndAt) {
			return 0, model.ErrSlotTaken
		}
	}
	s.nextID++
	s.appts[s.nextID] = &model.Appointment{
		ID:        s.nextID,
		ClientID:  a.ClientID,
		BarberID:  a.BarberID,
		ServiceID: a.ServiceID,
		StartAt:   a.StartAt,
		EndAt:     a.EndAt,
		Status:    model.StatusScheduled,
	}
	return s.nextID, nil
}

func (s *memStore) Create(_ context.Context, a model.NewAppointment) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(a)
}

func (s *memStore) Get(_ context.Context, id int64) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return *a, nil
}

func (s *memStore) Cancel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.ErrNotFound
	}
	a.Status = model.StatusCancelled
	return nil
}

func (s *memStore) Reschedule(_ context.Context, oldID int64, a model.NewAppointment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.appts[oldID]
	if !ok || old.Status != model.StatusScheduled {
		return 0, model.ErrNotFound
	}
	old.Status = model.StatusCancelled
	id, err := s.insertLocked(a)
	if err != nil {
		old.Status = model.StatusScheduled
		return 0, err
	}
	return id, nil
}

func (s *memStore) ListForClient(_ context.Context, clientID int64, status model.Status) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ClientID == clientID && (status == "" || a.Status == status) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, nil
}

// seed adds a scheduled appointment directly.
func (s *memStore) seed(clientID, barberID, serviceID int64, start time.Time, dur time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.insertLocked(model.NewAppointment{
		ClientID: clientID, BarberID: barberID, ServiceID: serviceID,
		StartAt: start, EndAt: start.Add(dur),
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (s *memStore) markReminded(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := testNow
	s.appts[id].ReminderSentAt = &at
}

func (s *memStore) scheduled() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.Status == model.StatusScheduled {
			out = append(out, *a)
		}
	}
	return out
}

// testNow is a Friday morning; "14/05" resolves to the following Tuesday.
var testNow = time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2030, 5, d, 0, 0, 0, 0, time.UTC)
}

func atDay(d int, clock string) time.Time {
	return calendar.MustParseClock(clock).On(day(d), time.UTC)
}

func newTestMachine(store *memStore) *Machine {
	now := func() time.Time { return testNow }
	engine := slots.NewEngine(store, slots.Schedule{
		BusinessStart: calendar.MustParseClock("09:00"),
		BusinessEnd:   calendar.MustParseClock("19:00"),
		LunchStart:    calendar.MustParseClock("12:00"),
		LunchEnd:      calendar.MustParseClock("13:00"),
		Step:          30 * time.Minute,
	}, time.UTC, now)
	return NewMachine(store, store, store, engine, Config{Location: time.UTC, Now: now}, zerolog.Nop())
}
