package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barberbot/internal/model"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListActiveBarbers(ctx context.Context) ([]model.Barber, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Barber), args.Error(1)
}

func (m *mockSource) FindBarberByName(ctx context.Context, name string) (model.Barber, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Barber), args.Error(1)
}

func (m *mockSource) FindBarberByID(ctx context.Context, id int64) (model.Barber, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Barber), args.Error(1)
}

func (m *mockSource) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Service), args.Error(1)
}

func (m *mockSource) FindServiceByName(ctx context.Context, name string) (model.Service, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Service), args.Error(1)
}

func (m *mockSource) FindServiceByID(ctx context.Context, id int64) (model.Service, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Service), args.Error(1)
}

func newCatalog(t *testing.T, source Source) (*Catalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := zerolog.Nop()
	return NewCatalog(source, client, time.Minute, &logger), mr
}

func TestCatalogReadThrough(t *testing.T) {
	source := new(mockSource)
	catalog, mr := newCatalog(t, source)
	ctx := context.Background()

	barbers := []model.Barber{{ID: 1, Name: "João", IsActive: true}}
	source.On("ListActiveBarbers", mock.Anything).Return(barbers, nil).Once()

	got, err := catalog.ListActiveBarbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, barbers, got)

	got, err = catalog.ListActiveBarbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, barbers, got)
	source.AssertNumberOfCalls(t, "ListActiveBarbers", 1)
	assert.True(t, mr.Exists(keyPrefix+"barbers"))

	service := model.Service{ID: 2, Name: "Barba", DurationMinutes: 30, IsActive: true}
	source.On("FindServiceByID", mock.Anything, int64(2)).Return(service, nil).Once()
	for i := 0; i < 3; i++ {
		s, err := catalog.FindServiceByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, service, s)
	}
	source.AssertExpectations(t)
}

func TestCatalogErrorsAreNotCached(t *testing.T) {
	source := new(mockSource)
	catalog, mr := newCatalog(t, source)
	ctx := context.Background()

	source.On("FindBarberByID", mock.Anything, int64(9)).Return(model.Barber{}, model.ErrNotFound).Twice()

	for i := 0; i < 2; i++ {
		_, err := catalog.FindBarberByID(ctx, 9)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}
	assert.False(t, mr.Exists(keyPrefix+"barber:9"))
	source.AssertExpectations(t)
}

func TestCatalogInvalidate(t *testing.T) {
	source := new(mockSource)
	catalog, mr := newCatalog(t, source)
	ctx := context.Background()
	require.NoError(t, mr.Set("unrelated", "x"))

	services := []model.Service{{ID: 1, Name: "Corte", DurationMinutes: 30, IsActive: true}}
	source.On("ListActiveServices", mock.Anything).Return(services, nil).Twice()

	_, err := catalog.ListActiveServices(ctx)
	require.NoError(t, err)
	require.NoError(t, catalog.Invalidate(ctx))
	assert.False(t, mr.Exists(keyPrefix+"services"))
	assert.True(t, mr.Exists("unrelated"))

	_, err = catalog.ListActiveServices(ctx)
	require.NoError(t, err)
	source.AssertExpectations(t)
}

func TestCatalogRedisDown(t *testing.T) {
	source := new(mockSource)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	logger := zerolog.Nop()
	catalog := NewCatalog(source, client, time.Minute, &logger)

	barbers := []model.Barber{{ID: 1, Name: "Pedro", IsActive: true}}
	source.On("ListActiveBarbers", mock.Anything).Return(barbers, nil)

	got, err := catalog.ListActiveBarbers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, barbers, got)
}

func TestCatalogNameLookupsBypassCache(t *testing.T) {
	source := new(mockSource)
	catalog, _ := newCatalog(t, source)

	source.On("FindBarberByName", mock.Anything, "João").Return(model.Barber{ID: 1, Name: "João"}, nil).Twice()
	for i := 0; i < 2; i++ {
		b, err := catalog.FindBarberByName(context.Background(), "João")
		require.NoError(t, err)
		assert.Equal(t, int64(1), b.ID)
	}
	source.AssertExpectations(t)
}
