package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BARBERBOT_WA_TOKEN", "secret-token")
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "db", "bot.db")+`
whatsapp:
  enabled: true
  access_token: ${BARBERBOT_WA_TOKEN}
  phone_number_id: "123"
schedule:
  lunch_start: "12:00"
  lunch_end: "13:00"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.WhatsApp.AccessToken)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "America/Sao_Paulo", cfg.Schedule.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.SlotStep())
	assert.Equal(t, 3, cfg.Schedule.MaxSuggestions)
	assert.Equal(t, 9, cfg.Reminders.DailyHour)
	assert.Equal(t, 10*time.Second, cfg.TurnTimeout())
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.GraphBaseURL)
	assert.DirExists(t, filepath.Join(dir, "db"))

	start, end, ls, le, err := cfg.Schedule.Clocks()
	require.NoError(t, err)
	assert.Equal(t, "09:00", start.String())
	assert.Equal(t, "19:00", end.String())
	assert.Equal(t, "12:00", ls.String())
	assert.Equal(t, "13:00", le.String())
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Schedule.BusinessEnd = "08:00"
	assert.Error(t, cfg.Validate())

	cfg.Schedule.BusinessEnd = "19:00"
	cfg.Schedule.LunchStart, cfg.Schedule.LunchEnd = "07:00", "08:00"
	assert.Error(t, cfg.Validate())

	cfg.Schedule.LunchStart, cfg.Schedule.LunchEnd = "meio-dia", "13:00"
	assert.Error(t, cfg.Validate())
}

func TestValidateChannels(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Telegram.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "telegram")

	cfg.Telegram.BotToken = "x"
	cfg.Google.SheetsEnabled = true
	assert.ErrorContains(t, cfg.Validate(), "google")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.yaml", `
barbers:
  - name: João
  - name: Pedro
    is_active: false
services:
  - name: Corte
    duration_minutes: 30
    price_cents: 4000
`)
	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Barbers, 2)
	assert.True(t, cat.Barbers[0].Active())
	assert.False(t, cat.Barbers[1].Active())
	assert.Equal(t, 30, cat.Services[0].DurationMinutes)
}

func TestCatalogValidate(t *testing.T) {
	cat := &CatalogConfig{
		Barbers:  []BarberConfig{{Name: "A"}, {Name: "A"}, {Name: " "}},
		Services: []ServiceConfig{{Name: "Corte"}},
	}
	err := cat.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "duration_minutes")
}

func TestWatchCatalogReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.yaml", "barbers:\n  - name: A\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *CatalogConfig, 4)
	err := WatchCatalog(ctx, path, 10*time.Millisecond, func(c *CatalogConfig) { updates <- c }, nil)
	require.NoError(t, err)

	first := <-updates
	require.Len(t, first.Barbers, 1)

	require.NoError(t, os.WriteFile(path, []byte("barbers:\n  - name: A\n  - name: B\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case next := <-updates:
		assert.Len(t, next.Barbers, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("catalog change was not picked up")
	}
}
