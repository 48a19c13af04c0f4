package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"barberbot/internal/calendar"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Google     GoogleConfig     `yaml:"google"`
	Catalog    CatalogFile      `yaml:"catalog"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

type ServerConfig struct {
	Address            string `yaml:"address"`
	TurnTimeoutSeconds int    `yaml:"turn_timeout_seconds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address                string `yaml:"address"`
	Password               string `yaml:"password"`
	DB                     int    `yaml:"db"`
	LockTTLSeconds         int    `yaml:"lock_ttl_seconds"`
	CatalogCacheTTLSeconds int    `yaml:"catalog_cache_ttl_seconds"`
}

type ScheduleConfig struct {
	Timezone        string `yaml:"timezone"`
	BusinessStart   string `yaml:"business_start"`
	BusinessEnd     string `yaml:"business_end"`
	LunchStart      string `yaml:"lunch_start"`
	LunchEnd        string `yaml:"lunch_end"`
	SlotStepMinutes int    `yaml:"slot_step_minutes"`
	MaxSuggestions  int    `yaml:"max_suggestions"`
}

type WhatsAppConfig struct {
	Enabled        bool   `yaml:"enabled"`
	VerifyToken    string `yaml:"verify_token"`
	AppSecret      string `yaml:"app_secret"`
	AccessToken    string `yaml:"access_token"`
	PhoneNumberID  string `yaml:"phone_number_id"`
	GraphBaseURL   string `yaml:"graph_base_url"`
	APIVersion     string `yaml:"api_version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	Enabled              bool   `yaml:"enabled"`
	BotToken             string `yaml:"bot_token"`
	Debug                bool   `yaml:"debug"`
	UpdateTimeoutSeconds int    `yaml:"update_timeout_seconds"`
}

type RemindersConfig struct {
	Enabled              bool    `yaml:"enabled"`
	DailyHour            int     `yaml:"daily_hour"`
	DailyMinute          int     `yaml:"daily_minute"`
	CheckIntervalSeconds int     `yaml:"check_interval_seconds"`
	RatePerSecond        float64 `yaml:"rate_per_second"`
	Burst                int     `yaml:"burst"`
	MaxRetries           int     `yaml:"max_retries"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	GRPCHealthPort    int  `yaml:"grpc_health_port"`
}

type GoogleConfig struct {
	SheetsEnabled   bool   `yaml:"sheets_enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type CatalogFile struct {
	Path                 string `yaml:"path"`
	WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "barberbot"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/barberbot.db"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	s := &c.Schedule
	if s.Timezone == "" {
		s.Timezone = calendar.DefaultTimezone
	}
	if s.BusinessStart == "" {
		s.BusinessStart = "09:00"
	}
	if s.BusinessEnd == "" {
		s.BusinessEnd = "19:00"
	}
	if s.SlotStepMinutes <= 0 {
		s.SlotStepMinutes = 30
	}
	if s.MaxSuggestions <= 0 {
		s.MaxSuggestions = 3
	}
	if c.WhatsApp.GraphBaseURL == "" {
		c.WhatsApp.GraphBaseURL = "https://graph.facebook.com"
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = "v20.0"
	}
	if c.Reminders.DailyHour == 0 && c.Reminders.DailyMinute == 0 {
		c.Reminders.DailyHour = 9
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/catalog.yaml"
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	start, end, lunchStart, lunchEnd, err := c.Schedule.Clocks()
	if err != nil {
		errs = append(errs, err)
	} else {
		if !start.Before(end) {
			errs = append(errs, fmt.Errorf("schedule: business_start %s must be before business_end %s", start, end))
		}
		if lunchStart.Before(lunchEnd) && (lunchStart.Before(start) || end.Before(lunchEnd)) {
			errs = append(errs, fmt.Errorf("schedule: lunch %s-%s outside business hours", lunchStart, lunchEnd))
		}
	}
	if _, err := calendar.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, err)
	}
	if c.Reminders.DailyHour < 0 || c.Reminders.DailyHour > 23 || c.Reminders.DailyMinute < 0 || c.Reminders.DailyMinute > 59 {
		errs = append(errs, fmt.Errorf("reminders: invalid daily time %02d:%02d", c.Reminders.DailyHour, c.Reminders.DailyMinute))
	}
	if c.WhatsApp.Enabled && (c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "") {
		errs = append(errs, errors.New("whatsapp: access_token and phone_number_id are required"))
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram: bot_token is required"))
	}
	if c.Google.SheetsEnabled && (c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "") {
		errs = append(errs, errors.New("google: credentials_file and spreadsheet_id are required"))
	}
	return errors.Join(errs...)
}

// Clocks parses the business and lunch window. Lunch is optional.
func (s ScheduleConfig) Clocks() (start, end, lunchStart, lunchEnd calendar.Clock, err error) {
	var ok bool
	if start, ok = calendar.ParseTime(s.BusinessStart); !ok {
		return start, end, lunchStart, lunchEnd, fmt.Errorf("schedule: bad business_start %q", s.BusinessStart)
	}
	if end, ok = calendar.ParseTime(s.BusinessEnd); !ok {
		return start, end, lunchStart, lunchEnd, fmt.Errorf("schedule: bad business_end %q", s.BusinessEnd)
	}
	if s.LunchStart == "" && s.LunchEnd == "" {
		return start, end, lunchStart, lunchEnd, nil
	}
	if lunchStart, ok = calendar.ParseTime(s.LunchStart); !ok {
		return start, end, lunchStart, lunchEnd, fmt.Errorf("schedule: bad lunch_start %q", s.LunchStart)
	}
	if lunchEnd, ok = calendar.ParseTime(s.LunchEnd); !ok {
		return start, end, lunchStart, lunchEnd, fmt.Errorf("schedule: bad lunch_end %q", s.LunchEnd)
	}
	return start, end, lunchStart, lunchEnd, nil
}

func (s ScheduleConfig) SlotStep() time.Duration {
	return time.Duration(s.SlotStepMinutes) * time.Minute
}

func (c *Config) TurnTimeout() time.Duration {
	if c.Server.TurnTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.TurnTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) CatalogCacheTTL() time.Duration {
	if c.Redis.CatalogCacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CatalogCacheTTLSeconds) * time.Second
}

func (c *Config) WhatsAppTimeout() time.Duration {
	if c.WhatsApp.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WhatsApp.TimeoutSeconds) * time.Second
}

func (c *Config) ReminderCheckInterval() time.Duration {
	if c.Reminders.CheckIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalSeconds) * time.Second
}

func (c *Config) CatalogWatchInterval() time.Duration {
	if c.Catalog.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.WatchIntervalSeconds) * time.Second
}
