package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"barberbot/internal/cache"
	"barberbot/internal/calendar"
	"barberbot/internal/channels"
	"barberbot/internal/channels/telegram"
	"barberbot/internal/channels/web"
	"barberbot/internal/channels/whatsapp"
	"barberbot/internal/config"
	"barberbot/internal/conversation"
	"barberbot/internal/db"
	"barberbot/internal/dialog"
	"barberbot/internal/events"
	"barberbot/internal/lock"
	"barberbot/internal/metrics"
	"barberbot/internal/report"
	"barberbot/internal/server"
	"barberbot/internal/sheets"
	"barberbot/internal/slots"
	"barberbot/shared/reminders"
)

func main() {
	exportFrom := flag.String("export-from", "", "export appointments starting on this date (YYYY-MM-DD) and exit")
	exportTo := flag.String("export-to", "", "last exported date, inclusive (YYYY-MM-DD)")
	exportOut := flag.String("export-out", "appointments.xlsx", "export file path")
	flag.Parse()

	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil && cfg.App.LogLevel != "" {
		logger = logger.Level(level)
	}

	loc, err := calendar.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}

	database, err := db.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportFrom != "" {
		if err := runExport(ctx, database, loc, *exportFrom, *exportTo, *exportOut, logger); err != nil {
			logger.Fatal().Err(err).Msg("export failed")
		}
		return
	}

	var (
		rdb         *redis.Client
		cacheClient redis.UniversalClient
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		cacheClient = rdb
	}

	catalog := cache.NewCatalog(database, cacheClient, cfg.CatalogCacheTTL(), &logger)
	err = config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogWatchInterval(),
		func(c *config.CatalogConfig) {
			if err := database.SyncCatalog(ctx, c); err != nil {
				logger.Error().Err(err).Msg("catalog sync failed")
				return
			}
			if err := catalog.Invalidate(ctx); err != nil {
				logger.Warn().Err(err).Msg("catalog cache invalidation failed")
			}
		},
		func(err error) { logger.Error().Err(err).Msg("catalog reload failed") },
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}

	start, end, lunchStart, lunchEnd, err := cfg.Schedule.Clocks()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad schedule")
	}
	engine := slots.NewEngine(database, slots.Schedule{
		BusinessStart: start,
		BusinessEnd:   end,
		LunchStart:    lunchStart,
		LunchEnd:      lunchEnd,
		Step:          cfg.Schedule.SlotStep(),
	}, loc, time.Now)

	bus := events.NewEventBus(&logger)
	appointments := conversation.NewPublishingAppointments(database, bus)
	machine := dialog.NewMachine(catalog, appointments, database, conversation.MeasureSuggester(engine), dialog.Config{
		Location:       loc,
		MaxSuggestions: cfg.Schedule.MaxSuggestions,
	}, logger)

	var locker lock.Locker
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL(), &logger)
	}
	turns := conversation.NewService(database, machine, locker, conversation.Options{
		Location:    loc,
		TurnTimeout: cfg.TurnTimeout(),
	}, logger)

	router := channels.NewRouter(logger)
	var waRoutes server.WhatsAppRoutes
	if cfg.WhatsApp.Enabled {
		client := whatsapp.NewClient(cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.APIVersion, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken, cfg.WhatsAppTimeout())
		router.Register("wa", client)
		waRoutes = whatsapp.NewWebhookHandler(cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, turns, client, logger)
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, cfg.Telegram.UpdateTimeoutSeconds, turns, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		router.Register("tg", tg)
		go tg.Start(ctx)
	}

	if cfg.Google.SheetsEnabled {
		out, err := sheets.NewAPIAppender(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName)
		if err != nil {
			logger.Fatal().Err(err).Msg("google sheets setup failed")
		}
		journal := sheets.NewJournal(database, out, loc, logger)
		journal.Subscribe(bus)
		journal.Start(ctx)
		defer journal.Wait()
	}

	if cfg.Reminders.Enabled {
		job := newReminderJob(cfg, database, router, loc, logger)
		job.Start(ctx)
		defer job.Stop()
	}

	backup := db.NewBackupService(database, cfg.Backup, cfg.BackupInterval(), &logger)
	go backup.Start(ctx)

	ready := map[string]server.Pinger{"sqlite": database}
	if rdb != nil {
		ready["redis"] = server.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	var metricsHandler http.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metricsHandler = promhttp.Handler()
		if cfg.Monitoring.PrometheusPort != 0 {
			go serve(ctx, fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), server.New(server.Config{Logger: logger, Metrics: metricsHandler}), "metrics", logger)
			metricsHandler = nil
		}
	}
	if cfg.Monitoring.HealthCheckPort != 0 {
		go serve(ctx, fmt.Sprintf(":%d", cfg.Monitoring.HealthCheckPort), server.New(server.Config{Logger: logger, Ready: ready}), "health", logger)
	}
	if cfg.Monitoring.GRPCHealthPort != 0 {
		go startGRPCHealth(ctx, cfg.Monitoring.GRPCHealthPort, ready, logger)
	}

	handler := server.New(server.Config{
		Logger:   logger,
		WebChat:  web.NewHandler(turns, logger),
		WhatsApp: waRoutes,
		Metrics:  metricsHandler,
		Ready:    ready,
	})

	logger.Info().Str("timezone", loc.String()).Msg("Barber bot started")
	if err := server.Run(ctx, cfg.Server.Address, handler, logger); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
}

func newReminderJob(cfg *config.Config, database *db.DB, router *channels.Router, loc *time.Location, logger zerolog.Logger) *reminders.Job {
	m := reminders.NewMetrics("barberbot", prometheus.DefaultRegisterer)
	limiter := reminders.NewRateLimiter(reminders.RateLimiterConfig{
		Rate:      cfg.Reminders.RatePerSecond,
		Burst:     cfg.Reminders.Burst,
		JitterMin: 50,
		JitterMax: 150,
	})
	retry := reminders.DefaultRetryConfig()
	if cfg.Reminders.MaxRetries > 0 {
		retry.MaxRetries = cfg.Reminders.MaxRetries
	}
	sender := reminders.NewReminderSender(router, database, limiter, retry, loc, m, logger.With().Str("component", "reminders").Logger())
	return reminders.NewJob(reminders.SchedulerConfig{
		DailyHour:     cfg.Reminders.DailyHour,
		DailyMinute:   cfg.Reminders.DailyMinute,
		CheckInterval: cfg.ReminderCheckInterval(),
	}, database, sender, loc, m, logger)
}

func runExport(ctx context.Context, database *db.DB, loc *time.Location, from, to, out string, logger zerolog.Logger) error {
	fromDay, err := calendar.ParseISODate(from, loc)
	if err != nil {
		return fmt.Errorf("bad -export-from: %w", err)
	}
	toDay := fromDay
	if to != "" {
		if toDay, err = calendar.ParseISODate(to, loc); err != nil {
			return fmt.Errorf("bad -export-to: %w", err)
		}
	}
	if toDay.Before(fromDay) {
		return errors.New("-export-to is before -export-from")
	}
	_, err = report.NewExporter(database, loc, logger).ExportFile(ctx, fromDay, toDay.AddDate(0, 0, 1), out)
	return err
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger zerolog.Logger) {
	if err := server.Run(ctx, addr, handler, logger); err != nil {
		logger.Error().Err(err).Msgf("%s server error", name)
	}
}

func startGRPCHealth(ctx context.Context, port int, checks map[string]server.Pinger, logger zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Msg("grpc health listen error")
		return
	}
	if err := server.NewHealthServer(checks, 10*time.Second, logger).Serve(ctx, lis); err != nil {
		logger.Error().Err(err).Msg("grpc health server error")
	}
}
