package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymslot/internal/api"
	"gymslot/internal/config"
	"gymslot/internal/database"
	"gymslot/internal/domain"
	"gymslot/internal/events"
	"gymslot/internal/export"
	"gymslot/internal/google"
	"gymslot/internal/logging"
	"gymslot/internal/metrics"
	"gymslot/internal/models"
	"gymslot/internal/notify"
	"gymslot/internal/repository"
	"gymslot/internal/schedule"
	"gymslot/internal/service"
	"gymslot/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadTrainerRoster(ctx, db, &logger); err != nil {
		return err
	}

	normalizer, err := initNormalizer(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("init schedule normalizer")
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	cache := initCache(cfg, redisClient, &logger)

	eventBus := events.NewEventBus()

	sheetsService := initGoogleSheets(cfg, &logger)
	var syncWorker domain.SyncWorker
	if sheetsService != nil {
		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	maxAdvanceDays := cfg.Schedule.MaxAdvanceDays
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}

	bookingSvc := service.NewBookingService(db, cache, normalizer, eventBus, syncWorker, maxAdvanceDays, &logger)
	scheduleSvc := service.NewScheduleService(db, cache, normalizer, eventBus, maxAdvanceDays, &logger)
	exporter := export.NewExporter(db, normalizer, cfg.Exports.Path, &logger)

	initNotifier(ctx, cfg, db, eventBus, normalizer, &logger)

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingSvc, scheduleSvc, exporter, cache, &logger)
	return serve(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadTrainerRoster seeds the trainers table from the roster file. The
// roster is authoritative for who exists and who is active.
func loadTrainerRoster(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	rosterPath := os.Getenv("TRAINERS_PATH")
	if rosterPath == "" {
		rosterPath = "configs/trainers.yaml"
	}

	data, err := os.ReadFile(rosterPath)
	if err != nil {
		logger.Error().Err(err).Str("roster_path", rosterPath).Msg("read trainer roster")
		return err
	}

	var roster struct {
		Trainers []models.Trainer `yaml:"trainers"`
	}
	if err := yaml.Unmarshal(data, &roster); err != nil {
		logger.Error().Err(err).Str("roster_path", rosterPath).Msg("parse trainer roster")
		return err
	}

	for i := range roster.Trainers {
		if err := db.UpsertTrainer(ctx, &roster.Trainers[i]); err != nil {
			return fmt.Errorf("upsert trainer %d: %w", roster.Trainers[i].ID, err)
		}
	}

	logger.Info().Int("count", len(roster.Trainers)).Msg("trainer roster loaded")
	return nil
}

func initNormalizer(cfg *config.Config) (*schedule.Normalizer, error) {
	timezone := cfg.Schedule.Timezone
	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	return schedule.NewNormalizer(timezone)
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ScheduleCache {
	ttlSeconds := cfg.Schedule.CacheTTLSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = models.DefaultScheduleCacheTTL
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	memory := repository.NewMemoryScheduleCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverScheduleCache(repository.NewRedisScheduleCache(redisClient, ttl), memory, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initNotifier(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	eventBus *events.EventBus,
	normalizer *schedule.Normalizer,
	logger *zerolog.Logger,
) {
	if cfg.Telegram.BotToken == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	notifier := notify.NewStaffNotifier(bot, db, cfg.Telegram.StaffChatID, models.ReminderHour, normalizer.Location(), logger)
	notifier.Subscribe(eventBus)
	notifier.StartReminders(ctx)

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier started")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			logger.Warn().Msg("HTTP API is disabled in config")
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
