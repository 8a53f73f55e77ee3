package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"glenda/config"
	"glenda/internal/adapters/claude"
	"glenda/internal/adapters/mailer"
	"glenda/internal/adapters/whatsapp"
	"glenda/internal/db"
	"glenda/internal/events"
	"glenda/internal/handlers"
	"glenda/internal/models"
	"glenda/internal/scheduler"
	"glenda/internal/services"
	"glenda/internal/settings"
	"glenda/internal/skills"
	"glenda/pkg/logger"
)

func main() {
	logger.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	if err := db.InitDB(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Could not connect to database")
	}
	err = db.MigrateDB(
		&models.Parameter{}, &models.Note{},
		&models.Skill{},
		&models.Contact{}, &models.BounceLog{}, &models.Invoice{},
		&models.Employee{}, &models.EmployeeAttachment{},
		&models.HRDataCollectionRequest{},
		&models.Conversation{}, &models.Message{}, &models.MessageAttachment{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}
	if err := db.SeedSkills(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Skill catalog seeding failed")
	}

	store := settings.NewStore(db.DB)

	gateway, err := whatsapp.NewClient(cfg.WhatsAppBaseURL, cfg.WhatsAppSecret, func() string {
		return store.Get(settings.KeyWhatsAppAccountID, "")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not configure WhatsApp gateway client")
	}

	claudeKey := cfg.ClaudeAPIKey
	if claudeKey == "" {
		log.Warn().Msg("CLAUDE_API_KEY not set, model calls will fail unless dry_run is on")
		claudeKey = "unset"
	}
	llm, err := claude.NewClient(cfg.ClaudeBaseURL, claudeKey, cfg.ClaudeVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not configure Claude client")
	}

	var mail services.Mailer
	if cfg.SMTPHost != "" {
		m, err := mailer.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not configure mailer")
		}
		mail = m
	} else {
		log.Warn().Msg("SMTP_HOST not set, email notifications disabled")
	}

	publisher := events.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	defer publisher.Close()

	clock := services.SystemClock{}
	history := services.NewHistoryBuilder(db.DB, services.NewPDFRenderer())
	archiver := services.NewArchiver(db.DB, clock, services.S3MirrorConfig{
		Enabled:   cfg.S3Enabled,
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})

	registry := skills.NewRegistry(
		skills.NewBounceResolution(db.DB, store),
		skills.NewBillReminder(db.DB, store),
		skills.NewBillingSupport(db.DB, store),
		skills.NewHRDataCollection(db.DB, store),
	)

	conversations, err := services.NewConversationService(
		db.DB, store, registry, gateway, llm, mail, publisher, history, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not build conversation service")
	}
	poller := services.NewPoller(db.DB, gateway, conversations)
	guard := services.NewCreditGuard(db.DB, store, gateway, mail, publisher)
	hr := services.NewHRCollectionService(db.DB, conversations, gateway)
	dashboard := services.NewDashboardService(db.DB, store, guard)

	sched, err := scheduler.New(store, cfg.DatabaseID, poller, conversations, archiver, guard)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not build scheduler")
	}
	dashboard.SetCron(sched)
	sched.Start()
	defer sched.Stop()

	server := handlers.NewServer(cfg.APIToken, dashboard, conversations, hr, gateway)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
