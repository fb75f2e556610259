package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snarg/mockprep"
	"github.com/snarg/mockprep/internal/api"
	"github.com/snarg/mockprep/internal/config"
	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
	"github.com/snarg/mockprep/internal/live"
	"github.com/snarg/mockprep/internal/llm"
	"github.com/snarg/mockprep/internal/metrics"
	"github.com/snarg/mockprep/internal/mqttclient"
	"github.com/snarg/mockprep/internal/prompts"
	"github.com/snarg/mockprep/internal/storage"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var (
		listen        string
		recordingsDir string
		promptsFile   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ov := gf.overrides()
			ov.HTTPAddr = listen
			ov.RecordingsDir = recordingsDir
			ov.PromptsFile = promptsFile

			cfg, err := config.Load(ov)
			if err != nil {
				early := zerolog.New(os.Stderr).With().Timestamp().Logger()
				early.Error().Err(err).Msg("failed to load config")
				return err
			}
			return serve(cfg, newLogger(cfg.LogLevel))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default :8080)")
	cmd.Flags().StringVar(&recordingsDir, "recordings-dir", "", "directory for answer recordings")
	cmd.Flags().StringVar(&promptsFile, "prompts-file", "", "YAML prompts file, reloaded on change")

	return cmd
}

func serve(cfg *config.Config, log zerolog.Logger) error {
	startTime := time.Now()
	log.Info().Str("version", version).Msg("mockprep starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Embedded Postgres for local development
	if cfg.EmbeddedPostgres {
		pg, err := database.StartEmbedded(database.EmbeddedOptions{
			Port: cfg.EmbeddedPostgresPort,
			Dir:  cfg.EmbeddedPostgresDir,
			Log:  log.With().Str("component", "postgres").Logger(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Stop(); err != nil {
				log.Warn().Err(err).Msg("embedded postgres stop failed")
			}
		}()
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = pg.URL()
		}
	}

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx, mockprep.SchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Prompts
	promptLog := log.With().Str("component", "prompts").Logger()
	tmpl, err := prompts.New(cfg.PromptsFile, promptLog)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	if cfg.PromptsFile != "" {
		go func() {
			if err := tmpl.Watch(ctx); err != nil {
				promptLog.Warn().Err(err).Msg("prompts watcher stopped")
			}
		}()
	}

	// Language model
	provider, err := llm.New(llm.Options{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
		Generation: llm.GenerationConfig{
			Temperature:     cfg.LLMTemperature,
			TopP:            cfg.LLMTopP,
			TopK:            cfg.LLMTopK,
			MaxOutputTokens: cfg.LLMMaxTokens,
		},
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	provider = llm.Instrument(provider)
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Msg("language model configured")

	// Recordings
	recordings, err := storage.New(cfg.S3, cfg.RecordingsDir, log)
	if err != nil {
		log.Warn().Err(err).Str("component", "storage").Msg("recording storage unavailable, uploads disabled")
	}

	// MQTT
	mqttLog := log.With().Str("component", "mqtt").Logger()
	if cfg.MQTTEmbeddedAddr != "" {
		broker, err := mqttclient.StartBroker(cfg.MQTTEmbeddedAddr, mqttLog)
		if err != nil {
			return fmt.Errorf("start mqtt broker: %w", err)
		}
		defer broker.Close()
		if cfg.MQTTBrokerURL == "" {
			cfg.MQTTBrokerURL = "tcp://" + broker.Addr()
		}
	}
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Log:         mqttLog,
		})
		if err != nil {
			return fmt.Errorf("connect mqtt broker: %w", err)
		}
		defer mqtt.Close()
	}

	// Domain service
	svcOpts := interview.Options{
		Store:           db,
		Generator:       provider,
		Prompts:         tmpl,
		QuestionCount:   cfg.QuestionCount,
		MinAnswerLength: cfg.MinAnswerLength,
		Log:             log,
	}
	if recordings != nil {
		svcOpts.Recordings = recordings
	}
	if mqtt != nil {
		svcOpts.Events = mqtt
	}
	svc := interview.NewService(svcOpts)

	// Live change feed
	bus := live.NewEventBus(cfg.EventRingSize)
	feed := live.NewChangeFeed(db, bus, log)
	feed.Start(ctx)
	defer feed.Stop()

	prometheus.MustRegister(metrics.NewCollector(db.Pool, feed))

	// HTTP Server
	health := api.HealthOptions{
		DB:        db,
		Live:      feed,
		LLM:       provider,
		Version:   version,
		StartTime: startTime,
	}
	if recordings != nil {
		health.Recordings = recordings.Type()
	}
	if mqtt != nil {
		health.MQTT = mqtt
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		Service:   svc,
		Health:    health,
		Live:      feed,
		OpenAPI:   mockprep.OpenAPISpec,
		Log:       httpLog,
		StartTime: startTime,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("mockprep stopped")
	return runErr
}
