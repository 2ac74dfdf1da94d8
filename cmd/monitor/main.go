package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"garden-monitor/internal/database"
	"garden-monitor/internal/gateway"
	"garden-monitor/internal/mqtt"
	"garden-monitor/internal/observability"
	"garden-monitor/internal/services"
	"garden-monitor/internal/staleness"
	"garden-monitor/internal/view"
	"garden-monitor/pkg/config"
)

// defaultTUILogFile receives logs while the terminal view owns the screen.
const defaultTUILogFile = "garden-monitor.log"

type flags struct {
	broker   string
	topic    string
	httpAddr string
	logLevel string
	logFile  string
	tui      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "garden-monitor",
		Short: "Live dashboard for a garden sensor telemetry feed",
		Long: `garden-monitor subscribes to a garden controller's MQTT telemetry topic and
presents the latest readings, short-term trends and connection status over
HTTP/WebSocket and, optionally, an interactive terminal view.

Configuration is read from the environment (and a .env file); flags override it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			applyFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.broker, "broker", "", "broker URL (overrides MQTT_BROKER)")
	cmd.Flags().StringVar(&f.topic, "topic", "", "telemetry topic (overrides MQTT_TOPIC)")
	cmd.Flags().StringVar(&f.httpAddr, "http-addr", "", `gateway listen address, "" keeps HTTP_ADDR (use "off" to disable)`)
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write logs to this file (defaults to "+defaultTUILogFile+" with --tui)")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show the interactive terminal dashboard")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	changed := cmd.Flags().Changed
	if changed("broker") {
		cfg.MQTTBroker = f.broker
	}
	if changed("topic") {
		cfg.MQTTTopic = f.topic
	}
	if changed("http-addr") {
		cfg.HTTPAddr = f.httpAddr
		if f.httpAddr == "off" {
			cfg.HTTPAddr = ""
		}
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newLogger(level string, path string) (*slog.Logger, func(), error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = file
		closeFn = func() { _ = file.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeFn, nil
}

func run(parent context.Context, cfg *config.Config, f flags) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile := f.logFile
	if logFile == "" && f.tui {
		logFile = defaultTUILogFile
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Starting Garden Monitor...",
		"broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic, "client_id", cfg.MQTTClientID)

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs, err := observability.NewPromObs(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// === Optional ClickHouse archive ===
	sessionConfig := services.SessionConfig{
		HistoryCapacity: cfg.HistoryCapacity,
		TrendWindow:     cfg.TrendWindow,
		Logger:          logger,
		Observer:        obs,
	}
	if cfg.ClickHouseAddr != "" {
		db, err := database.NewClickHouseDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB,
			cfg.ClickHouseUser, cfg.ClickHousePass, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize ClickHouse: %w", err)
		}

		archiveCtx, cancelArchive := context.WithCancel(ctx)
		archive := services.NewArchiveService(db, obs, logger, services.DefaultArchiveServiceConfig())
		archiveDone := make(chan struct{})
		go func() {
			defer close(archiveDone)
			archive.Start(archiveCtx)
		}()
		defer func() {
			cancelArchive()
			<-archiveDone
			_ = db.Close()
		}()

		sessionConfig.Archiver = archive
	}

	// === Session ===
	client := mqtt.NewClient(mqtt.ClientConfig{
		Broker:            cfg.MQTTBroker,
		Topic:             cfg.MQTTTopic,
		ClientID:          cfg.MQTTClientID,
		KeepAlive:         cfg.MQTTKeepAlive,
		ProtocolVersion:   cfg.MQTTProtocolVersion,
		CleanSession:      cfg.MQTTCleanSession,
		ReconnectInterval: cfg.MQTTReconnectInterval,
		ConnectTimeout:    cfg.MQTTConnectTimeout,
		TLSInsecure:       cfg.MQTTTLSInsecure,
	}, mqtt.WithLogger(logger))

	session := services.NewSession(client, sessionConfig)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.Stop()

	// === Gateway ===
	gatewayErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		gw := gateway.NewServer(session, gateway.Config{
			Addr:         cfg.HTTPAddr,
			TickInterval: staleness.DefaultInterval,
			Gatherer:     reg,
			Logger:       logger,
		})
		go func() {
			gatewayErr <- gw.Start(ctx)
		}()
	}

	if f.tui {
		err := view.Run(ctx, session, staleness.DefaultInterval)
		stop()
		logger.Info("Terminal view closed, stopping services...")
		return err
	}

	logger.Info("Garden Monitor is running", "http_addr", cfg.HTTPAddr, "archive", cfg.ClickHouseAddr != "")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping services...")
	case err := <-gatewayErr:
		if err != nil {
			return err
		}
	}
	return nil
}
