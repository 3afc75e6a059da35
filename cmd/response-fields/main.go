package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	responsefields "github.com/always-cache/response-fields"
	"github.com/always-cache/response-fields/pkg/metrics"
	"github.com/always-cache/response-fields/settings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	dbFilenameFlag     string
	redisAddrFlag      string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Settings DB file name (use 'memory' for in-memory db, overrides config)")
	flag.StringVar(&redisAddrFlag, "redis", "", "Redis address for shared settings (overrides db)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := defaultConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config")
		}
	}
	if portFlag > 0 {
		config.Listen = fmt.Sprintf(":%d", portFlag)
	}
	if dbFilenameFlag != "" {
		config.Settings.DB = dbFilenameFlag
	}
	if redisAddrFlag != "" {
		config.Settings.Redis = redisAddrFlag
	}

	srv, closeStore, err := buildServer(context.Background(), config, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not set up server")
	}
	defer closeStore()

	if err := run(&http.Server{Addr: config.Listen, Handler: srv.routes()}, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// buildServer wires the settings store, loader, engine and middleware.
// The returned function closes the settings store.
func buildServer(ctx context.Context, config Config, logger zerolog.Logger) (*server, func() error, error) {
	scope, err := settings.ParseScope(config.Settings.Scope)
	if err != nil {
		return nil, nil, err
	}

	var store interface {
		settings.Store
		Close() error
	}
	if config.Settings.Redis != "" {
		logger.Info().Str("addr", config.Settings.Redis).Str("scope", string(scope)).Msg("Using Redis settings store")
		store = settings.DialRedisStore(config.Settings.Redis, config.Settings.RedisDB, scope)
	} else {
		// set up sqlite memory provider
		dbFilename := config.Settings.DB
		if dbFilename == "memory" {
			dbFilename = ""
		}
		logger.Info().Str("db", config.Settings.DB).Str("scope", string(scope)).Msg("Using SQLite settings store")
		store = settings.NewSQLiteStore(dbFilename, scope)
	}

	recorder := metrics.NewRecorder(nil)
	loader := settings.NewLoader(settings.LoaderConfig{
		Store:   store,
		TTL:     config.Settings.TTL,
		Logger:  &logger,
		Metrics: recorder,
	})
	if err := loader.EnsureVersion(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("could not record settings version: %w", err)
	}

	c := newContent(config.Posts)
	engine := responsefields.NewEngine(responsefields.EngineConfig{
		SingularTypes: responsefields.DefaultSingularTypes(config.PublicTypes...),
		ArchiveTypes:  responsefields.DefaultArchiveTypes(config.PublicTypes...),
		Comments:      c,
		Logger:        &logger,
	})

	adminTokens := make(map[string]bool, len(config.AdminTokens))
	for _, t := range config.AdminTokens {
		if t != "" {
			adminTokens[t] = true
		}
	}

	srv := &server{
		content: c,
		loader:  loader,
		fields: responsefields.New(responsefields.Config{
			Settings:            loader,
			Engine:              engine,
			ConditionalRequests: config.ConditionalRequests,
			Logger:              &logger,
			Metrics:             recorder,
		}),
		metrics:     recorder,
		adminTokens: adminTokens,
		log:         logger.With().Str("component", "host").Logger(),
	}
	return srv, store.Close, nil
}

// run serves until SIGINT or SIGTERM, then shuts down gracefully.
func run(srv *http.Server, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
