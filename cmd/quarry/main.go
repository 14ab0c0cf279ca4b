package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kode4food/timebox"
	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	app "github.com/kode4food/quarry"
	"github.com/kode4food/quarry/internal/archive"
	"github.com/kode4food/quarry/internal/clientindex"
	"github.com/kode4food/quarry/internal/config"
	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/flows"
	"github.com/kode4food/quarry/internal/flows/interrogate"
	"github.com/kode4food/quarry/internal/notify"
	"github.com/kode4food/quarry/internal/server"
	"github.com/kode4food/quarry/internal/transport"
	"github.com/kode4food/quarry/pkg/log"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type quarry struct {
	cfg         *config.Config
	timebox     *timebox.Timebox
	flowStore   *timebox.Store
	indexStore  *timebox.Store
	bucket      *blob.Bucket
	archive     *archive.Archive
	redisClient *redis.Client
	clientIndex *clientindex.Index
	hub         *notify.Hub
	engine      *engine.Engine
	apiServer   *server.Server
	httpServer  *http.Server
	quit        chan os.Signal
}

var (
	ErrCreateTimebox    = errors.New("failed to create timebox")
	ErrCreateFlowStore  = errors.New("failed to create flow store")
	ErrCreateIndexStore = errors.New("failed to create index store")
	ErrOpenArchive      = errors.New("failed to open archive bucket")
	ErrConnectClientIdx = errors.New("failed to connect client index")
	ErrCreateRegistry   = errors.New("failed to create flow registry")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &quarry{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		s.close()
		os.Exit(1)
	}
}

func (s *quarry) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}
	if err := s.initializePublishers(); err != nil {
		return err
	}
	if err := s.initializeEngine(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *quarry) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Quarry engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("flow_redis_addr", s.cfg.FlowStore.Addr),
		slog.Int("flow_redis_db", s.cfg.FlowStore.DB),
		slog.String("index_redis_addr", s.cfg.IndexStore.Addr),
		slog.Int("index_redis_db", s.cfg.IndexStore.DB),
		slog.String("client_index_addr", s.cfg.ClientIndex.Addr),
		slog.String("archive_bucket", s.cfg.ArchiveBucket),
		slog.String("agent_endpoint", s.cfg.AgentEndpoint),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *quarry) initializeStores() error {
	var err error

	s.timebox, err = timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
		CacheSize:  s.cfg.FlowCacheSize,
		Workers:    true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateTimebox, err)
	}

	s.flowStore, err = s.timebox.NewStore(s.cfg.FlowStore)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFlowStore, err)
	}

	s.indexStore, err = s.timebox.NewStore(s.cfg.IndexStore)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateIndexStore, err)
	}

	return nil
}

func (s *quarry) initializePublishers() error {
	ctx := context.Background()

	var err error
	s.archive, s.bucket, err = archive.Open(ctx, s.cfg.ArchiveBucket)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}

	ci := s.cfg.ClientIndex
	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     ci.Addr,
		Password: ci.Password,
		DB:       ci.DB,
	})
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectClientIdx, err)
	}
	s.clientIndex, err = clientindex.New(
		s.redisClient, ci.Prefix, interrogate.FlowType,
	)
	return err
}

func (s *quarry) initializeEngine() error {
	reg, err := flows.NewRegistry()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateRegistry, err)
	}

	s.hub = notify.NewHub()
	eng, err := engine.New(s.cfg, engine.Dependencies{
		FlowStore:  s.flowStore,
		IndexStore: s.indexStore,
		Registry:   reg,
		Transport: transport.NewHTTPTransport(
			s.cfg.AgentEndpoint, s.cfg.DispatchTimeout,
		),
		Notifier:   notify.Multi{notify.Logger{}, s.hub},
		Publishers: []engine.Publisher{s.archive, s.clientIndex},
	})
	if err != nil {
		return err
	}
	s.engine = eng
	return s.engine.Start()
}

func (s *quarry) startServer() {
	s.apiServer = server.NewServer(
		s.engine, s.hub, s.clientIndex, s.cfg.Interrogate,
	)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *quarry) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if err := s.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	s.close()
	slog.Info("Server exited")
}

// close releases whatever resources were acquired, in reverse order
func (s *quarry) close() {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.bucket != nil {
		_ = s.bucket.Close()
	}
	if s.timebox != nil {
		_ = s.timebox.Close()
	}
}
