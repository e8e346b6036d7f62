package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xhad/twitoff/internal/logger"
	"github.com/xhad/twitoff/internal/types"
	cfgPkg "github.com/xhad/twitoff/pkg/config"
	"github.com/xhad/twitoff/pkg/classifier"
	"github.com/xhad/twitoff/pkg/ingest"
	"github.com/xhad/twitoff/pkg/llm"
	"github.com/xhad/twitoff/pkg/metrics"
	"github.com/xhad/twitoff/pkg/predictor"
	"github.com/xhad/twitoff/pkg/processor"
	"github.com/xhad/twitoff/pkg/scraper"
	"github.com/xhad/twitoff/pkg/store"
	"github.com/xhad/twitoff/server"
)

type options struct {
	configPath string
	envFile    string
	serve      bool
	seed       bool
	port       int
}

// app holds the wired components shared by the CLI and the server.
type app struct {
	config    *cfgPkg.Config
	logger    *zap.Logger
	store     types.AuthorStore
	predictor *predictor.Predictor
	ingestor  *ingest.Ingestor
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	flag.BoolVar(&opts.serve, "serve", false, "Start the HTTP server instead of the interactive prompt")
	flag.BoolVar(&opts.seed, "seed", false, "Add the configured authors before starting")
	flag.IntVar(&opts.port, "port", 0, "HTTP port (overrides config)")
	flag.Parse()

	return opts
}

func run(opts options) error {
	// A missing .env file is not an error.
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	config, err := cfgPkg.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.port != 0 {
		config.Server.Port = opts.port
	}
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration: %d errors", len(errs))
	}

	l, err := logger.NewLogger(config.Logging.Env, config.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config, l)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if opts.seed {
		names := config.Authors
		if len(names) == 0 {
			names = ingest.DefaultAuthors
		}
		if err := addWithProgress(ctx, a.ingestor, names); err != nil {
			return err
		}
	}

	if opts.serve {
		return serve(ctx, a)
	}
	return newCLI(a, os.Stdin).loop(ctx)
}

func newApp(ctx context.Context, config *cfgPkg.Config, l *zap.Logger) (*app, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  config.Embedder.Provider,
		Model:     config.Embedder.Model,
		BaseURL:   config.Embedder.BaseURL,
		APIKey:    config.Embedder.APIKey,
		Dimension: config.Embedder.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var authorStore types.AuthorStore
	switch config.Database.Driver {
	case "postgres":
		authorStore, err = store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString:  config.Database.URL,
			TablePrefix: config.Database.TablePrefix,
			VectorDim:   config.Database.VectorDim,
			BatchSize:   config.Database.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	default:
		authorStore = store.NewMemoryStore(config.Database.VectorDim)
	}

	timeline, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:   config.Scraper.BaseURL,
		RateLimit: config.Scraper.RateLimit,
		MaxPosts:  config.Scraper.MaxPosts,
		MaxPages:  config.Scraper.MaxPages,
		Timeout:   config.Scraper.Timeout,
		UserAgent: config.Scraper.UserAgent,
		OnProgress: func(url string) {
			l.Debug("Fetched timeline page", zap.String("url", url))
		},
	})
	if err != nil {
		authorStore.Close()
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		MaxContentLength: config.Processor.MaxContentLength,
	})

	builder := classifier.NewBuilder(classifier.Config{
		C:             config.Classifier.C,
		MaxIterations: config.Classifier.MaxIterations,
		Tolerance:     config.Classifier.Tolerance,
	})

	return &app{
		config:    config,
		logger:    l,
		store:     authorStore,
		predictor: predictor.New(authorStore, embedder, builder, l),
		ingestor:  ingest.New(timeline, embedder, authorStore, proc, l),
	}, nil
}

func serve(ctx context.Context, a *app) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(a.predictor, a.ingestor, a.store, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return err
	}
	return nil
}
