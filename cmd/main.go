package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
)

const configFilePath = "./configs/config.yaml"

// vectorStore is what the commands need from either backend.
type vectorStore interface {
	Insert(ctx context.Context, chunk models.EmbeddedChunk, sourceFile string) error
	Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.RetrievedCandidate, error)
	Clear(ctx context.Context) error
}

type app struct {
	configPath  string
	metricsAddr string

	cfg     *config.Config
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "document-qa",
		Short:         "Answer questions grounded in your own documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", configFilePath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		a.indexCmd(),
		a.uploadCmd(),
		a.askCmd(),
		a.initDBCmd(),
		a.clearCmd(),
		a.exportCmd(),
		a.importCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	helper.SetupLogger(cfg.LogLevel)
	log.Debug().Str("store", cfg.VectorStore.Type).Str("embed_model", cfg.EmbedLLM.Model).Str("chat_model", cfg.ChatLLM.Model).Msg("Loaded config")

	a.cfg = cfg
	a.reg = prometheus.NewRegistry()
	a.metrics = metrics.NewMetrics(a.reg)

	if a.metricsAddr != "" {
		a.serveMetrics(ctx)
	}
	return nil
}

func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", a.metricsAddr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

func (a *app) embedder() (embeddings.Embedder, error) {
	e, err := embedding.NewEmbedder(&a.cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	return e, nil
}

// openStore opens the configured vector store. The returned func releases it.
func (a *app) openStore(embedder embeddings.Embedder) (vectorStore, func(), error) {
	switch a.cfg.VectorStore.Type {
	case config.StoreChromem:
		s, err := a.openChromem(embedder)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		dbInstance, err := a.openDB()
		if err != nil {
			return nil, nil, err
		}
		return db.NewStore(dbInstance), func() { _ = dbInstance.Close() }, nil
	}
}

func (a *app) openChromem(embedder embeddings.Embedder) (*chromemdb.Store, error) {
	var embed func(ctx context.Context, text string) ([]float32, error)
	if embedder != nil {
		embed = embedding.EmbedFunc(embedder)
	}
	s, err := chromemdb.New(a.cfg.VectorStore, embed)
	if err != nil {
		return nil, fmt.Errorf("error opening chromem store: %w", err)
	}
	return s, nil
}

func (a *app) openDB() (*bun.DB, error) {
	sqldb, err := db.ConnectDB(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db.NewDB(sqldb, a.cfg.Database.Debug), nil
}
