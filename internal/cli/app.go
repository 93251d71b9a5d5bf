// Package cli wires storage, embedding, retrieval, and lifecycle collaborators into the
// cobra command tree for the mnemo binary (spec.md §6.4).
package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-run/mnemo/internal/compaction"
	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/eviction"
	"github.com/mnemo-run/mnemo/internal/ingestion"
	"github.com/mnemo-run/mnemo/internal/logging"
	"github.com/mnemo-run/mnemo/internal/retrieval"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
	"github.com/mnemo-run/mnemo/internal/tier"
)

// App holds every collaborator shared between the proxy and the CLI, grounded on
// daverage-tinyMem/internal/app/app.go's App struct (a single build-once bag of services
// every subcommand reads from) but composed from Mnemo's own package set.
type App struct {
	Config    *config.Config
	Store     *storage.Store
	Router    *router.Router
	Embedder  embeddings.Embedder
	Retriever *retrieval.Retriever
	Ingestor  *ingestion.Ingestor
	Tier      *tier.Manager
	Compactor *compaction.Compactor
	Evictor   *eviction.Evictor
	Log       *zap.Logger
}

// NewApp loads configuration from configPath (empty for defaults-only), opens the store,
// and wires every collaborator.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("cli: load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("cli: init logging: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir, cfg.Embedding.Dimension, log)
	if err != nil {
		return nil, fmt.Errorf("cli: open storage: %w", err)
	}

	lx, err := router.LoadLexicon()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cli: load lexicon: %w", err)
	}

	rt, err := router.New()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cli: init router: %w", err)
	}

	embedder := buildEmbedder(cfg)

	retriever := retrieval.New(store, embedder, rt, cfg.Weight, cfg.Router.Deterministic, time.Now)
	ingestor := ingestion.New(rt, embedder, store, time.Now)
	tierMgr := tier.New(store, cfg.Capacity.AccessPromoteThreshold)
	compactor := compaction.New(store, lx, time.Now)
	evictor := eviction.New(store, cfg.Weight, cfg.Capacity, time.Now)

	return &App{
		Config:    cfg,
		Store:     store,
		Router:    rt,
		Embedder:  embedder,
		Retriever: retriever,
		Ingestor:  ingestor,
		Tier:      tierMgr,
		Compactor: compactor,
		Evictor:   evictor,
		Log:       log,
	}, nil
}

// buildEmbedder honors [embedding] remote_url: a remote embedder when configured, otherwise
// the deterministic hash embedder. Either one is wrapped in a ristretto cache; if the cache
// cannot be built, the bare embedder is returned.
func buildEmbedder(cfg *config.Config) embeddings.Embedder {
	var base embeddings.Embedder
	if cfg.Embedding.RemoteURL != "" {
		base = embeddings.NewRemoteEmbedder(cfg.Embedding.RemoteURL, cfg.Embedding.RemoteAPIKey, cfg.Embedding.Model, cfg.Embedding.Dimension)
	} else {
		base = embeddings.NewHashEmbedder(cfg.Embedding.Dimension)
	}

	cached, err := embeddings.NewCachedEmbedder(base, 10000)
	if err != nil {
		return base
	}
	return cached
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.Store.Close()
}
