package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/BryanTheLai/stackrag/pkg/blocks"
	"github.com/BryanTheLai/stackrag/pkg/config"
	"github.com/BryanTheLai/stackrag/pkg/documents"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/ollama"
	"github.com/BryanTheLai/stackrag/pkg/render"
	"github.com/BryanTheLai/stackrag/pkg/session"
	"github.com/BryanTheLai/stackrag/pkg/sse"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
	"github.com/BryanTheLai/stackrag/pkg/vectorstore"
)

const modelCheckTimeout = 5 * time.Second

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	reg      *tags.Registry
	renderer *render.Renderer
	store    session.Store
	catalog  *documents.SQLiteCatalog
	index    *vectorstore.Index
	sources  *stream.Sources
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.WithComponent("app")

	reg, err := buildRegistry(cfg.Tags)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a := &app{cfg: cfg, reg: reg, store: store}

	if sq, ok := store.(*session.SQLiteStore); ok {
		a.catalog, err = documents.NewSQLiteCatalog(sq.DB())
	} else {
		a.catalog, err = documents.Open(filepath.Join(filepath.Dir(cfg.Session.Path), "documents.db"))
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open document catalog: %w", err)
	}

	if cfg.VectorStore.Enabled {
		a.index, err = vectorstore.NewIndex(cfg.VectorStore, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	}

	width := cfg.Render.Width
	if width <= 0 {
		width = terminalWidth()
	}
	parser := blocks.NewParser(reg, blocks.WithRepair(cfg.Blocks.RepairJSON))
	a.renderer = render.New(parser,
		render.WithWidth(width),
		render.WithStyle(cfg.Render.Style),
		render.WithHighlight(cfg.Render.Highlight),
		render.WithDocuments(a.catalog),
	)

	a.sources = stream.NewSources()
	a.sources.Register("sse", sse.NewClient(cfg.Backend.URL,
		sse.WithToken(cfg.Backend.Token),
		sse.WithTimeout(cfg.Backend.Timeout),
	))
	if src, err := ollama.NewSource(cfg.Ollama.URL, cfg.Ollama.Model,
		ollama.WithSystemPrompt(cfg.Ollama.SystemPrompt),
		ollama.WithTimeout(cfg.Ollama.Timeout),
	); err != nil {
		log.Warn("Ollama source unavailable", "error", err)
	} else {
		a.sources.Register("ollama", src)
	}

	log.Debug("App ready", "provider", cfg.Provider, "tags", reg.Len(), "index", a.index != nil)
	return a, nil
}

// buildRegistry adds the configured tags after the built-in ones.
func buildRegistry(cfg config.TagsConfig) (*tags.Registry, error) {
	extra := make([]tags.TagSpec, len(cfg.Extra))
	for i, t := range cfg.Extra {
		extra[i] = tags.TagSpec{Open: t.Open, Close: t.Close, Kind: tags.BlockKind(t.Kind)}
	}
	reg, err := tags.Default().With(extra...)
	if err != nil {
		return nil, fmt.Errorf("invalid tags.extra: %w", err)
	}
	return reg, nil
}

// source returns the configured reply source, checking a local model first.
func (a *app) source(ctx context.Context) (stream.Source, error) {
	src, err := a.sources.Get(a.cfg.Provider)
	if err != nil {
		return nil, err
	}
	if a.cfg.Provider == "ollama" {
		client := ollama.NewClient(a.cfg.Ollama.URL)
		if err := client.CheckModel(ctx, a.cfg.Ollama.Model, modelCheckTimeout); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func (a *app) Close() {
	var errs []error
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.WithComponent("app").Warn("Close failed", "error", err)
	}
}

// loadApp builds the app from the global config.
func loadApp() (*app, error) {
	return newApp(config.Get())
}
