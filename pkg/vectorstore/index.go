// Package vectorstore indexes finished replies for semantic recall.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/config"
	"github.com/BryanTheLai/stackrag/pkg/logger"
)

const defaultCollection = "turns"

// ErrEmptyQuery is returned when searching for blank text.
var ErrEmptyQuery = errors.New("query is empty")

// Hit is one recalled reply.
type Hit struct {
	TurnID     string
	SessionID  string
	Model      string
	Content    string
	Similarity float32
	IndexedAt  time.Time
}

// Index stores the prose of completed turns in a chromem collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewIndex opens the collection named in cfg. A nil embed uses the Ollama
// embedding endpoint from cfg. The index is persisted when cfg names a
// directory and kept in memory otherwise.
func NewIndex(cfg config.VectorStoreConfig, embed chromem.EmbeddingFunc) (*Index, error) {
	if embed == nil {
		embed = chromem.NewEmbeddingFuncOllama(cfg.Embedder.Model, cfg.Embedder.BaseURL)
	}

	var db *chromem.DB
	var err error
	if cfg.PersistenceDir != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistenceDir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create chromem database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = defaultCollection
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	logger.WithComponent("vectorstore").Debug("Index opened",
		"collection", name, "persistent", cfg.PersistenceDir != "", "documents", collection.Count())
	return &Index{db: db, collection: collection}, nil
}

// IndexTurn stores the prose of a completed turn. Blocks are left out, and
// turns without prose or that did not complete are skipped.
func (x *Index) IndexTurn(ctx context.Context, sessionID string, view chat.TurnView) error {
	content := strings.TrimSpace(view.Prose())
	if view.Status != chat.StatusComplete || content == "" {
		return nil
	}

	blocks := 0
	for _, s := range view.Segments {
		if s.IsBlock() {
			blocks++
		}
	}

	doc := chromem.Document{
		ID:      view.ID,
		Content: content,
		Metadata: map[string]string{
			"session_id": sessionID,
			"model":      view.Model,
			"blocks":     strconv.Itoa(blocks),
			"indexed_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := x.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to index turn %s: %w", view.ID, err)
	}

	logger.WithComponent("vectorstore").Debug("Turn indexed", "turn_id", view.ID, "session_id", sessionID, "length", len(content))
	return nil
}

// Search returns up to k replies most similar to query.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	// chromem rejects k larger than the collection.
	k = min(k, x.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := x.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		indexed, _ := time.Parse(time.RFC3339, r.Metadata["indexed_at"])
		hits = append(hits, Hit{
			TurnID:     r.ID,
			SessionID:  r.Metadata["session_id"],
			Model:      r.Metadata["model"],
			Content:    r.Content,
			Similarity: r.Similarity,
			IndexedAt:  indexed,
		})
	}
	return hits, nil
}

// DeleteSession drops every reply indexed for sessionID.
func (x *Index) DeleteSession(ctx context.Context, sessionID string) error {
	if err := x.collection.Delete(ctx, map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("failed to delete session %s from index: %w", sessionID, err)
	}
	return nil
}

func (x *Index) Count() int {
	return x.collection.Count()
}
