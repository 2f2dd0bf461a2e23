package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	PersistPath string // directory; empty keeps the index in memory
	Collection  string
	Compress    bool
}

// Document is one stored chunk.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// SearchResult pairs a document with its cosine similarity.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// VectorStore is the semantic-search collaborator.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document) error
	Query(ctx context.Context, text string, topK int, where map[string]string) ([]SearchResult, error)
	Delete(ctx context.Context, ids ...string) error
	Count() int
}

// chromemStore implements VectorStore with chromem-go.
type chromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     StoreConfig
}

// NewVectorStore opens or creates the collection.
func NewVectorStore(config StoreConfig, embedder Embedder) (VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "default"
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	var db *chromem.DB
	if config.PersistPath != "" {
		if err := os.MkdirAll(config.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("create persist dir: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistPath, "chromem"), config.Compress)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(config.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &chromemStore{db: db, collection: collection, config: config}, nil
}

// Upsert adds documents, replacing any with the same ID.
func (s *chromemStore) Upsert(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document without id")
		}
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("add document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Query returns up to topK documents ordered by similarity. An empty
// collection yields no results rather than an error.
func (s *chromemStore) Query(ctx context.Context, text string, topK int, where map[string]string) ([]SearchResult, error) {
	count := s.collection.Count()
	if count == 0 || topK <= 0 {
		return []SearchResult{}, nil
	}
	if topK > count {
		topK = count
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := s.collection.Query(ctx, text, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			Document: Document{
				ID:        r.ID,
				Content:   r.Content,
				Embedding: r.Embedding,
				Metadata:  r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

// Delete removes documents by ID.
func (s *chromemStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.collection.Delete(ctx, nil, nil, ids...)
}

// Count returns the number of stored documents.
func (s *chromemStore) Count() int {
	return s.collection.Count()
}
