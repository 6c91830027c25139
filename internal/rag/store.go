package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/eurocup-agent/server/internal/agent/model"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// countryMetadataKey is the passage metadata key carrying the country a
// passage is about. Search filters match against it.
const countryMetadataKey = "country"

// Store wraps a persistent chromem-go collection holding the tournament
// knowledge base.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	name    string
	embedFn chromem.EmbeddingFunc
}

// NewStore opens (or creates) the persistent vector store at
// dataDir/vectorstore with one collection for the tournament corpus.
func NewStore(dataDir, collection string, embedFn chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	return &Store{db: db, name: collection, embedFn: embedFn}, nil
}

func (s *Store) collection() *chromem.Collection {
	col := s.db.GetCollection(s.name, s.embedFn)
	if col == nil {
		var err error
		col, err = s.db.CreateCollection(s.name, nil, s.embedFn)
		if err != nil {
			logx.Error().Err(err).Str("collection", s.name).Msg("failed to create vector collection")
			return nil
		}
	}
	return col
}

// Index adds (or re-indexes) a passage. country may be empty for passages
// not tied to one team.
func (s *Store) Index(ctx context.Context, id, content, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection()
	if col == nil {
		return fmt.Errorf("vectorstore: nil collection %q", s.name)
	}

	doc := chromem.Document{
		ID:      id,
		Content: content,
	}
	if country != "" {
		doc.Metadata = map[string]string{countryMetadataKey: country}
	}
	return col.AddDocument(ctx, doc)
}

// Search returns up to k passages ordered by similarity. A filter with
// exactly one country restricts the search to passages about that country;
// broader filters fall back to an unrestricted search, since the metadata
// match is exact per key.
func (s *Store) Search(ctx context.Context, query string, filter map[string][]string, k int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collection()
	if col == nil {
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var where map[string]string
	if vals := filter[countryMetadataKey]; len(vals) == 1 {
		where = map[string]string{countryMetadataKey: vals[0]}
	}

	var results []chromem.Result
	var err error

	// chromem-go sometimes rejects nResults despite the Count check when a
	// where filter shrinks the candidate set. Step down k if it fails.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, query, attemptK, where, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}
	return out, nil
}

var _ model.KnowledgeRetriever = (*Store)(nil)
