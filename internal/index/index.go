// Package index finds the knowledge-graph entities nearest to a piece of text.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/kgrag-mcq/internal/codec"
	"github.com/danielpatrickdp/kgrag-mcq/internal/embed"
)

// #region types
// Hit is one nearest-neighbour result. Lower Distance is closer.
type Hit struct {
	Entity   string
	Distance float64
}

// Index is read-only for the whole run.
type Index interface {
	Nearest(ctx context.Context, query string, k int) ([]Hit, error)
}

// #endregion types

// #region sqlite
type entry struct {
	name string
	vec  []float32
}

// SQLiteIndex holds every node embedding in memory and searches by brute
// force cosine distance.
type SQLiteIndex struct {
	embedder embed.Embedder
	entries  []entry
}

// OpenSQLite loads the node_embeddings table at dbPath once. The embedder
// must be the model the table was built with. The file is opened read-only
// and must already exist.
func OpenSQLite(ctx context.Context, dbPath string, embedder embed.Embedder) (*SQLiteIndex, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT node_name, embedding FROM node_embeddings ORDER BY node_name")
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", dbPath, err)
	}
	defer rows.Close()

	idx := &SQLiteIndex{embedder: embedder}
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		vec, err := embed.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		idx.entries = append(idx.entries, entry{name: name, vec: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index: %w", err)
	}
	return idx, nil
}

// Len reports how many nodes are indexed.
func (s *SQLiteIndex) Len() int { return len(s.entries) }

// Nearest implements Index. Results are sorted by ascending distance with
// ties broken by entity name.
func (s *SQLiteIndex) Nearest(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	q := vecs[0]

	hits := make([]Hit, len(s.entries))
	for i, e := range s.entries {
		hits[i] = Hit{Entity: e.name, Distance: 1 - embed.Cosine(q, e.vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Entity < hits[j].Entity
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// #endregion sqlite

// #region codec
// Searcher is the slice of codec.CodecClient used by CodecIndex.
type Searcher interface {
	Search(ctx context.Context, queryText string, topK int) ([]codec.SearchResult, error)
}

// CodecIndex delegates to the Chroma collection behind the codec service.
type CodecIndex struct {
	svc Searcher
}

// NewCodecIndex wraps a codec client.
func NewCodecIndex(svc Searcher) *CodecIndex {
	return &CodecIndex{svc: svc}
}

// Nearest implements Index.
func (c *CodecIndex) Nearest(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	results, err := c.svc.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Entity: r.ID, Distance: r.Distance}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Entity < hits[j].Entity
	})
	return hits, nil
}

// #endregion codec
