package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/dgraph-io/badger/v4"
)

// #region cache
// CachedEmbedder keeps embeddings in a badger store so statements seen in an
// earlier run are not re-embedded. Only misses reach the base embedder.
type CachedEmbedder struct {
	base  Embedder
	model string
	db    *badger.DB
}

// OpenCache opens (or creates) a badger cache at dir. An empty dir keeps the
// cache in memory for the life of the process.
func OpenCache(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %q: %w", dir, err)
	}
	return db, nil
}

// NewCachedEmbedderWithDB wraps base with a cache in an already open badger
// DB. The caller owns db; several embedders may share it.
func NewCachedEmbedderWithDB(base Embedder, model string, db *badger.DB) *CachedEmbedder {
	if model == "" {
		if m, ok := base.(Model); ok {
			model = m.Model()
		}
	}
	return &CachedEmbedder{base: base, model: model, db: db}
}

// Model returns the model the cache is keyed by.
func (c *CachedEmbedder) Model() string { return c.model }

// #endregion cache

// #region embed
// Embed implements Embedder. Output order equals input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(txn *badger.Txn) error {
		for i, t := range texts {
			item, err := txn.Get(c.key(t))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, t)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				v, err := DecodeVector(val)
				out[i] = v
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache read: %w", err)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.base.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: base returned %d vectors for %d texts", len(fresh), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for j, t := range missTexts {
			if err := txn.Set(c.key(t), EncodeVector(fresh[j])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache write: %w", err)
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) []byte {
	h := fnv.New64a()
	h.Write([]byte(text))
	return []byte(fmt.Sprintf("emb:%s:%016x", c.model, h.Sum64()))
}

// #endregion embed
