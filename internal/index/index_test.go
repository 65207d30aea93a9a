package index

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/kgrag-mcq/internal/codec"
	"github.com/danielpatrickdp/kgrag-mcq/internal/embed"
)

// #region fakes
type tableEmbedder map[string][]float32

func (t tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		v, ok := t[s]
		if !ok {
			return nil, errors.New("unknown text " + s)
		}
		out[i] = v
	}
	return out, nil
}

type fakeSearcher struct {
	results []codec.SearchResult
	err     error
	gotK    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]codec.SearchResult, error) {
	f.gotK = k
	return f.results, f.err
}

// #endregion fakes

// writeEntries stores vectors the way the offline index build lays them out.
func writeEntries(t *testing.T, path string, vectors map[string][]float32) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS node_embeddings (
		node_name TEXT PRIMARY KEY,
		embedding BLOB NOT NULL
	)`)
	require.NoError(t, err)
	for name, vec := range vectors {
		_, err := db.Exec("INSERT OR REPLACE INTO node_embeddings (node_name, embedding) VALUES (?, ?)",
			name, embed.EncodeVector(vec))
		require.NoError(t, err)
	}
}

func buildIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.db")
	writeEntries(t, path, map[string][]float32{
		"Disease_asthma":   {1, 0},
		"Disease_copd":     {0.8, 0.6},
		"Gene_IL13":        {0, 1},
		"Disease_asthma_2": {1, 0},
	})
	return path
}

// #region sqlite-tests
func TestSQLiteNearestOrdersByDistance(t *testing.T) {
	emb := tableEmbedder{"asthma question": {1, 0}}
	idx, err := OpenSQLite(context.Background(), buildIndex(t), emb)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	hits, err := idx.Nearest(context.Background(), "asthma question", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// equal distance ties break on entity name
	assert.Equal(t, "Disease_asthma", hits[0].Entity)
	assert.Equal(t, "Disease_asthma_2", hits[1].Entity)
	assert.Equal(t, "Disease_copd", hits[2].Entity)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 0.2, hits[2].Distance, 1e-6)
}

func TestSQLiteNearestKLargerThanIndex(t *testing.T) {
	emb := tableEmbedder{"q": {0, 1}}
	idx, err := OpenSQLite(context.Background(), buildIndex(t), emb)
	require.NoError(t, err)

	hits, err := idx.Nearest(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
	assert.Equal(t, "Gene_IL13", hits[0].Entity)

	none, err := idx.Nearest(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteNearestEmbedError(t *testing.T) {
	idx, err := OpenSQLite(context.Background(), buildIndex(t), tableEmbedder{})
	require.NoError(t, err)

	_, err = idx.Nearest(context.Background(), "unseen", 1)
	assert.Error(t, err)
}

func TestOpenSQLiteMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE other (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenSQLite(context.Background(), path, tableEmbedder{})
	assert.Error(t, err)
}

func TestOpenSQLiteMissingFileIsNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := OpenSQLite(context.Background(), path, tableEmbedder{})
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

// #endregion sqlite-tests

// #region codec-tests
func TestCodecIndexSortsResults(t *testing.T) {
	svc := &fakeSearcher{results: []codec.SearchResult{
		{ID: "b", Distance: 0.3},
		{ID: "a", Distance: 0.1},
		{ID: "c", Distance: 0.1},
	}}
	hits, err := NewCodecIndex(svc).Nearest(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, svc.gotK)
	assert.Equal(t, []Hit{{"a", 0.1}, {"c", 0.1}, {"b", 0.3}}, hits)
}

func TestCodecIndexError(t *testing.T) {
	boom := errors.New("chroma down")
	_, err := NewCodecIndex(&fakeSearcher{err: boom}).Nearest(context.Background(), "q", 1)
	assert.ErrorIs(t, err, boom)
}

// #endregion codec-tests
