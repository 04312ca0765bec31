package store_test

import (
	stderrors "errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/rag/store"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

func passage(i int) model.Passage {
	return model.Passage{Text: fmt.Sprintf("p%d", i), SourceID: "doc", Index: i}
}

func entries(vectors ...[]float32) []store.Entry {
	out := make([]store.Entry, len(vectors))
	for i, v := range vectors {
		out[i] = store.Entry{Vector: v, Passage: passage(i)}
	}
	return out
}

func randomEntries(r *rand.Rand, n, dim int) []store.Entry {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		vectors[i] = v
	}
	return entries(vectors...)
}

func TestMemoryIndex_Search(t *testing.T) {
	idx, err := store.Build(entries(
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{1, 1},
	))
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "p0", results[0].Passage.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, 0, results[0].Rank)
	assert.Equal(t, "p2", results[1].Passage.Text)
	assert.InDelta(t, 1/math.Sqrt2, results[1].Score, 1e-6)
	assert.Equal(t, 1, results[1].Rank)
}

func TestMemoryIndex_Empty(t *testing.T) {
	idx, err := store.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimension())

	for _, q := range [][]float32{{1, 0}, {1, 2, 3}, nil} {
		results, err := idx.Search(q, 5)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}

func TestMemoryIndex_ResultCount(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 3, 10, 57} {
		idx, err := store.Build(randomEntries(r, n, 8))
		require.NoError(t, err)
		for _, k := range []int{1, 2, 5, 10, 100} {
			results, err := idx.Search(randomEntries(r, 1, 8)[0].Vector, k)
			require.NoError(t, err)
			assert.Len(t, results, min(k, n), "n=%d k=%d", n, k)
		}
	}
}

func TestMemoryIndex_ScoresNonIncreasing(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	idx, err := store.Build(randomEntries(r, 200, 16))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		results, err := idx.Search(randomEntries(r, 1, 16)[0].Vector, 50)
		require.NoError(t, err)
		for j := 1; j < len(results); j++ {
			assert.GreaterOrEqual(t, results[j-1].Score, results[j].Score)
			assert.GreaterOrEqual(t, results[j].Score, -1.0-1e-9)
			assert.LessOrEqual(t, results[j].Score, 1.0+1e-9)
		}
	}
}

func TestMemoryIndex_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	es := randomEntries(r, 100, 12)
	q := randomEntries(r, 1, 12)[0].Vector

	a, err := store.Build(es)
	require.NoError(t, err)
	b, err := store.Build(es)
	require.NoError(t, err)

	ra, err := a.Search(q, 10)
	require.NoError(t, err)
	rb, err := b.Search(q, 10)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestMemoryIndex_TiesByInsertionOrder(t *testing.T) {
	idx, err := store.Build(entries(
		[]float32{0, 1},
		[]float32{1, 1},
		[]float32{1, 1},
		[]float32{1, 1},
		[]float32{0, 0},
	))
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 1}, 5)
	require.NoError(t, err)

	var got []string
	for _, res := range results {
		got = append(got, res.Passage.Text)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p0", "p4"}, got)
	assert.Zero(t, results[4].Score, "zero vector scores 0")
}

func TestMemoryIndex_ZeroQuery(t *testing.T) {
	idx, err := store.Build(entries([]float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)

	results, err := idx.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p0", results[0].Passage.Text)
	assert.Zero(t, results[0].Score)
	assert.Zero(t, results[1].Score)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	_, err := store.Build(entries([]float32{1, 0}, []float32{1, 0, 0}))
	require.Error(t, err)

	var dm *store.DimensionMismatchError
	require.True(t, stderrors.As(err, &dm))
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Got)
	assert.Equal(t, 1, dm.Position)
	assert.True(t, stderrors.Is(err, errors.ErrRAGDimensionMismatch))

	idx, err := store.Build(entries([]float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)
	for _, q := range [][]float32{{1}, {1, 0, 0}, nil} {
		_, err = idx.Search(q, 1)
		require.Error(t, err)
		require.True(t, stderrors.As(err, &dm))
		assert.Equal(t, -1, dm.Position)
		assert.Equal(t, http.StatusBadRequest, errors.FromError(err).HTTPStatus())
	}
}

func TestMemoryIndex_InvalidK(t *testing.T) {
	idx, err := store.Build(entries([]float32{1, 0}))
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		_, err := idx.Search([]float32{1, 0}, k)
		assert.True(t, stderrors.Is(err, errors.ErrRAGInvalidConfig))
	}
}

func TestMemoryIndex_AssumeNormalized(t *testing.T) {
	s := float32(1 / math.Sqrt2)
	es := entries([]float32{1, 0}, []float32{0, 1}, []float32{s, s})

	idx, err := store.Build(es, store.WithAssumeNormalized(true))
	require.NoError(t, err)
	assert.True(t, idx.AssumeNormalized())

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "p0", results[0].Passage.Text)
	assert.InDelta(t, 1/math.Sqrt2, results[1].Score, 1e-6)
	assert.Equal(t, "p1", results[2].Passage.Text)
}

func TestMemoryIndex_Frozen(t *testing.T) {
	v := []float32{1, 0}
	idx, err := store.Build(entries(v))
	require.NoError(t, err)

	err = idx.Add(store.Entry{Vector: []float32{0, 1}, Passage: passage(1)})
	assert.True(t, stderrors.Is(err, errors.ErrRAGIndexFrozen))
	assert.Equal(t, 1, idx.Len())

	// 修改入参不影响索引
	v[0], v[1] = 0, 1
	results, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestIndexBuilder(t *testing.T) {
	b := store.NewIndexBuilder(store.WithEmbedder("local"))
	require.NoError(t, b.Add([]float32{1, 0}, passage(0)))
	require.NoError(t, b.Add([]float32{0, 1}, passage(1)))

	err := b.Add([]float32{1}, passage(2))
	var dm *store.DimensionMismatchError
	require.True(t, stderrors.As(err, &dm))
	assert.Equal(t, 2, dm.Position)
	assert.Equal(t, 2, b.Len())

	idx, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, "local", idx.Embedder())

	assert.True(t, stderrors.Is(b.Add([]float32{1, 1}, passage(3)), errors.ErrRAGIndexFrozen))
	_, err = b.Build()
	assert.True(t, stderrors.Is(err, errors.ErrRAGIndexFrozen))
}

func TestMemoryIndex_Fingerprint(t *testing.T) {
	es := entries([]float32{1, 0}, []float32{0, 1})
	a, err := store.Build(es, store.WithEmbedder("a"))
	require.NoError(t, err)
	b, err := store.Build(es, store.WithEmbedder("b"))
	require.NoError(t, err)
	c, err := store.Build(es[:1], store.WithEmbedder("a"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	n, err := store.Build(es, store.WithEmbedder("a"), store.WithAssumeNormalized(true))
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), n.Fingerprint())
}

func TestMemoryIndex_NaNScoresRankLast(t *testing.T) {
	nan := float32(math.NaN())
	es := entries(
		[]float32{nan, 0},
		[]float32{1, 0},
		[]float32{nan, 1},
		[]float32{0, 1},
		[]float32{1, 1},
	)

	for run := 0; run < 3; run++ {
		idx, err := store.Build(es)
		require.NoError(t, err)
		results, err := idx.Search([]float32{1, 0}, len(es))
		require.NoError(t, err)

		var order []string
		for _, r := range results {
			order = append(order, r.Passage.Text)
		}
		assert.Equal(t, []string{"p1", "p4", "p3", "p0", "p2"}, order)
		assert.True(t, math.IsNaN(results[3].Score))
	}
}

func TestMemoryIndex_ConcurrentSearch(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	idx, err := store.Build(randomEntries(r, 500, 32))
	require.NoError(t, err)

	queries := randomEntries(r, 16, 32)
	want := make([][]store.SearchResult, len(queries))
	for i, q := range queries {
		want[i], err = idx.Search(q.Vector, 8)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 64; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			i := g % len(queries)
			got, err := idx.Search(queries[i].Vector, 8)
			if err != nil {
				errs <- err
				return
			}
			if len(got) != len(want[i]) || got[0] != want[i][0] {
				errs <- fmt.Errorf("query %d: result differs under concurrency", i)
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func BenchmarkMemoryIndex_Search(b *testing.B) {
	r := rand.New(rand.NewSource(5))
	idx, err := store.Build(randomEntries(r, 10000, 384))
	require.NoError(b, err)
	q := randomEntries(r, 1, 384)[0].Vector

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(q, 6)
	}
}
