package index_test

import (
	"sync"
	"testing"

	"github.com/phrazzld/keepsake-api/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndexUpsertAndSearch(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.UpsertVector("asset:a", []float32{1, 0, 0})
	ix.UpsertVector("asset:b", []float32{0, 1, 0})
	ix.UpsertVector("face:c", []float32{1, 0.1, 0})

	t.Run("nearest first", func(t *testing.T) {
		matches := ix.Search([]float32{1, 0, 0}, 2, "asset:")
		require.Len(t, matches, 2)
		assert.Equal(t, "asset:a", matches[0].Key)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	})

	t.Run("prefix filter", func(t *testing.T) {
		matches := ix.Search([]float32{1, 0, 0}, 0, "face:")
		require.Len(t, matches, 1)
		assert.Equal(t, "face:c", matches[0].Key)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		ix.UpsertVector("asset:a", []float32{0, 0, 1})
		vec, ok := ix.Vector("asset:a")
		require.True(t, ok)
		assert.Equal(t, []float32{0, 0, 1}, vec)
		assert.Equal(t, 3, ix.Len())
	})
}

func TestVectorIndexKeys(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.UpsertVector("face:b", []float32{1})
	ix.UpsertVector("face:a", []float32{1})
	ix.UpsertVector("asset:z", []float32{1})

	assert.Equal(t, []string{"face:a", "face:b"}, ix.Keys("face:"))
}

func TestVectorIndexCaptionsAndPersons(t *testing.T) {
	t.Parallel()

	ix := index.New()

	ix.UpsertCaption("asset:a", "a dog on a beach")
	caption, ok := ix.Caption("asset:a")
	require.True(t, ok)
	assert.Equal(t, "a dog on a beach", caption)

	_, ok = ix.Caption("asset:missing")
	assert.False(t, ok)

	ix.AssignPerson("face:a", "person:1")
	personID, ok := ix.Person("face:a")
	require.True(t, ok)
	assert.Equal(t, "person:1", personID)
}

func TestCosine(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, index.Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, index.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, index.Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, index.Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestVectorIndexConcurrentAccess(t *testing.T) {
	t.Parallel()

	ix := index.New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				ix.UpsertVector("asset:"+key, []float32{float32(j), 1})
				ix.Search([]float32{1, 1}, 3, "")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, ix.Len())
}
