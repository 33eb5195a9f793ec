// Package index provides the shared in-memory vector index that derived-data
// handlers write to and the search API reads from. The index is passed as an
// explicit dependency rather than a module-level global so tests can use
// fresh instances without cross-test leakage.
package index

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Match is a single search result: an indexed key and its cosine similarity
// to the query vector.
type Match struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// VectorIndex is a mutex-guarded map of keys to embedding vectors, with
// side tables for captions and person assignments. All operations are safe
// for concurrent use by multiple workers.
//
// Keys are namespaced by convention: "asset:<uuid>" for whole-media
// embeddings, "face:<uuid>" for face embeddings.
type VectorIndex struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	captions map[string]string
	persons  map[string]string
}

// New creates an empty VectorIndex.
func New() *VectorIndex {
	return &VectorIndex{
		vectors:  make(map[string][]float32),
		captions: make(map[string]string),
		persons:  make(map[string]string),
	}
}

// UpsertVector stores or replaces the vector for a key. Upsert semantics are
// what make re-running an embed task for the same asset idempotent.
func (ix *VectorIndex) UpsertVector(key string, vec []float32) {
	cp := append([]float32(nil), vec...)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[key] = cp
}

// Vector returns the stored vector for a key.
func (ix *VectorIndex) Vector(key string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	vec, ok := ix.vectors[key]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

// Keys returns all indexed keys with the given prefix, sorted.
func (ix *VectorIndex) Keys(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var keys []string
	for k := range ix.vectors {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of indexed vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// UpsertCaption stores or replaces the caption for a key.
func (ix *VectorIndex) UpsertCaption(key, caption string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.captions[key] = caption
}

// Caption returns the stored caption for a key.
func (ix *VectorIndex) Caption(key string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	caption, ok := ix.captions[key]
	return caption, ok
}

// AssignPerson records which person cluster a face key belongs to.
func (ix *VectorIndex) AssignPerson(faceKey, personID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.persons[faceKey] = personID
}

// Person returns the person cluster assigned to a face key.
func (ix *VectorIndex) Person(faceKey string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	personID, ok := ix.persons[faceKey]
	return personID, ok
}

// Search returns the limit nearest keys (by cosine similarity) to the query
// vector, restricted to keys with the given prefix. An empty prefix searches
// everything.
func (ix *VectorIndex) Search(query []float32, limit int, prefix string) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var matches []Match
	for key, vec := range ix.vectors {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		matches = append(matches, Match{Key: key, Score: Cosine(query, vec)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// or zero vectors score zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
