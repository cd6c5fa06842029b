package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store using cosine similarity.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]Point{}}
}

func (m *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.collections[collection]
	if col == nil {
		col = map[string]Point{}
		m.collections[collection] = col
	}
	for _, p := range points {
		if p.ID == "" || len(p.Vector) == 0 {
			return fmt.Errorf("memory store: point id and vector are required")
		}
		cp := p
		cp.Vector = append([]float32(nil), p.Vector...)
		col[p.ID] = cp
	}
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Match, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col := m.collections[collection]
	out := make([]Match, 0, len(col))
	for _, p := range col {
		out = append(out, Match{
			ID:     p.ID,
			Score:  cosine(vector, p.Vector),
			Text:   p.Text,
			Source: p.Source,
			Page:   p.Page,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Len reports the number of points in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
