package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type failingSearchStore struct {
	*vectorstore.MemoryStore
	err error
}

func (s failingSearchStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorstore.Match, error) {
	return nil, s.err
}

func TestInstrumentVectorStorePassThrough(t *testing.T) {
	inner := vectorstore.NewMemoryStore()
	vs := instrumentVectorStore("qdrant", inner)
	if vs == nil {
		t.Fatalf("instrumentVectorStore: expected non-nil wrapper")
	}

	err := vs.Upsert(context.Background(), "doc_a", []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0}, Text: "photosynthesis", Source: "bio.pdf", Page: "1"},
		{ID: "p2", Vector: []float32{0, 1}, Text: "mitosis", Source: "bio.pdf", Page: "2"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if inner.Len("doc_a") != 2 {
		t.Fatalf("inner store has %d points", inner.Len("doc_a"))
	}
	matches, err := vs.Search(context.Background(), "doc_a", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "p1" {
		t.Fatalf("matches=%+v", matches)
	}
}

func TestInstrumentVectorStoreErrorPassThrough(t *testing.T) {
	want := errors.New("search failed")
	vs := instrumentVectorStore("pgvector", failingSearchStore{MemoryStore: vectorstore.NewMemoryStore(), err: want})
	if _, err := vs.Search(context.Background(), "doc_a", []float32{1}, 3); !errors.Is(err, want) {
		t.Fatalf("Search error=%v want %v", err, want)
	}
}

func TestInstrumentVectorStoreNilInner(t *testing.T) {
	if vs := instrumentVectorStore("qdrant", nil); vs != nil {
		t.Fatalf("expected nil wrapper for nil inner store")
	}
}
