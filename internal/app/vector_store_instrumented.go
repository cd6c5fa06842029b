package app

import (
	"context"
	"time"

	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type instrumentedVectorStore struct {
	provider string
	inner    vectorstore.Store
	metrics  *observability.Metrics
}

func instrumentVectorStore(provider string, inner vectorstore.Store) vectorstore.Store {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		provider: provider,
		inner:    inner,
		metrics:  observability.Current(),
	}
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, collection, points)
	s.observe("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorstore.Match, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, collection, vector, topK)
	s.observe("search", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) observe(operation string, err error, dur time.Duration) {
	if s == nil || s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveVectorStoreOperation(s.provider, operation, status, dur)
}
