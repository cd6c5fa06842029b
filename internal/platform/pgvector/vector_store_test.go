package pgvector

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

func TestToRowsValidation(t *testing.T) {
	if _, err := toRows("bad name", nil); err == nil {
		t.Fatalf("expected invalid collection error")
	}
	if _, err := toRows("doc_1", []vectorstore.Point{{ID: "a"}}); err == nil {
		t.Fatalf("expected missing vector error")
	}
	if _, err := toRows("doc_1", []vectorstore.Point{
		{ID: "a", Vector: []float32{1, 2}},
		{ID: "b", Vector: []float32{1}},
	}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}

	rows, err := toRows("doc_1", []vectorstore.Point{{ID: "a", Vector: []float32{1, 2}, Text: "t", Source: "s", Page: "4"}})
	if err != nil || len(rows) != 1 {
		t.Fatalf("toRows: rows=%v err=%v", rows, err)
	}
	if rows[0].Collection != "doc_1" || rows[0].Page != "4" || len(rows[0].Embedding.Slice()) != 2 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestNewVectorStoreRequiresPostgres(t *testing.T) {
	if _, err := NewVectorStore(nil, logger.NewNop()); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestVectorStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run pgvector integration tests")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := EnsureExtension(db); err != nil {
		t.Fatalf("EnsureExtension: %v", err)
	}
	if err := db.AutoMigrate(&DocumentChunk{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	store, err := NewVectorStore(db, logger.NewNop())
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	collection := "doc_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	t.Cleanup(func() {
		db.Where("collection = ?", collection).Delete(&DocumentChunk{})
	})

	ctx := context.Background()
	near := vectorstore.PointID(collection, "a.pdf", "1", 0)
	far := vectorstore.PointID(collection, "a.pdf", "2", 0)
	if err := store.Upsert(ctx, collection, []vectorstore.Point{
		{ID: near, Vector: []float32{1, 0, 0}, Text: "alpha", Source: "a.pdf", Page: "1"},
		{ID: far, Vector: []float32{0, 1, 0}, Text: "beta", Source: "a.pdf", Page: "2"},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Re-upsert is idempotent.
	if err := store.Upsert(ctx, collection, []vectorstore.Point{
		{ID: near, Vector: []float32{1, 0, 0}, Text: "alpha v2", Source: "a.pdf", Page: "1"},
	}); err != nil {
		t.Fatalf("Upsert(again): %v", err)
	}

	matches, err := store.Search(ctx, collection, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != near || matches[0].Text != "alpha v2" {
		t.Fatalf("Search: unexpected %+v", matches)
	}
	if matches[0].Score < 0.99 {
		t.Fatalf("expected near-identical score, got %f", matches[0].Score)
	}

	empty, err := store.Search(ctx, "doc_nothing_here", []float32{1, 0, 0}, 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown collection: %v %v", empty, err)
	}
}
