package pgvector

import (
	"context"
	"fmt"
	"time"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

// DocumentChunk is one embedded chunk stored alongside the relational data.
type DocumentChunk struct {
	ID         string     `gorm:"primaryKey;column:id"`
	Collection string     `gorm:"column:collection;not null;index"`
	Source     string     `gorm:"column:source;not null"`
	Page       string     `gorm:"column:page;not null"`
	Text       string     `gorm:"column:text;not null"`
	Embedding  pgv.Vector `gorm:"column:embedding;type:vector;not null"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }

type vectorStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// EnsureExtension installs the vector extension; it must run before the
// chunk table is migrated.
func EnsureExtension(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	return nil
}

func NewVectorStore(db *gorm.DB, log *logger.Logger) (vectorstore.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if name := db.Dialector.Name(); name != "postgres" {
		return nil, fmt.Errorf("pgvector requires postgres, got %s", name)
	}
	log.Info("pgvector vector store selected", "provider", "pgvector")
	return &vectorStore{db: db, log: log.With("service", "PgVectorStore")}, nil
}

func (s *vectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	rows, err := toRows(collection, points)
	if err != nil || len(rows) == 0 {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"collection", "source", "page", "text", "embedding"}),
		}).
		CreateInBatches(rows, 200).Error
}

func (s *vectorStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("pgvector search: query vector required")
	}
	if topK <= 0 {
		topK = 5
	}
	query := pgv.NewVector(vector)

	var rows []struct {
		DocumentChunk
		Distance float64 `gorm:"column:distance"`
	}
	err := s.db.WithContext(ctx).
		Model(&DocumentChunk{}).
		Select("id, collection, source, page, text, embedding <=> ? AS distance", query).
		Where("collection = ?", collection).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{query}, WithoutParentheses: true}}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, vectorstore.Match{
			ID:     r.ID,
			Score:  1 - r.Distance,
			Text:   r.Text,
			Source: r.Source,
			Page:   r.Page,
		})
	}
	return out, nil
}

func toRows(collection string, points []vectorstore.Point) ([]DocumentChunk, error) {
	if err := vectorstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	rows := make([]DocumentChunk, 0, len(points))
	dim := 0
	for _, p := range points {
		if p.ID == "" || len(p.Vector) == 0 {
			return nil, fmt.Errorf("pgvector upsert: point id and vector are required")
		}
		if dim == 0 {
			dim = len(p.Vector)
		} else if len(p.Vector) != dim {
			return nil, fmt.Errorf("pgvector upsert: point %q dimension mismatch: expected=%d got=%d", p.ID, dim, len(p.Vector))
		}
		rows = append(rows, DocumentChunk{
			ID:         p.ID,
			Collection: collection,
			Source:     p.Source,
			Page:       p.Page,
			Text:       p.Text,
			Embedding:  pgv.NewVector(p.Vector),
		})
	}
	return rows, nil
}
