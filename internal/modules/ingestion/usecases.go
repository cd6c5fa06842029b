package ingestion

import (
	"context"

	"github.com/yungbote/bloomquiz-backend/internal/modules/ingestion/steps"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/openai"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

// Config is passed through as given. ChunkSize 0 means the default size;
// ChunkOverlap 0 means no overlap.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	Parallelism  int
}

type UsecasesDeps struct {
	Log *logger.Logger

	Embedder openai.Embedder
	Vectors  vectorstore.Store
	// Extract overrides PDF page extraction; nil uses steps.ExtractPages.
	Extract steps.PageExtractor

	Config Config
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	IngestInput  = steps.IngestInput
	IngestResult = steps.IngestResult
	Page         = steps.Page
)

var (
	ErrNoInput = steps.ErrNoInput
)

type ExtractionError = steps.ExtractionError

// Ingest indexes the PDFs named by in.Sources into in.CollectionName.
// report may be nil.
func (u Usecases) Ingest(ctx context.Context, in IngestInput, report func(stage string, pct int, message string)) (IngestResult, error) {
	overlap := u.deps.Config.ChunkOverlap
	return steps.Ingest(ctx, steps.IngestDeps{
		Log:      u.deps.Log,
		Embedder: u.deps.Embedder,
		Vectors:  u.deps.Vectors,
		Extract:  u.deps.Extract,
	}, in, steps.IngestOptions{
		ChunkSize:    u.deps.Config.ChunkSize,
		ChunkOverlap: &overlap,
		EmbedBatch:   u.deps.Config.EmbedBatch,
		Parallelism:  u.deps.Config.Parallelism,
		Report:       report,
	})
}

func (u Usecases) ResolveInputs(sources []string) ([]string, error) {
	return steps.ResolveInputs(u.deps.Log, sources)
}
