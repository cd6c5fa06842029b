package generation

import (
	"context"

	"github.com/yungbote/bloomquiz-backend/internal/modules/generation/steps"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/openai"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Embedder openai.Embedder
	Vectors  vectorstore.Store
	LLM      openai.JSONGenerator

	DefaultTopK int
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
	Level          = steps.Level
	Quota          = steps.Quota
	QuotaError     = steps.QuotaError
	MCQ            = steps.MCQ
	MCQSet         = steps.MCQSet
	RetrievedChunk = steps.RetrievedChunk

	GenerateInput  = steps.GenerateInput
	GenerateOutput = steps.GenerateOutput

	GenerationSchemaError = steps.GenerationSchemaError
)

var ErrNoContextFound = steps.ErrNoContextFound

const DefaultQuotaSpec = steps.DefaultQuotaSpec

func ParseQuota(spec string) (Quota, error) { return steps.ParseQuota(spec) }

func DefaultQuota() Quota { return steps.DefaultQuota() }

func (u Usecases) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if in.TopK <= 0 {
		in.TopK = u.deps.DefaultTopK
	}
	return steps.Generate(ctx, steps.GenerateDeps{
		Log:      u.deps.Log,
		Embedder: u.deps.Embedder,
		Vectors:  u.deps.Vectors,
		LLM:      u.deps.LLM,
	}, in)
}
