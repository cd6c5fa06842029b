package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/openai"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

// ErrNoContextFound means retrieval returned nothing, so no model call was made.
var ErrNoContextFound = errors.New("generate: no context found for query")

const DefaultTopK = 5

const (
	StageRetrieve = "retrieve"
	StagePrompt   = "prompt"
	StageGenerate = "generate"
	StageValidate = "validate"
)

type GenerateDeps struct {
	Log      *logger.Logger
	Embedder openai.Embedder
	Vectors  vectorstore.Store
	LLM      openai.JSONGenerator
}

type GenerateInput struct {
	Query          string
	CollectionName string
	Quota          Quota
	TopK           int

	Report func(stage string, pct int, message string)
}

type GenerateOutput struct {
	Set     MCQSet
	Quota   Quota
	Sources []RetrievedChunk
}

func Generate(ctx context.Context, deps GenerateDeps, in GenerateInput) (GenerateOutput, error) {
	out := GenerateOutput{}
	if deps.Embedder == nil || deps.Vectors == nil || deps.LLM == nil {
		return out, fmt.Errorf("generate: missing deps")
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return out, fmt.Errorf("generate: empty query")
	}
	if err := vectorstore.ValidateCollection(in.CollectionName); err != nil {
		return out, err
	}
	quota := in.Quota
	if quota.Total() == 0 {
		quota = DefaultQuota()
	}
	out.Quota = quota
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("collection", in.CollectionName)
	report := in.Report
	if report == nil {
		report = func(string, int, string) {}
	}

	report(StageRetrieve, 5, "Searching document")
	vecs, err := deps.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return out, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return out, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	hits, err := deps.Vectors.Search(ctx, in.CollectionName, vecs[0], topK)
	if err != nil {
		return out, fmt.Errorf("search %s: %w", in.CollectionName, err)
	}
	if len(hits) == 0 {
		log.Info("generate: no search results", "top_k", topK)
		return out, ErrNoContextFound
	}

	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, RetrievedChunk{Text: h.Text, Source: h.Source, Page: h.Page})
	}
	out.Sources = chunks

	report(StagePrompt, 20, fmt.Sprintf("Building prompt from %d passage(s)", len(chunks)))
	system := BuildSystemPrompt(chunks, quota)

	report(StageGenerate, 30, fmt.Sprintf("Writing %d question(s)", quota.Total()))
	raw, err := deps.LLM.GenerateJSON(ctx, system, query, MCQSchemaName, MCQSchema())
	if err != nil {
		return out, fmt.Errorf("generate questions: %w", err)
	}

	report(StageValidate, 90, "Checking questions")
	set, err := DecodeMCQSet(raw)
	if err != nil {
		return out, err
	}
	if err := ValidateMCQSet(set, quota); err != nil {
		log.Warn("generate: model output rejected", "error", err)
		return out, err
	}
	out.Set = set
	log.Info("generate: questions ready", "count", len(set.MCQs), "quota", quota.String())
	return out, nil
}
