package generate_assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	"github.com/yungbote/bloomquiz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	jobrt "github.com/yungbote/bloomquiz-backend/internal/jobs/runtime"
	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type scriptedLLM struct {
	calls int
	resp  func(quota generation.Quota) []byte
	quota generation.Quota
}

func (s *scriptedLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) ([]byte, error) {
	s.calls++
	return s.resp(s.quota), nil
}

func validSet(quota generation.Quota) []byte {
	var set generation.MCQSet
	n := 0
	for _, l := range []generation.Level{"remember", "understand", "apply", "analyze", "evaluate", "create"} {
		for i := 0; i < quota[l]; i++ {
			n++
			opts := []string{"A) one", "B) two", "C) three", "D) four"}
			set.MCQs = append(set.MCQs, generation.MCQ{
				QuestionNo:    fmt.Sprint(n),
				BloomLevel:    string(l),
				Question:      "Which?",
				AnswerOptions: opts,
				CorrectAnswer: opts[0],
				Explanation:   "See page.",
			})
		}
	}
	b, _ := json.Marshal(set)
	return b
}

type harness struct {
	jobs        repos.JobRunRepo
	assessments repos.AssessmentRepo
	vectors     *vectorstore.MemoryStore
	llm         *scriptedLLM
	p           *Pipeline
	owner       *types.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testutil.DB(t)
	log := testutil.Logger(t)
	vectors := vectorstore.NewMemoryStore()
	if err := vectors.Upsert(context.Background(), "doc_bio", []vectorstore.Point{
		{ID: "1", Vector: []float32{1, 0}, Text: "Cells are the unit of life.", Source: "bio.pdf", Page: "3"},
	}); err != nil {
		t.Fatalf("seed vectors: %v", err)
	}
	llm := &scriptedLLM{resp: validSet}
	assessments := repos.NewAssessmentRepo(conn, log)
	uc := generation.New(generation.UsecasesDeps{Log: log, Embedder: unitEmbedder{}, Vectors: vectors, LLM: llm, DefaultTopK: 5})
	return &harness{
		jobs:        repos.NewJobRunRepo(conn, log),
		assessments: assessments,
		vectors:     vectors,
		llm:         llm,
		p:           New(log, assessments, uc),
		owner:       testutil.SeedUser(t, context.Background(), conn, "owner@example.com"),
	}
}

func (h *harness) run(t *testing.T, owner *uint, payload map[string]any) *types.JobRun {
	t.Helper()
	ctx := context.Background()
	b, _ := json.Marshal(payload)
	job := &types.JobRun{JobType: h.p.Type(), OwnerUserID: owner, TimeoutSeconds: 60, Payload: datatypes.JSON(b)}
	if _, err := h.jobs.Create(dbctx.Context{Ctx: ctx}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create: %v", err)
	}
	claimed, err := h.jobs.ClaimNextQueued(dbctx.Context{Ctx: ctx})
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := h.p.Run(jobrt.NewContext(ctx, nil, claimed, h.jobs, nil)); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	return claimed
}

func TestGenerateAssessment_PersistsForOwner(t *testing.T) {
	h := newHarness(t)
	h.llm.quota, _ = generation.ParseQuota("2 remember, 1 apply")

	job := h.run(t, &h.owner.ID, map[string]any{
		"query":               "cells",
		"collection_name":     "doc_bio",
		"blooms_requirements": "2 remember, 1 apply",
	})
	if job.Status != types.JobStatusFinished {
		t.Fatalf("status=%s stage=%s error=%s", job.Status, job.Stage, job.Error)
	}
	var res struct {
		MCQs         []generation.MCQ `json:"mcqs"`
		AssessmentID uint             `json:"assessment_id"`
		BloomFactors map[string]int   `json:"bloom_factors"`
	}
	if err := json.Unmarshal(job.Result, &res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(res.MCQs) != 3 || res.AssessmentID == 0 || res.BloomFactors["remember"] != 2 {
		t.Fatalf("result=%+v", res)
	}

	row, err := h.assessments.GetByID(dbctx.Context{Ctx: context.Background()}, res.AssessmentID)
	if err != nil || row == nil {
		t.Fatalf("assessment not saved: %v", err)
	}
	if row.UserID != h.owner.ID || row.ChapterName != "cells" {
		t.Fatalf("row=%+v", row)
	}
}

func TestGenerateAssessment_AnonymousDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	h.llm.quota = generation.DefaultQuota()
	job := h.run(t, nil, map[string]any{"query": "cells", "collection_name": "doc_bio"})
	if job.Status != types.JobStatusFinished {
		t.Fatalf("status=%s error=%s", job.Status, job.Error)
	}
	var res map[string]any
	_ = json.Unmarshal(job.Result, &res)
	if _, ok := res["assessment_id"]; ok {
		t.Fatalf("anonymous run persisted an assessment")
	}
	if res["blooms_requirements"] != generation.DefaultQuotaSpec {
		t.Fatalf("blooms_requirements=%v", res["blooms_requirements"])
	}
}

func TestGenerateAssessment_NoContextSucceedsWithoutModel(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, &h.owner.ID, map[string]any{"query": "cells", "collection_name": "doc_unknown"})
	if job.Status != types.JobStatusFinished || job.Stage != "no_context" {
		t.Fatalf("status=%s stage=%s", job.Status, job.Stage)
	}
	var res map[string]any
	_ = json.Unmarshal(job.Result, &res)
	if res["no_context"] != true || res["mcqs"] != nil {
		t.Fatalf("result=%v", res)
	}
	if h.llm.calls != 0 {
		t.Fatalf("model called %d times", h.llm.calls)
	}
	rows, _ := h.assessments.ListByUser(dbctx.Context{Ctx: context.Background()}, h.owner.ID, 10, 0)
	if len(rows) != 0 {
		t.Fatalf("no-context run persisted %d assessments", len(rows))
	}
}

func TestGenerateAssessment_SchemaViolationFails(t *testing.T) {
	h := newHarness(t)
	h.llm.resp = func(generation.Quota) []byte { return []byte(`{"mcqs":[]}`) }
	job := h.run(t, &h.owner.ID, map[string]any{"query": "cells", "collection_name": "doc_bio"})
	if job.Status != types.JobStatusFailed || job.Stage != "validate" {
		t.Fatalf("status=%s stage=%s", job.Status, job.Stage)
	}
	rows, _ := h.assessments.ListByUser(dbctx.Context{Ctx: context.Background()}, h.owner.ID, 10, 0)
	if len(rows) != 0 {
		t.Fatalf("failed run persisted an assessment")
	}
}

func TestGenerateAssessment_BadPayload(t *testing.T) {
	h := newHarness(t)
	for _, payload := range []map[string]any{
		{"collection_name": "doc_bio"},
		{"query": "q", "collection_name": "doc_bio", "blooms_requirements": "7 dream"},
	} {
		job := h.run(t, nil, payload)
		if job.Status != types.JobStatusFailed || job.Stage != "validate" {
			t.Fatalf("payload %v: status=%s stage=%s", payload, job.Status, job.Stage)
		}
	}
}
