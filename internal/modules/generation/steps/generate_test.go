package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeLLM struct {
	calls  int
	system string
	user   string
	schema map[string]any
	resp   []byte
	err    error
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) ([]byte, error) {
	f.calls++
	f.system = system
	f.user = user
	f.schema = schema
	return f.resp, f.err
}

func makeSet(quota Quota) MCQSet {
	var set MCQSet
	n := 0
	for _, l := range Levels {
		for i := 0; i < quota[l]; i++ {
			n++
			opts := []string{"A) alpha", "B) beta", "C) gamma", "D) delta"}
			set.MCQs = append(set.MCQs, MCQ{
				QuestionNo:    fmt.Sprint(n),
				BloomLevel:    string(l),
				Question:      fmt.Sprintf("Question %d?", n),
				AnswerOptions: opts,
				CorrectAnswer: opts[n%4],
				Explanation:   "Because.",
			})
		}
	}
	return set
}

func seededStore(t *testing.T, collection string) vectorstore.Store {
	t.Helper()
	s := vectorstore.NewMemoryStore()
	err := s.Upsert(context.Background(), collection, []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Text: "Mitochondria produce ATP.", Source: "/docs/bio.pdf", Page: "4"},
		{ID: "p2", Vector: []float32{0, 1, 0}, Text: "Ribosomes build proteins.", Source: "/docs/bio.pdf", Page: "7"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestGenerate_EmptyCollectionSkipsModel(t *testing.T) {
	llm := &fakeLLM{}
	_, err := Generate(context.Background(), GenerateDeps{
		Embedder: fakeEmbedder{},
		Vectors:  vectorstore.NewMemoryStore(),
		LLM:      llm,
	}, GenerateInput{Query: "cells", CollectionName: "doc_missing"})
	if !errors.Is(err, ErrNoContextFound) {
		t.Fatalf("err=%v, want ErrNoContextFound", err)
	}
	if llm.calls != 0 {
		t.Fatalf("model called %d times", llm.calls)
	}
}

func TestGenerate_ValidResponse(t *testing.T) {
	quota, _ := ParseQuota("2 remember, 1 analyze")
	raw, _ := json.Marshal(makeSet(quota))
	llm := &fakeLLM{resp: raw}

	out, err := Generate(context.Background(), GenerateDeps{
		Embedder: fakeEmbedder{},
		Vectors:  seededStore(t, "doc_bio"),
		LLM:      llm,
	}, GenerateInput{Query: "cell biology", CollectionName: "doc_bio", Quota: quota, TopK: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out.Set.MCQs) != 3 {
		t.Fatalf("got %d questions", len(out.Set.MCQs))
	}
	if len(out.Sources) != 1 || out.Sources[0].Page != "4" {
		t.Fatalf("sources=%+v", out.Sources)
	}
	if llm.user != "cell biology" {
		t.Fatalf("user message=%q", llm.user)
	}
	if !strings.Contains(llm.system, "Mitochondria produce ATP.") || strings.Contains(llm.system, "Ribosomes") {
		t.Fatalf("system prompt should hold only the top hit:\n%s", llm.system)
	}
	if !strings.Contains(llm.system, "2 remember, 1 analyze") {
		t.Fatalf("system prompt missing quota")
	}
	if llm.schema == nil {
		t.Fatalf("schema not sent")
	}
}

func TestGenerate_DefaultsQuotaWhenEmpty(t *testing.T) {
	raw, _ := json.Marshal(makeSet(DefaultQuota()))
	llm := &fakeLLM{resp: raw}
	out, err := Generate(context.Background(), GenerateDeps{
		Embedder: fakeEmbedder{},
		Vectors:  seededStore(t, "doc_bio"),
		LLM:      llm,
	}, GenerateInput{Query: "cells", CollectionName: "doc_bio"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Quota.String() != DefaultQuotaSpec {
		t.Fatalf("quota=%q", out.Quota.String())
	}
}

func TestGenerate_SchemaViolationIsError(t *testing.T) {
	quota, _ := ParseQuota("2 remember")
	cases := map[string][]byte{
		"not json":      []byte("sure! here are your questions"),
		"wrong count":   mustJSON(t, makeSet(Quota{Remember: 3})),
		"wrong level":   mustJSON(t, makeSet(Quota{Remember: 1, Create: 1})),
		"three options": mustJSON(t, func() MCQSet { s := makeSet(quota); s.MCQs[0].AnswerOptions = s.MCQs[0].AnswerOptions[:3]; return s }()),
		"foreign answer": mustJSON(t, func() MCQSet {
			s := makeSet(quota)
			s.MCQs[1].CorrectAnswer = "E) epsilon"
			return s
		}()),
	}
	for name, raw := range cases {
		llm := &fakeLLM{resp: raw}
		_, err := Generate(context.Background(), GenerateDeps{
			Embedder: fakeEmbedder{},
			Vectors:  seededStore(t, "doc_bio"),
			LLM:      llm,
		}, GenerateInput{Query: "cells", CollectionName: "doc_bio", Quota: quota})
		var se *GenerationSchemaError
		if !errors.As(err, &se) {
			t.Fatalf("%s: err=%v, want *GenerationSchemaError", name, err)
		}
	}
}

func TestGenerate_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("upstream 503")
	_, err := Generate(context.Background(), GenerateDeps{
		Embedder: fakeEmbedder{},
		Vectors:  seededStore(t, "doc_bio"),
		LLM:      &fakeLLM{err: boom},
	}, GenerateInput{Query: "cells", CollectionName: "doc_bio"})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildSystemPrompt_Blocks(t *testing.T) {
	quota, _ := ParseQuota("1 apply")
	p := BuildSystemPrompt([]RetrievedChunk{
		{Text: "First {{requirements}} text", Source: "a.pdf", Page: "1"},
		{Text: "Second text", Source: "b.pdf", Page: "9"},
	}, quota)

	wantBlock := "--- ADMIN METADATA (DO NOT MENTION IN OUTPUT) ---\nSource: b.pdf\nPage: 9\n--- EDUCATIONAL CONTENT ---\nSecond text\n"
	if !strings.Contains(p, wantBlock) {
		t.Fatalf("missing context block:\n%s", p)
	}
	if !strings.Contains(p, "First {{requirements}} text\n\n\n--- ADMIN METADATA") {
		t.Fatalf("blocks should be joined by a blank line and left unsubstituted:\n%s", p)
	}
	for _, rule := range []string{"1. **STRICT BLIND EXAM MODE**", "2. **INTERNAL VERIFICATION ONLY**", "3. **EXPLANATION FORMAT**", "4. **BLOOM'S TAXONOMY**: 1 apply"} {
		if !strings.Contains(p, rule) {
			t.Fatalf("missing rule %q", rule)
		}
	}
	if !strings.Contains(p, "exactly 1 questions") {
		t.Fatalf("missing total")
	}
	if strings.Index(p, "### PROVIDED DATA (FOR YOUR EYES ONLY):") > strings.Index(p, "--- ADMIN METADATA") {
		t.Fatalf("data heading must precede context")
	}
}

func TestMCQ_JSONKeepsLegacyExplanationKey(t *testing.T) {
	b, err := json.Marshal(MCQ{QuestionNo: "1", Explanation: "why"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"explanation":"why"`) || !strings.Contains(string(b), `"explaination":"why"`) {
		t.Fatalf("json=%s", b)
	}
	var m MCQ
	if err := json.Unmarshal([]byte(`{"question_no":"2","explaination":"old"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Explanation != "old" || m.QuestionNo != "2" {
		t.Fatalf("decoded %+v", m)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
