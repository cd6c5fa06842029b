package steps

import (
	"encoding/json"
	"fmt"
	"strings"
)

const MCQSchemaName = "mcq_set"

type MCQ struct {
	QuestionNo    string   `json:"question_no"`
	BloomLevel    string   `json:"bloom_level"`
	Question      string   `json:"question"`
	AnswerOptions []string `json:"answer_options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// MarshalJSON also writes "explaination", the key the web client reads.
func (m MCQ) MarshalJSON() ([]byte, error) {
	type plain MCQ
	return json.Marshal(struct {
		plain
		Legacy string `json:"explaination,omitempty"`
	}{plain: plain(m), Legacy: m.Explanation})
}

func (m *MCQ) UnmarshalJSON(b []byte) error {
	type plain MCQ
	var aux struct {
		plain
		Legacy string `json:"explaination"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*m = MCQ(aux.plain)
	if m.Explanation == "" {
		m.Explanation = aux.Legacy
	}
	return nil
}

type MCQSet struct {
	MCQs []MCQ `json:"mcqs"`
}

// MCQSchema is the strict JSON schema the model must answer with.
func MCQSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"mcqs"},
		"properties": map[string]any{
			"mcqs": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"question_no", "bloom_level", "question", "answer_options", "correct_answer", "explanation"},
					"properties": map[string]any{
						"question_no": str,
						"bloom_level": map[string]any{"type": "string", "enum": levelNames()},
						"question":    str,
						"answer_options": map[string]any{
							"type":     "array",
							"items":    str,
							"minItems": 4,
							"maxItems": 4,
						},
						"correct_answer": str,
						"explanation":    str,
					},
				},
			},
		},
	}
}

// GenerationSchemaError lists every way a model response broke the contract.
type GenerationSchemaError struct {
	Violations []string
}

func (e *GenerationSchemaError) Error() string {
	return "generated questions failed validation: " + strings.Join(e.Violations, "; ")
}

// DecodeMCQSet parses raw model output without validating it.
func DecodeMCQSet(raw []byte) (MCQSet, error) {
	var set MCQSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return MCQSet{}, &GenerationSchemaError{Violations: []string{fmt.Sprintf("response is not an mcq set: %v", err)}}
	}
	return set, nil
}

// ValidateMCQSet checks option shape, answer membership and per-level counts
// against quota.
func ValidateMCQSet(set MCQSet, quota Quota) error {
	var v []string
	counts := map[Level]int{}

	if len(set.MCQs) == 0 {
		v = append(v, "no questions")
	}
	for i, q := range set.MCQs {
		label := q.QuestionNo
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if strings.TrimSpace(q.Question) == "" {
			v = append(v, fmt.Sprintf("question %s: empty text", label))
		}
		if len(q.AnswerOptions) != 4 {
			v = append(v, fmt.Sprintf("question %s: %d options, want 4", label, len(q.AnswerOptions)))
		}
		member := false
		for j, opt := range q.AnswerOptions {
			if strings.TrimSpace(opt) == "" {
				v = append(v, fmt.Sprintf("question %s: option %d is empty", label, j+1))
			}
			if opt == q.CorrectAnswer {
				member = true
			}
		}
		if !member {
			v = append(v, fmt.Sprintf("question %s: correct_answer %q is not one of its options", label, q.CorrectAnswer))
		}
		lvl, ok := ParseLevel(q.BloomLevel)
		if !ok {
			v = append(v, fmt.Sprintf("question %s: unknown bloom_level %q", label, q.BloomLevel))
			continue
		}
		counts[lvl]++
	}

	for _, l := range Levels {
		if got, want := counts[l], quota[l]; got != want {
			v = append(v, fmt.Sprintf("level %s: %d questions, want %d", l, got, want))
		}
	}
	if got, want := len(set.MCQs), quota.Total(); got != want {
		v = append(v, fmt.Sprintf("total: %d questions, want %d", got, want))
	}

	if len(v) > 0 {
		return &GenerationSchemaError{Violations: v}
	}
	return nil
}
