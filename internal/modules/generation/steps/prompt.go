package steps

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompt.yaml
var promptYAML []byte

type promptRule struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type promptTemplate struct {
	Preamble     string       `yaml:"preamble"`
	RulesHeading string       `yaml:"rules_heading"`
	Rules        []promptRule `yaml:"rules"`
	DataHeading  string       `yaml:"data_heading"`
}

var systemPrompt = mustLoadPromptTemplate(promptYAML)

func mustLoadPromptTemplate(raw []byte) promptTemplate {
	var t promptTemplate
	if err := yaml.Unmarshal(raw, &t); err != nil {
		panic(fmt.Sprintf("generation: bad prompt template: %v", err))
	}
	if len(t.Rules) == 0 || strings.TrimSpace(t.DataHeading) == "" {
		panic("generation: prompt template missing rules or data heading")
	}
	return t
}

// RetrievedChunk is a search hit handed to the prompt builder.
type RetrievedChunk struct {
	Text   string
	Source string
	Page   string
}

// ContextBlock renders one chunk with provenance the model must not repeat.
func ContextBlock(c RetrievedChunk) string {
	return "--- ADMIN METADATA (DO NOT MENTION IN OUTPUT) ---\n" +
		"Source: " + c.Source + "\n" +
		"Page: " + c.Page + "\n" +
		"--- EDUCATIONAL CONTENT ---\n" +
		c.Text + "\n"
}

// BuildSystemPrompt assembles the exam-writer instructions followed by the
// retrieved chunks. Chunk text is appended after placeholder substitution so
// document content is never interpreted as template markup.
func BuildSystemPrompt(chunks []RetrievedChunk, quota Quota) string {
	r := strings.NewReplacer(
		"{{requirements}}", quota.String(),
		"{{total}}", strconv.Itoa(quota.Total()),
		"{{levels}}", strings.Join(levelNames(), ", "),
	)

	var b strings.Builder
	b.WriteString(strings.TrimRight(systemPrompt.Preamble, "\n"))
	b.WriteString("\n\n")
	b.WriteString(systemPrompt.RulesHeading)
	b.WriteString("\n")
	for i, rule := range systemPrompt.Rules {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, rule.Title, strings.TrimRight(r.Replace(rule.Body), "\n"))
	}
	b.WriteString("\n")
	b.WriteString(systemPrompt.DataHeading)
	b.WriteString("\n")

	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, ContextBlock(c))
	}
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String()
}
