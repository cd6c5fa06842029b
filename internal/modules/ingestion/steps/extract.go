package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Page is the text of one PDF page with its provenance.
type Page struct {
	Source string
	Label  string
	Text   string
}

// ExtractionError reports a single file that could not be read. It never
// aborts a batch.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageExtractor returns the non-empty pages of one PDF.
type PageExtractor func(ctx context.Context, path string) ([]Page, error)

// ExtractPages reads every page of the PDF at path. Page labels are 1-based.
func ExtractPages(ctx context.Context, path string) (pages []Page, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ExtractionError{Path: path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	n := r.NumPage()
	out := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			return nil, &ExtractionError{Path: path, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		txt = collapseWhitespace(txt)
		if txt == "" {
			continue
		}
		out = append(out, Page{Source: path, Label: strconv.Itoa(i), Text: txt})
	}
	return out, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
