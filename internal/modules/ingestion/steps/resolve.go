package steps

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

// ErrNoInput means no readable PDF was found among the requested sources.
var ErrNoInput = errors.New("ingest: no PDF inputs resolved")

const pdfExt = ".pdf"

// ResolveInputs expands files, directories (non-recursive) and glob patterns
// into an ordered, de-duplicated list of absolute PDF paths. Entries that do
// not resolve to a PDF are logged and skipped.
func ResolveInputs(log *logger.Logger, sources []string) ([]string, error) {
	if log == nil {
		log = logger.NewNop()
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(sources))
	add := func(p string) {
		abs := absPath(p)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	for _, raw := range sources {
		src := expandHome(strings.TrimSpace(raw))
		if src == "" {
			continue
		}

		if hasGlobMeta(src) {
			matches, err := filepath.Glob(src)
			if err != nil {
				log.Warn("ingest: bad glob pattern", "pattern", src, "error", err)
				continue
			}
			sort.Strings(matches)
			n := 0
			for _, m := range matches {
				if isPDFFile(m) {
					add(m)
					n++
				}
			}
			if n == 0 {
				log.Warn("ingest: glob matched no PDFs", "pattern", src)
			}
			continue
		}

		st, err := os.Stat(src)
		if err != nil {
			log.Warn("ingest: source not found", "path", src)
			continue
		}
		if st.IsDir() {
			entries, err := os.ReadDir(src)
			if err != nil {
				log.Warn("ingest: read dir failed", "path", src, "error", err)
				continue
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() || !hasPDFExt(e.Name()) {
					continue
				}
				names = append(names, e.Name())
			}
			sort.Strings(names)
			if len(names) == 0 {
				log.Warn("ingest: directory has no PDFs", "path", src)
			}
			for _, name := range names {
				add(filepath.Join(src, name))
			}
			continue
		}
		if !hasPDFExt(src) {
			log.Warn("ingest: not a PDF, skipping", "path", src)
			continue
		}
		add(src)
	}

	if len(out) == 0 {
		return nil, ErrNoInput
	}
	return out, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func hasPDFExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), pdfExt)
}

func isPDFFile(p string) bool {
	if !hasPDFExt(p) {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
