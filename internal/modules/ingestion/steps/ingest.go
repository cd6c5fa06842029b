package steps

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/openai"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

const (
	StageResolve = "resolve"
	StageExtract = "extract"
	StageSplit   = "split"
	StageEmbed   = "embed"
	StageStore   = "store"
)

const (
	DefaultEmbedBatch  = 64
	DefaultParallelism = 4
)

type IngestDeps struct {
	Log      *logger.Logger
	Embedder openai.Embedder
	Vectors  vectorstore.Store
	// Extract defaults to ExtractPages.
	Extract PageExtractor
}

type IngestInput struct {
	Sources        []string
	CollectionName string
}

type IngestOptions struct {
	ChunkSize int
	// ChunkOverlap nil means DefaultChunkOverlap; zero disables overlap.
	ChunkOverlap *int
	EmbedBatch   int
	// Parallelism bounds how many files are extracted at once.
	Parallelism int

	Report func(stage string, pct int, message string)
}

type IngestResult struct {
	Stored         bool   `json:"stored"`
	ChunkCount     int    `json:"chunks"`
	Source         string `json:"source"`
	CollectionName string `json:"collection_name"`
}

func Ingest(ctx context.Context, deps IngestDeps, in IngestInput, opts ...IngestOptions) (IngestResult, error) {
	out := IngestResult{CollectionName: in.CollectionName}
	if deps.Embedder == nil || deps.Vectors == nil {
		return out, fmt.Errorf("ingest: missing deps")
	}
	if err := vectorstore.ValidateCollection(in.CollectionName); err != nil {
		return out, err
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("collection", in.CollectionName)
	extract := deps.Extract
	if extract == nil {
		extract = ExtractPages
	}

	var opt IngestOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	size := opt.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := DefaultChunkOverlap
	if opt.ChunkOverlap != nil {
		overlap = *opt.ChunkOverlap
	}
	if overlap < 0 || overlap >= size {
		return out, fmt.Errorf("ingest: chunk overlap %d must be in [0,%d)", overlap, size)
	}
	batch := opt.EmbedBatch
	if batch <= 0 {
		batch = DefaultEmbedBatch
	}
	parallel := opt.Parallelism
	if parallel <= 0 {
		parallel = DefaultParallelism
	}
	report := opt.Report
	if report == nil {
		report = func(string, int, string) {}
	}

	report(StageResolve, 2, "Resolving inputs")
	files, err := ResolveInputs(log, in.Sources)
	if err != nil {
		return out, err
	}
	report(StageExtract, 5, fmt.Sprintf("Extracting %d file(s)", len(files)))
	perFile := make([][]Page, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			pages, err := extract(gctx, path)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				var ee *ExtractionError
				if !errors.As(err, &ee) {
					ee = &ExtractionError{Path: path, Err: err}
				}
				log.Warn("ingest: skipping unreadable file", "path", path, "error", ee)
			} else {
				perFile[i] = pages
			}
			mu.Lock()
			done++
			report(StageExtract, 5+(35*done)/len(files), fmt.Sprintf("Extracted %d/%d file(s)", done, len(files)))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	var pages []Page
	for _, ps := range perFile {
		pages = append(pages, ps...)
	}
	if len(pages) == 0 {
		return out, fmt.Errorf("%w: no extractable text in %d file(s)", ErrNoInput, len(files))
	}

	report(StageSplit, 42, fmt.Sprintf("Splitting %d page(s)", len(pages)))
	chunks, err := SplitPages(pages, size, overlap)
	if err != nil {
		return out, err
	}
	if len(chunks) == 0 {
		return out, fmt.Errorf("%w: documents produced no chunks", ErrNoInput)
	}
	out.Source = chunks[0].Source

	points := make([]vectorstore.Point, 0, len(chunks))
	for start := 0; start < len(chunks); start += batch {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := start + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		vecs, err := deps.Embedder.Embed(ctx, texts)
		if err != nil {
			return out, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return out, fmt.Errorf("embed chunks %d-%d: got %d vectors for %d inputs", start, end, len(vecs), len(texts))
		}
		for j, ch := range chunks[start:end] {
			points = append(points, vectorstore.Point{
				ID:     vectorstore.PointID(in.CollectionName, ch.Source, ch.Page, ch.Index),
				Vector: vecs[j],
				Text:   ch.Text,
				Source: ch.Source,
				Page:   ch.Page,
			})
		}
		report(StageEmbed, 45+(45*end)/len(chunks), fmt.Sprintf("Embedded %d/%d chunk(s)", end, len(chunks)))
	}

	report(StageStore, 92, fmt.Sprintf("Storing %d chunk(s)", len(points)))
	if err := deps.Vectors.Upsert(ctx, in.CollectionName, points); err != nil {
		return out, fmt.Errorf("store chunks: %w", err)
	}

	out.Stored = true
	out.ChunkCount = len(points)
	log.Info("ingest: stored chunks",
		"files", len(files),
		"pages", len(pages),
		"chunks", out.ChunkCount,
		"source", out.Source,
	)
	return out, nil
}
