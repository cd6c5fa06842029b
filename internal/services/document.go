package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/storage"
)

const (
	JobTypeIngestDocument     = "ingest_document"
	JobTypeGenerateAssessment = "generate_assessment"

	// LongJobTimeout covers slow PDF parsing and model latency.
	LongJobTimeout = 600 * time.Second
)

type DocumentSubmission struct {
	Job            *types.JobRun
	CollectionName string
}

type DocumentService interface {
	SubmitUpload(ctx context.Context, ownerUserID *uint, filename string, r io.Reader, size int64) (*DocumentSubmission, error)
	SubmitPath(ctx context.Context, ownerUserID *uint, docPath string) (*DocumentSubmission, error)
}

type DocumentConfig struct {
	// AllowLocalPaths lets callers name files already on the worker's disk.
	AllowLocalPaths bool
	JobTimeout      time.Duration
}

type documentService struct {
	log   *logger.Logger
	store storage.Store
	jobs  JobService
	cfg   DocumentConfig
}

func NewDocumentService(baseLog *logger.Logger, store storage.Store, jobs JobService, cfg DocumentConfig) DocumentService {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = LongJobTimeout
	}
	return &documentService{
		log:   baseLog.With("service", "DocumentService"),
		store: store,
		jobs:  jobs,
		cfg:   cfg,
	}
}

// NewCollectionName returns a fresh "doc_<8 hex>" name.
func NewCollectionName() string {
	return "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *documentService) SubmitUpload(ctx context.Context, ownerUserID *uint, filename string, r io.Reader, size int64) (*DocumentSubmission, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "" || base == "." || base == "/" {
		return nil, invalidInput("missing file name")
	}
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return nil, ErrNotPDF
	}
	if r == nil {
		return nil, invalidInput("missing file")
	}

	collection := NewCollectionName()
	key := fmt.Sprintf("uploads/%s_%s", uuid.NewString(), sanitizeFileName(base))
	ref, err := s.store.Save(ctx, key, r, size, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	job, err := s.jobs.Submit(dbctx.Context{Ctx: ctx}, ownerUserID, JobTypeIngestDocument, map[string]any{
		"upload_ref":      ref,
		"filename":        base,
		"collection_name": collection,
	}, s.cfg.JobTimeout)
	if err != nil {
		if derr := s.store.Delete(ctx, ref); derr != nil {
			s.log.Warn("remove orphaned upload failed", "ref", ref, "error", derr)
		}
		return nil, err
	}
	s.log.Info("document queued", "job_id", job.ID, "collection", collection, "filename", base)
	return &DocumentSubmission{Job: job, CollectionName: collection}, nil
}

func (s *documentService) SubmitPath(ctx context.Context, ownerUserID *uint, docPath string) (*DocumentSubmission, error) {
	if !s.cfg.AllowLocalPaths {
		return nil, invalidInput("path ingestion is disabled")
	}
	docPath = strings.TrimSpace(docPath)
	if docPath == "" {
		return nil, invalidInput("missing doc_path")
	}
	collection := NewCollectionName()
	job, err := s.jobs.Submit(dbctx.Context{Ctx: ctx}, ownerUserID, JobTypeIngestDocument, map[string]any{
		"sources":         []string{docPath},
		"collection_name": collection,
	}, s.cfg.JobTimeout)
	if err != nil {
		return nil, err
	}
	return &DocumentSubmission{Job: job, CollectionName: collection}, nil
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range name {
		switch {
		case r == '.':
			// runs of dots collapse so the key never holds ".."
			if prev == '.' {
				continue
			}
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			r = '_'
			b.WriteRune(r)
		}
		prev = r
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "document.pdf"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
