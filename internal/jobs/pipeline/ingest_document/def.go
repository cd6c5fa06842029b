package ingest_document

import (
	"github.com/yungbote/bloomquiz-backend/internal/modules/ingestion"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/storage"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type Pipeline struct {
	log    *logger.Logger
	store  storage.Store
	ingest ingestion.Usecases
}

// New builds the ingest_document handler. store may be nil when uploads are
// not accepted and jobs only name local paths.
func New(baseLog *logger.Logger, store storage.Store, ingest ingestion.Usecases) *Pipeline {
	log := baseLog.With("job", services.JobTypeIngestDocument)
	return &Pipeline{
		log:    log,
		store:  store,
		ingest: ingest.WithLog(log),
	}
}

func (p *Pipeline) Type() string { return services.JobTypeIngestDocument }
