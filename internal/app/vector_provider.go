package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/pgvector"
	"github.com/yungbote/bloomquiz-backend/internal/platform/qdrant"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

var (
	newQdrantVectorStore   = qdrant.NewVectorStore
	newPgvectorVectorStore = pgvector.NewVectorStore
)

type VectorProvider string

const (
	VectorProviderQdrant   VectorProvider = "qdrant"
	VectorProviderPgvector VectorProvider = "pgvector"
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider    VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL   VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL   VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorInvalidDistance    VectorProviderBootstrapErrorCode = "invalid_qdrant_distance"
	VectorProviderBootstrapErrorQdrantConfigFailed VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorPgvectorRequiresPG VectorProviderBootstrapErrorCode = "pgvector_requires_postgres"
	VectorProviderBootstrapErrorConnectFailed      VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf(
		"vector provider bootstrap failed (code=%s provider=%q): %v",
		e.Code,
		e.Provider,
		e.Cause,
	)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore picks the chunk vector backend. The returned store is
// wrapped with per-operation metrics.
func resolveVectorStore(log *logger.Logger, cfg Config, db *gorm.DB) (vectorstore.Store, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))
	if provider == "" {
		provider = string(VectorProviderQdrant)
	}
	metrics := observability.Current()

	fail := func(err *VectorProviderBootstrapError) (vectorstore.Store, error) {
		metrics.ObserveProviderBootstrap("vector", provider, "error", string(err.Code))
		log.Error(
			"Vector provider bootstrap failed",
			"provider", provider,
			"error_code", err.Code,
			"error", err,
		)
		return nil, err
	}

	var (
		store vectorstore.Store
		err   error
	)
	switch VectorProvider(provider) {
	case VectorProviderQdrant:
		log.Info("Selecting vector provider", "provider", provider, "qdrant_url", strings.TrimSpace(cfg.QdrantURL))
		store, err = newQdrantVectorStore(log, qdrant.Config{
			URL:     cfg.QdrantURL,
			APIKey:  cfg.QdrantAPIKey,
			Timeout: cfg.QdrantTimeout,
		})
	case VectorProviderPgvector:
		log.Info("Selecting vector provider", "provider", provider)
		if db == nil || db.Dialector.Name() != "postgres" {
			return fail(&VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorPgvectorRequiresPG,
				Provider: provider,
				Cause:    errors.New("VECTOR_PROVIDER=pgvector requires DB_DRIVER=postgres"),
			})
		}
		store, err = newPgvectorVectorStore(db, log)
	default:
		return fail(&VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		})
	}
	if err != nil {
		return fail(classifyVectorProviderBootstrapError(provider, err))
	}

	metrics.ObserveProviderBootstrap("vector", provider, "success", "none")
	return instrumentVectorStore(provider, store), nil
}

func classifyVectorProviderBootstrapError(provider string, err error) *VectorProviderBootstrapError {
	return &VectorProviderBootstrapError{
		Code:     vectorProviderBootstrapErrorCode(err),
		Provider: provider,
		Cause:    err,
	}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return VectorProviderBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			return VectorProviderBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorInvalidDistance:
			return VectorProviderBootstrapErrorInvalidDistance
		default:
			return VectorProviderBootstrapErrorQdrantConfigFailed
		}
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return VectorProviderBootstrapErrorConnectFailed
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return VectorProviderBootstrapErrorConnectFailed
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
