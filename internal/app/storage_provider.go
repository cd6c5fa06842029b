package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/storage"
)

var (
	newLocalStore = storage.NewLocalStore
	newMinioStore = storage.NewMinioStore
)

type StorageProvider string

const (
	StorageProviderLocal StorageProvider = "local"
	StorageProviderMinio StorageProvider = "minio"
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidProvider StorageProviderBootstrapErrorCode = "invalid_provider"
	StorageProviderBootstrapErrorMissingEndpoint StorageProviderBootstrapErrorCode = "missing_minio_endpoint"
	StorageProviderBootstrapErrorMissingDir      StorageProviderBootstrapErrorCode = "missing_upload_dir"
	StorageProviderBootstrapErrorConnectFailed   StorageProviderBootstrapErrorCode = "connect_failed"
	StorageProviderBootstrapErrorInitFailed      StorageProviderBootstrapErrorCode = "provider_init_failed"
)

type StorageProviderBootstrapError struct {
	Code     StorageProviderBootstrapErrorCode
	Provider string
	Endpoint string
	Cause    error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s provider=%q endpoint=%q): %v",
		e.Code,
		e.Provider,
		e.Endpoint,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectStore builds the store that holds uploaded PDFs until the
// ingest worker has read them.
func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg Config) (storage.Store, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.StorageProvider))
	if provider == "" {
		provider = string(StorageProviderLocal)
	}
	metrics := observability.Current()

	fail := func(err *StorageProviderBootstrapError) (storage.Store, error) {
		metrics.ObserveProviderBootstrap("storage", provider, "error", string(err.Code))
		log.Error(
			"Object storage provider bootstrap failed",
			"provider", provider,
			"endpoint", err.Endpoint,
			"error_code", err.Code,
			"error", err,
		)
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch StorageProvider(provider) {
	case StorageProviderLocal:
		dir := strings.TrimSpace(cfg.UploadDir)
		if dir == "" {
			return fail(&StorageProviderBootstrapError{
				Code:     StorageProviderBootstrapErrorMissingDir,
				Provider: provider,
				Cause:    errors.New("UPLOAD_DIR is required for local storage"),
			})
		}
		log.Info("Selecting object storage provider", "provider", provider, "upload_dir", dir)
		store, err = newLocalStore(log, dir)
		if err != nil {
			return fail(&StorageProviderBootstrapError{
				Code:     StorageProviderBootstrapErrorInitFailed,
				Provider: provider,
				Cause:    err,
			})
		}

	case StorageProviderMinio:
		endpoint := strings.TrimSpace(cfg.MinioEndpoint)
		if endpoint == "" {
			return fail(&StorageProviderBootstrapError{
				Code:     StorageProviderBootstrapErrorMissingEndpoint,
				Provider: provider,
				Cause:    errors.New("MINIO_ENDPOINT is required for minio storage"),
			})
		}
		log.Info("Selecting object storage provider", "provider", provider, "endpoint", endpoint, "bucket", cfg.MinioBucket)
		store, err = newMinioStore(ctx, log, storage.MinioConfig{
			Endpoint:  endpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			return fail(classifyStorageProviderBootstrapError(provider, endpoint, err))
		}

	default:
		return fail(&StorageProviderBootstrapError{
			Code:     StorageProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported storage provider %q", provider),
		})
	}

	metrics.ObserveProviderBootstrap("storage", provider, "success", "none")
	return store, nil
}

func classifyStorageProviderBootstrapError(provider, endpoint string, err error) *StorageProviderBootstrapError {
	code := StorageProviderBootstrapErrorInitFailed
	var urlErr *neturl.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		code = StorageProviderBootstrapErrorConnectFailed
	}
	return &StorageProviderBootstrapError{
		Code:     code,
		Provider: provider,
		Endpoint: endpoint,
		Cause:    err,
	}
}
