package app

import (
	"errors"
	"net"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/qdrant"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

func TestResolveVectorStoreQdrantSelected(t *testing.T) {
	orig := newQdrantVectorStore
	defer func() { newQdrantVectorStore = orig }()

	var got qdrant.Config
	newQdrantVectorStore = func(log *logger.Logger, cfg qdrant.Config) (vectorstore.Store, error) {
		got = cfg
		return vectorstore.NewMemoryStore(), nil
	}
	store, err := resolveVectorStore(logger.NewNop(), Config{
		VectorProvider: "QDRANT",
		QdrantURL:      "http://qdrant:6333",
		QdrantAPIKey:   "k",
	}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := store.(*instrumentedVectorStore); !ok {
		t.Fatalf("store not instrumented: %T", store)
	}
	if got.URL != "http://qdrant:6333" || got.APIKey != "k" {
		t.Fatalf("qdrant config=%+v", got)
	}
}

func TestResolveVectorStoreErrorCodes(t *testing.T) {
	orig := newQdrantVectorStore
	defer func() { newQdrantVectorStore = orig }()

	cases := []struct {
		name  string
		cause error
		code  VectorProviderBootstrapErrorCode
	}{
		{"missing url", &qdrant.ConfigError{Code: qdrant.ConfigErrorMissingURL}, VectorProviderBootstrapErrorMissingQdrantURL},
		{"invalid url", &qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidURL, Value: "qdrant"}, VectorProviderBootstrapErrorInvalidQdrantURL},
		{"invalid distance", &qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidDistance}, VectorProviderBootstrapErrorInvalidDistance},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, VectorProviderBootstrapErrorConnectFailed},
		{"other", errors.New("unexpected status 500"), VectorProviderBootstrapErrorProviderInitFailed},
	}
	for _, tc := range cases {
		cause := tc.cause
		newQdrantVectorStore = func(log *logger.Logger, cfg qdrant.Config) (vectorstore.Store, error) {
			return nil, cause
		}
		_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "qdrant"}, nil)
		var got *VectorProviderBootstrapError
		if !errors.As(err, &got) || got.Code != tc.code {
			t.Fatalf("%s: err=%v", tc.name, err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("%s: cause not wrapped", tc.name)
		}
	}
}

func TestResolveVectorStoreRejectsUnknownProvider(t *testing.T) {
	_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "pinecone"}, nil)
	var got *VectorProviderBootstrapError
	if !errors.As(err, &got) || got.Code != VectorProviderBootstrapErrorInvalidProvider {
		t.Fatalf("err=%v", err)
	}
}

func TestResolveVectorStorePgvectorNeedsPostgres(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	_, err = resolveVectorStore(logger.NewNop(), Config{VectorProvider: "pgvector"}, db)
	var got *VectorProviderBootstrapError
	if !errors.As(err, &got) || got.Code != VectorProviderBootstrapErrorPgvectorRequiresPG {
		t.Fatalf("err=%v", err)
	}
}
