package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// Point is one embedded chunk.
type Point struct {
	ID     string
	Vector []float32
	Text   string
	Source string
	Page   string
}

// Match is a search hit; higher Score is more similar.
type Match struct {
	ID     string
	Score  float64
	Text   string
	Source string
	Page   string
}

// Store holds chunk vectors grouped into named collections.
type Store interface {
	// Upsert writes points, creating the collection on first use.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns at most topK matches ordered by similarity. A collection
	// that does not exist yields no matches.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Match, error)
}

var ErrInvalidCollection = errors.New("invalid collection name")

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

var pointIDNamespace = uuid.MustParse("0f1705d1-2c3f-4e40-b2f4-f855f7d3c8e8")

// PointID is stable for the same chunk position, so re-ingesting a document
// overwrites its previous points.
func PointID(collection, source, page string, index int) string {
	key := collection + "|" + source + "|" + page + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(pointIDNamespace, []byte(key)).String()
}
