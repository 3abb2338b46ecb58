// Package store persists schema-loose documents in named collections.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

// Reserved document fields
const (
	FieldID          = "_id"
	FieldCreatedDate = "_createdDate"
)

// Document is one stored record
type Document map[string]interface{}

// ID returns the document identifier
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Store creates and lists documents per collection. GetAll returns documents
// in creation order.
type Store interface {
	Create(ctx context.Context, collection string, record interface{}) (Document, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Pinger is implemented by stores that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

var collectionPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ValidateCollection rejects names that are not plain identifiers
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return cerrors.NewInvalidInput(fmt.Sprintf("invalid collection name %q", name))
	}
	return nil
}

// New opens the configured backend
func New(ctx context.Context, logger *logrus.Logger, cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisStore(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, cerrors.NewInvalidInput(fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
}

// newDocument converts record into a Document and stamps id and creation date
// unless the record already carries them.
func newDocument(record interface{}, now time.Time) (Document, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, cerrors.NewInvalidInput(fmt.Sprintf("record is not JSON-encodable: %v", err))
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.NewInvalidInput("record must encode to a JSON object")
	}
	if id, _ := doc[FieldID].(string); id == "" {
		doc[FieldID] = uuid.NewString()
	}
	if created, _ := doc[FieldCreatedDate].(string); created == "" {
		doc[FieldCreatedDate] = now.UTC().Format(time.RFC3339Nano)
	}
	return doc, nil
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func writeFailed(collection string, err error) error {
	metrics.RecordStoreWrite(collection, "error")
	return cerrors.NewStoreWriteError(collection, err)
}

// CreateTyped stores v and returns it with the stamped id and creation date
func CreateTyped[T any](ctx context.Context, s Store, collection string, v T) (T, error) {
	var out T
	doc, err := s.Create(ctx, collection, v)
	if err != nil {
		return out, err
	}
	if err := decodeDocument(doc, &out); err != nil {
		return out, err
	}
	return out, nil
}

// GetAllTyped lists a collection decoded into T
func GetAllTyped[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	docs, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := decodeDocument(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s document %s: %w", collection, doc.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeDocument(doc Document, v interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
