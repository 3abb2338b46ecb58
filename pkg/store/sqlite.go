package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"cognivox-server/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	created_at TEXT NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);
`

// SQLiteStore keeps every collection in one documents table
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// database/sql pools connections; a single writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Create inserts record as a JSON body row
func (s *SQLiteStore) Create(ctx context.Context, collection string, record interface{}) (Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	doc, err := newDocument(record, s.now())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, writeFailed(collection, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, created_at, body) VALUES (?, ?, ?, ?)`,
		collection, doc.ID(), doc[FieldCreatedDate], string(body))
	if err != nil {
		return nil, writeFailed(collection, err)
	}

	metrics.RecordStoreWrite(collection, "success")
	return doc, nil
}

// GetAll lists collection ordered by insertion
func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc := Document{}
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
