package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL flavour used by SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists documents as JSON rows in a single documents table.
// Rows keep their first-insert sequence number so scans come back in
// insertion order.
type SQLStore struct {
	conn    *sql.DB
	dialect Dialect
}

// NewSQLStore opens the database and creates the schema if missing.
func NewSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}
	if dialect == DialectSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		conn.SetMaxOpenConns(1)
	}

	s := &SQLStore{conn: conn, dialect: dialect}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			` + seq + `,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq)`,
	}
	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (GetResult, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx,
		s.rebind(`SELECT data FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return GetResult{ID: id}, nil
	}
	if err != nil {
		return GetResult{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	doc, err := unmarshalRow(raw)
	if err != nil {
		return GetResult{}, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return GetResult{Exists: true, ID: id, Data: doc}, nil
}

func (s *SQLStore) upsert(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, collection, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	query := `INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT (collection, id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`
	if _, err := exec.ExecContext(ctx, s.rebind(query),
		collection, id, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLStore) Set(ctx context.Context, collection, id string, data Document) error {
	doc, err := normalizeDocument(data)
	if err != nil {
		return err
	}
	doc["id"] = id
	return s.upsert(ctx, s.conn, collection, id, doc)
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, partial Document) error {
	patch, err := normalizeDocument(partial)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT data FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
	}
	doc, err := unmarshalRow(raw)
	if err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["id"] = id
	if err := s.upsert(ctx, tx, collection, id, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.conn.ExecContext(ctx,
		s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLStore) All(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.conn.QueryContext(ctx,
		s.rebind(`SELECT data FROM documents WHERE collection = ? ORDER BY seq`),
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := unmarshalRow(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode row in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := s.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, &filter, nil)
}

func (s *SQLStore) QueryWithSort(ctx context.Context, collection string, filter *Filter, order Sort) ([]Document, error) {
	docs, err := s.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, filter, &order)
}

func unmarshalRow(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
