package userdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLAdapter is a SQL-backed persistence adapter storing each record as a
// JSON document. It works with any database/sql compatible driver; the
// Postgres dialect backs account records (lib/pq), the SQLite dialect backs
// on-device guest records (mattn/go-sqlite3). Requires a table with schema:
//
//	CREATE TABLE reeldeck_userdata (
//	    identity_id VARCHAR(64) PRIMARY KEY,
//	    document    BYTEA NOT NULL,
//	    updated_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
type SQLAdapter struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLAdapterOption configures SQLAdapter behavior.
type SQLAdapterOption func(*sqlAdapterConfig)

type sqlAdapterConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name for user-data storage.
// Default: "reeldeck_userdata".
func WithSQLTableName(name string) SQLAdapterOption {
	return func(c *sqlAdapterConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLAdapterOption {
	return func(c *sqlAdapterConfig) {
		c.dialect = dialect
	}
}

// NewSQLAdapter creates a new SQL-backed user-data adapter.
func NewSQLAdapter(db *sql.DB, opts ...SQLAdapterOption) *SQLAdapter {
	cfg := &sqlAdapterConfig{
		tableName: "reeldeck_userdata",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLAdapter{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// Load retrieves the record for an identity, or (nil, nil) if absent.
func (s *SQLAdapter) Load(ctx context.Context, identityID string) (*Record, error) {
	if s.closed {
		return nil, ErrAdapterClosed{}
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`SELECT document FROM %s WHERE identity_id = $1`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`SELECT document FROM %s WHERE identity_id = ?`, s.tableName)
	}

	var doc []byte
	err := s.db.QueryRowContext(ctx, query, identityID).Scan(&doc)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode user-data document: %w", err)
	}
	return &rec, nil
}

// Save upserts the full record document for an identity.
func (s *SQLAdapter) Save(ctx context.Context, identityID string, rec *Record) error {
	if s.closed {
		return ErrAdapterClosed{}
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user-data document: %w", err)
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (identity_id, document, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (identity_id) DO UPDATE SET
				document = EXCLUDED.document,
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (identity_id, document, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	_, err = s.db.ExecContext(ctx, query, identityID, doc)
	return err
}

// Delete removes the record for an identity.
func (s *SQLAdapter) Delete(ctx context.Context, identityID string) error {
	if s.closed {
		return ErrAdapterClosed{}
	}

	var placeholder string
	switch s.dialect {
	case DialectPostgreSQL:
		placeholder = "$1"
	default:
		placeholder = "?"
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE identity_id = %s`, s.tableName, placeholder)
	_, err := s.db.ExecContext(ctx, query, identityID)
	return err
}

// Close marks the adapter as closed.
// Note: This does not close the underlying database connection,
// as it may be shared with other components.
func (s *SQLAdapter) Close() error {
	s.closed = true
	return nil
}

// CreateTable creates the user-data table if it doesn't exist.
// This is a convenience method for development/testing.
func (s *SQLAdapter) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				identity_id VARCHAR(64) PRIMARY KEY,
				document BYTEA NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				identity_id TEXT PRIMARY KEY,
				document BLOB NOT NULL,
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query)
	return err
}
