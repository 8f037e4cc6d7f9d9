package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS docs (
	id       INTEGER PRIMARY KEY,
	path     TEXT NOT NULL,
	filename TEXT NOT NULL,
	length   INTEGER NOT NULL
);

-- term comparisons are BINARY, so terms stay case-sensitive
CREATE TABLE IF NOT EXISTS postings (
	field     TEXT NOT NULL,
	term      TEXT NOT NULL,
	doc       INTEGER NOT NULL,
	freq      INTEGER NOT NULL,
	positions BLOB,
	PRIMARY KEY (field, term, doc)
) WITHOUT ROWID;
`

const (
	metaSchemaVersion   = "schema_version"
	metaGeneration      = "generation"
	metaCreatedAt       = "created_at"
	metaRoot            = "root"
	metaMaxTokenLength  = "max_token_length"
	metaCaseInsensitive = "case_insensitive"
	metaDocCount        = "doc_count"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeMeta(ctx context.Context, db execer, m Meta) error {
	values := map[string]string{
		metaSchemaVersion:   strconv.Itoa(m.SchemaVersion),
		metaGeneration:      m.Generation,
		metaCreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339Nano),
		metaRoot:            m.Root,
		metaMaxTokenLength:  strconv.Itoa(m.MaxTokenLength),
		metaCaseInsensitive: strconv.FormatBool(m.CaseInsensitive),
		metaDocCount:        strconv.Itoa(m.DocCount),
	}
	for k, v := range values {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO meta(key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}
	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("failed to scan meta: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}
	if _, ok := values[metaGeneration]; !ok {
		return Meta{}, fmt.Errorf("index has no committed generation")
	}

	m := Meta{
		Generation: values[metaGeneration],
		Root:       values[metaRoot],
	}
	m.SchemaVersion, _ = strconv.Atoi(values[metaSchemaVersion])
	m.MaxTokenLength, _ = strconv.Atoi(values[metaMaxTokenLength])
	m.CaseInsensitive, _ = strconv.ParseBool(values[metaCaseInsensitive])
	m.DocCount, _ = strconv.Atoi(values[metaDocCount])
	if t, err := time.Parse(time.RFC3339Nano, values[metaCreatedAt]); err == nil {
		m.CreatedAt = t
	}
	if m.SchemaVersion != SchemaVersion {
		return Meta{}, fmt.Errorf("unsupported schema version %d (want %d)", m.SchemaVersion, SchemaVersion)
	}
	return m, nil
}
