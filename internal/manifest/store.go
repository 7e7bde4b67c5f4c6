// Package manifest persists the durable mapping from content hash to the
// provider-side storage location. One row per distinct content hash.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jonesrussell/media-archiver/internal/models"
)

const (
	// DefaultMaxOpenConns is the default connection pool size (postgres).
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default idle connection count.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the maximum lifetime of a pooled connection.
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout bounds the connectivity check at open.
	DefaultPingTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS archive_records (
	content_hash   TEXT PRIMARY KEY,
	message_id     TEXT NOT NULL,
	channel_id     TEXT NOT NULL,
	attachment_ids TEXT NOT NULL DEFAULT '',
	filename       TEXT NOT NULL,
	size           BIGINT NOT NULL,
	sha256         TEXT NOT NULL,
	tenant         TEXT,
	workspace      TEXT,
	media_type     TEXT NOT NULL,
	visibility     TEXT NOT NULL,
	tags           TEXT NOT NULL DEFAULT '',
	compression    TEXT NOT NULL DEFAULT '{}',
	created_at     TIMESTAMP NOT NULL
)`

const recordColumns = `content_hash, message_id, channel_id, attachment_ids, filename,
	size, sha256, tenant, workspace, media_type, visibility, tags, compression, created_at`

// Store provides manifest operations over a SQL database. It is safe for
// concurrent use; conflicting writes are serialized by the database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the manifest database, applies the schema, and verifies
// connectivity. driver is "sqlite3" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open manifest database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite serializes writers itself; a single connection avoids
		// SQLITE_BUSY errors under concurrent archive calls.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetMaxIdleConns(DefaultMaxIdleConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping manifest database: %w", pingErr)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate manifest schema: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Used by tests.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the record for a content hash, or models.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, contentHash string) (*models.ArchiveRecord, error) {
	record := &models.ArchiveRecord{}
	query := s.db.Rebind(`
		SELECT ` + recordColumns + `
		FROM archive_records
		WHERE content_hash = ?
	`)

	err := s.db.GetContext(ctx, record, query, contentHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("lookup record: %w", err)
	}

	if err := record.DecodeFields(); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", contentHash, err)
	}
	return record, nil
}

// Record inserts a record if no row exists for its content hash, using a
// single atomic insert-if-absent statement, then returns the winning row.
// created reports whether this call inserted the row; when two callers race
// on the same hash, exactly one sees created=true and both get the same
// record back.
func (s *Store) Record(ctx context.Context, record *models.ArchiveRecord) (*models.ArchiveRecord, bool, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if err := record.EncodeFields(); err != nil {
		return nil, false, fmt.Errorf("encode record: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO archive_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING
	`)

	result, err := s.db.ExecContext(ctx, query,
		record.ContentHash, record.MessageID, record.ChannelID, record.AttachmentIDsRaw,
		record.Filename, record.Size, record.SHA256, record.Tenant, record.Workspace,
		record.MediaType, record.Visibility, record.TagsRaw, record.CompressionRaw,
		record.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert record rows: %w", err)
	}

	stored, err := s.Lookup(ctx, record.ContentHash)
	if err != nil {
		return nil, false, err
	}
	return stored, affected == 1, nil
}

// UpdateTags replaces the tag list of an existing record. This is the only
// supported mutation of a stored record.
func (s *Store) UpdateTags(ctx context.Context, contentHash string, tags []string) error {
	query := s.db.Rebind(`
		UPDATE archive_records SET tags = ? WHERE content_hash = ?
	`)

	result, err := s.db.ExecContext(ctx, query, strings.Join(tags, ","), contentHash)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tags rows: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SearchTag returns partial records whose tag list contains the substring,
// newest first, paginated by limit and offset.
func (s *Store) SearchTag(ctx context.Context, substring string, limit, offset int) ([]models.RecordSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	summaries := []models.RecordSummary{}
	query := s.db.Rebind(`
		SELECT content_hash, message_id, channel_id, filename, size, media_type, tags, created_at
		FROM archive_records
		WHERE tags LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, content_hash
		LIMIT ? OFFSET ?
	`)

	err := s.db.SelectContext(ctx, &summaries, query, "%"+escapeLike(substring)+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}

	for i := range summaries {
		summaries[i].DecodeFields()
	}
	return summaries, nil
}

// escapeLike neutralizes LIKE wildcards in user input so a search for "50%"
// matches the literal text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
