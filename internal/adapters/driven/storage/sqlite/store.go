package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/pdfqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Store is a SQLite-based storage that provides access to the
// session store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.pdfqa/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".pdfqa", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentRegistry returns a DocumentRegistry interface backed by this store.
func (s *Store) DocumentRegistry() driven.DocumentRegistry {
	return &documentRegistry{store: s}
}

// ChatHistoryStore returns a ChatHistoryStore interface backed by this store.
func (s *Store) ChatHistoryStore() driven.ChatHistoryStore {
	return &chatHistoryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Registry ====================

// documentRegistry implements driven.DocumentRegistry.
type documentRegistry struct {
	store *Store
}

var _ driven.DocumentRegistry = (*documentRegistry)(nil)

// SetActive records doc as the only active document.
func (r *documentRegistry) SetActive(ctx context.Context, doc domain.ActiveDocument) error {
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "UPDATE documents SET active = 0 WHERE active = 1"); err != nil {
		return fmt.Errorf("clearing active document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (hash, name, path, processed, active, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			processed = excluded.processed,
			active = 1,
			uploaded_at = excluded.uploaded_at,
			updated_at = excluded.updated_at
	`, doc.Hash.String(), doc.Name, doc.Path, boolToInt(doc.Processed), doc.UploadedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("saving active document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing active document: %w", err)
	}
	return nil
}

// Active returns the active document.
func (r *documentRegistry) Active(ctx context.Context) (*domain.ActiveDocument, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT hash, name, path, processed, uploaded_at
		FROM documents WHERE active = 1
	`)

	var doc domain.ActiveDocument
	var hash string
	var processed int
	var uploadedAt sql.NullTime
	if err := row.Scan(&hash, &doc.Name, &doc.Path, &processed, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning active document: %w", err)
	}

	doc.Hash = domain.DocumentHash(hash)
	doc.Processed = processed != 0
	if uploadedAt.Valid {
		doc.UploadedAt = uploadedAt.Time
	}
	return &doc, nil
}

// MarkProcessed flags the active document as processed when its hash matches.
func (r *documentRegistry) MarkProcessed(ctx context.Context, hash domain.DocumentHash) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE documents SET processed = 1, updated_at = ?
		WHERE hash = ? AND active = 1
	`, time.Now().UTC(), hash.String())
	if err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no active document with hash %s", domain.ErrNotFound, hash)
	}
	return nil
}

// ClearActive forgets the active document.
func (r *documentRegistry) ClearActive(ctx context.Context) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM documents WHERE active = 1"); err != nil {
		return fmt.Errorf("clearing active document: %w", err)
	}
	return nil
}

// ==================== Chat History ====================

// chatHistoryStore implements driven.ChatHistoryStore.
type chatHistoryStore struct {
	store *Store
}

var _ driven.ChatHistoryStore = (*chatHistoryStore)(nil)

// Append adds an entry to the end of the history.
func (h *chatHistoryStore) Append(ctx context.Context, entry domain.ChatEntry) error {
	sources := entry.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err = h.store.db.ExecContext(ctx, `
		INSERT INTO chat_history (pdf_hash, question, answer, response_time, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.DocumentHash.String(), entry.Question, entry.Answer, entry.ResponseTime,
		string(sourcesJSON), entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("saving chat entry: %w", err)
	}
	return nil
}

// List returns the entries for a document, oldest first.
func (h *chatHistoryStore) List(ctx context.Context, hash domain.DocumentHash) ([]domain.ChatEntry, error) {
	rows, err := h.store.db.QueryContext(ctx, `
		SELECT id, pdf_hash, question, answer, response_time, sources, created_at
		FROM chat_history WHERE pdf_hash = ?
		ORDER BY id
	`, hash.String())
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	entries := []domain.ChatEntry{}
	for rows.Next() {
		var entry domain.ChatEntry
		var docHash, sourcesJSON string
		var createdAt sql.NullTime
		if err := rows.Scan(&entry.ID, &docHash, &entry.Question, &entry.Answer,
			&entry.ResponseTime, &sourcesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat entry: %w", err)
		}

		if err := json.Unmarshal([]byte(sourcesJSON), &entry.Sources); err != nil {
			return nil, fmt.Errorf("unmarshaling sources: %w", err)
		}
		entry.DocumentHash = domain.DocumentHash(docHash)
		if createdAt.Valid {
			entry.Timestamp = createdAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear removes all entries.
func (h *chatHistoryStore) Clear(ctx context.Context) error {
	if _, err := h.store.db.ExecContext(ctx, "DELETE FROM chat_history"); err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
