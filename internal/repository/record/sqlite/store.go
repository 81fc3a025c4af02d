// Package sqlite stores document records in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	title          TEXT    NOT NULL,
	blob_handle    TEXT    NOT NULL,
	file_size      INTEGER NOT NULL,
	content_type   TEXT    NOT NULL,
	uploaded_at    INTEGER NOT NULL,
	extracted_text TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at);
`

// columns maps sortable fields to SQL columns; ORDER BY never sees user input.
var columns = map[domdoc.SortField]string{
	domdoc.SortByUploadedAt: "uploaded_at",
	domdoc.SortByTitle:      "title COLLATE NOCASE",
	domdoc.SortByFileSize:   "file_size",
	domdoc.SortByID:         "id",
}

// Store is the SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a record; the id comes from AUTOINCREMENT.
func (s *Store) Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error) {
	var text sql.NullString
	if t, ok := rec.ExtractedText(); ok {
		text = sql.NullString{String: t, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (title, blob_handle, file_size, content_type, uploaded_at, extracted_text)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Title(), rec.BlobHandle(), rec.FileSize(), rec.ContentType(), rec.UploadedAt().UnixMilli(), text)
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("reading document id: %w", err)
	}
	return rec.WithID(id), nil
}

// FindByID returns a record or domain.ErrDocumentNotFound.
func (s *Store) FindByID(ctx context.Context, id int64) (domdoc.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, blob_handle, file_size, content_type, uploaded_at, extracted_text
		FROM documents WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domdoc.Record{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("querying document %d: %w", id, err)
	}
	return rec, nil
}

// Update writes the title and, when present, the extracted text.
func (s *Store) Update(ctx context.Context, rec *domdoc.Record) error {
	var (
		res sql.Result
		err error
	)
	if text, ok := rec.ExtractedText(); ok {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET title = ?, extracted_text = ? WHERE id = ?`,
			rec.Title(), text, rec.ID())
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET title = ? WHERE id = ?`, rec.Title(), rec.ID())
	}
	if err != nil {
		return fmt.Errorf("updating document %d: %w", rec.ID(), err)
	}
	return requireAffected(res, rec.ID())
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// List filters with LIKE and orders server-side.
func (s *Store) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, title, blob_handle, file_size, content_type, uploaded_at, extracted_text FROM documents`)
	if q.Search != "" {
		sb.WriteString(` WHERE lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(extracted_text, '')) LIKE ? ESCAPE '\'`)
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		args = append(args, pattern, pattern)
	}
	dir := "DESC"
	if q.Direction == domdoc.Asc {
		dir = "ASC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, id %s", columns[q.SortField], dir, dir)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	out := []domdoc.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domdoc.Record, error) {
	var (
		id, size, uploadedMs int64
		title, blob, ct      string
		text                 sql.NullString
	)
	if err := row.Scan(&id, &title, &blob, &size, &ct, &uploadedMs, &text); err != nil {
		return domdoc.Record{}, err
	}

	var textPtr *string
	if text.Valid {
		textPtr = &text.String
	}
	return domdoc.Reconstruct(id, title, blob, ct, size, time.UnixMilli(uploadedMs).UTC(), textPtr), nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for document %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
