// Package searchindex keeps the document search projection in a RediSearch index.
package searchindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BenardMarashi/docmanagement/internal/db"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
)

// Hash field names. They double as RediSearch attribute names.
const (
	fieldTitle       = "title"
	fieldText        = "extractedText"
	fieldTextNgram   = "extractedTextNgram"
	fieldUploadedAt  = "uploadedAt"
	fieldFileSize    = "fileSize"
	fieldContentType = "contentType"
)

// minPrefixLen is the shortest term RediSearch expands as a prefix.
const minPrefixLen = 2

// store is the consumer interface for the search index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// Repo is the RediSearch-backed search index.
type Repo struct {
	store     store
	indexName string
	prefix    string
}

// New creates a search index repository. Entries live under keyPrefix+"entry:".
func New(s store, indexName, keyPrefix string) *Repo {
	return &Repo{store: s, indexName: indexName, prefix: keyPrefix + "entry:"}
}

// Definition returns the FT index schema.
func (r *Repo) Definition() *db.IndexDefinition {
	return db.NewIndex(r.indexName).
		Prefix(r.prefix).
		Language("english").
		Text(fieldTitle, 2).
		Text(fieldText, 0).
		TextNoStem(fieldTextNgram).
		Numeric(fieldUploadedAt, true).
		Numeric(fieldFileSize, false).
		Tag(fieldContentType).
		MustBuild()
}

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, r.Definition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return nil
}

// Upsert writes the entry hash, replacing any previous projection.
func (r *Repo) Upsert(ctx context.Context, e index.Entry) error {
	key := r.prefix + e.ID
	if err := r.store.HSet(ctx, key, entryFields(&e)); err != nil {
		return fmt.Errorf("upsert entry %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes the entry. Removing a missing entry is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Del(ctx, r.prefix+id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// Search runs a relevance-ordered text query.
func (r *Repo) Search(ctx context.Context, q index.Query) (index.Page, error) {
	expr := BuildQuery(q.Terms(), q.Fuzzy)
	if expr == "" {
		return index.EmptyPage(q.Page, q.Size), nil
	}

	sr, err := r.store.Search(ctx, &db.TextQuery{
		IndexName: r.indexName,
		Query:     expr,
		Offset:    q.Offset(),
		Limit:     q.Size,
	})
	if err != nil {
		return index.Page{}, fmt.Errorf("search %s: %w", r.indexName, err)
	}

	page := index.EmptyPage(q.Page, q.Size)
	page.TotalCount = sr.Total
	for _, se := range sr.Entries {
		page.Items = append(page.Items, parseEntry(strings.TrimPrefix(se.Key, r.prefix), se.Fields))
	}
	return page, nil
}

// Ping checks the backing connection.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// BuildQuery turns whitespace-separated terms into a RediSearch expression.
// Terms are OR-combined. Without fuzzy every term matches stemmed title and text
// or a prefix of the raw text; with fuzzy the Levenshtein distance follows index.FuzzyDistance.
func BuildQuery(terms []string, fuzzy bool) string {
	clauses := make([]string, 0, len(terms))
	for _, term := range terms {
		t := db.EscapeTerm(strings.ToLower(term))
		if fuzzy {
			clauses = append(clauses, fuzzyClause(term, t))
			continue
		}
		clause := fmt.Sprintf("@%s|%s:(%s)", fieldTitle, fieldText, t)
		if len([]rune(term)) >= minPrefixLen {
			clause = fmt.Sprintf("(%s) | @%s:(%s*)", clause, fieldTextNgram, t)
		}
		clauses = append(clauses, "("+clause+")")
	}
	return strings.Join(clauses, " | ")
}

func fuzzyClause(raw, escaped string) string {
	marks := strings.Repeat("%", index.FuzzyDistance(raw))
	return fmt.Sprintf("(@%s|%s:(%s%s%s))", fieldTitle, fieldText, marks, escaped, marks)
}

func entryFields(e *index.Entry) map[string]string {
	return map[string]string{
		fieldTitle:       e.Title,
		fieldText:        e.ExtractedText,
		fieldTextNgram:   e.ExtractedTextNgram,
		fieldUploadedAt:  strconv.FormatInt(e.UploadedAt.UnixMilli(), 10),
		fieldFileSize:    strconv.FormatInt(e.FileSize, 10),
		fieldContentType: e.ContentType,
	}
}

func parseEntry(id string, fields map[string]string) index.Entry {
	e := index.Entry{
		ID:                 id,
		Title:              fields[fieldTitle],
		ExtractedText:      fields[fieldText],
		ExtractedTextNgram: fields[fieldTextNgram],
		ContentType:        fields[fieldContentType],
	}
	if ms, err := strconv.ParseInt(fields[fieldUploadedAt], 10, 64); err == nil {
		e.UploadedAt = time.UnixMilli(ms).UTC()
	}
	if n, err := strconv.ParseInt(fields[fieldFileSize], 10, 64); err == nil {
		e.FileSize = n
	}
	return e
}
