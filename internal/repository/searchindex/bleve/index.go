// Package bleve keeps the document search projection in an embedded Bleve index.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/BenardMarashi/docmanagement/internal/domain/index"
)

const (
	edgeNgramFilter   = "docs_edge_ngram"
	edgeNgramAnalyzer = "docs_prefix"

	fieldTitle       = "title"
	fieldText        = "extractedText"
	fieldTextNgram   = "extractedTextNgram"
	fieldUploadedAt  = "uploadedAt"
	fieldFileSize    = "fileSize"
	fieldContentType = "contentType"
)

var errClosed = errors.New("search index is closed")

// Index is a Bleve-backed search index.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// Open opens the index at path, creating it on first use. An empty path gives an in-memory index.
func Open(path string) (*Index, error) {
	m, err := newMapping()
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: idx}, nil
}

func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomTokenFilter(edgeNgramFilter, map[string]any{
		"type": edgengram.Name,
		"back": false,
		"min":  2.0,
		"max":  20.0,
	})
	if err != nil {
		return nil, err
	}
	err = im.AddCustomAnalyzer(edgeNgramAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, edgeNgramFilter},
	})
	if err != nil {
		return nil, err
	}

	english := bleve.NewTextFieldMapping()
	english.Analyzer = en.AnalyzerName

	prefix := bleve.NewTextFieldMapping()
	prefix.Analyzer = edgeNgramAnalyzer
	prefix.Store = false

	tag := bleve.NewTextFieldMapping()
	tag.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldTitle, english)
	doc.AddFieldMappingsAt(fieldText, english)
	doc.AddFieldMappingsAt(fieldTextNgram, prefix)
	doc.AddFieldMappingsAt(fieldUploadedAt, bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt(fieldFileSize, bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt(fieldContentType, tag)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im, nil
}

// Close closes the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.index.Close()
}

// Ping reports whether the index is usable.
func (x *Index) Ping(_ context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return errClosed
	}
	return nil
}

// Upsert indexes the entry under its id, replacing any previous version.
func (x *Index) Upsert(ctx context.Context, e index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return errClosed
	}
	if err := x.index.Index(e.ID, toDoc(&e)); err != nil {
		return fmt.Errorf("index entry %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes the entry. Missing entries are ignored.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return errClosed
	}
	if err := x.index.Delete(id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// Search runs a relevance-ordered query over title and extracted text.
func (x *Index) Search(ctx context.Context, q index.Query) (index.Page, error) {
	page := index.EmptyPage(q.Page, q.Size)
	bq := buildQuery(q.Terms(), q.Fuzzy)
	if bq == nil {
		return page, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return index.Page{}, errClosed
	}

	req := bleve.NewSearchRequestOptions(bq, q.Size, q.Offset(), false)
	req.Fields = []string{fieldTitle, fieldText, fieldUploadedAt, fieldFileSize, fieldContentType}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return index.Page{}, fmt.Errorf("bleve search: %w", err)
	}

	page.TotalCount = int(res.Total)
	for _, hit := range res.Hits {
		page.Items = append(page.Items, fromFields(hit.ID, hit.Fields))
	}
	return page, nil
}

// buildQuery OR-combines one clause per term.
func buildQuery(terms []string, fuzzy bool) query.Query {
	if len(terms) == 0 {
		return nil
	}
	clauses := make([]query.Query, 0, len(terms)*3)
	for _, term := range terms {
		for _, field := range []string{fieldTitle, fieldText} {
			mq := bleve.NewMatchQuery(term)
			mq.SetField(field)
			if fuzzy {
				mq.SetFuzziness(index.FuzzyDistance(term))
			}
			clauses = append(clauses, mq)
		}
		if !fuzzy && len([]rune(term)) >= 2 {
			tq := bleve.NewTermQuery(strings.ToLower(term))
			tq.SetField(fieldTextNgram)
			clauses = append(clauses, tq)
		}
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

func toDoc(e *index.Entry) map[string]any {
	return map[string]any{
		fieldTitle:       e.Title,
		fieldText:        e.ExtractedText,
		fieldTextNgram:   e.ExtractedTextNgram,
		fieldUploadedAt:  float64(e.UploadedAt.UnixMilli()),
		fieldFileSize:    float64(e.FileSize),
		fieldContentType: e.ContentType,
	}
}

func fromFields(id string, fields map[string]any) index.Entry {
	e := index.Entry{ID: id}
	e.Title, _ = fields[fieldTitle].(string)
	e.ExtractedText, _ = fields[fieldText].(string)
	e.ExtractedTextNgram = e.ExtractedText
	e.ContentType, _ = fields[fieldContentType].(string)
	if ms, ok := fields[fieldUploadedAt].(float64); ok {
		e.UploadedAt = time.UnixMilli(int64(ms)).UTC()
	}
	if n, ok := fields[fieldFileSize].(float64); ok {
		e.FileSize = int64(n)
	}
	return e
}
