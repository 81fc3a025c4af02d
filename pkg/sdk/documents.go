package docmanagement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DocumentService manages stored documents.
type DocumentService struct {
	c *Client
}

// Upload sends a file for ingestion. Text extraction happens asynchronously.
func (s *DocumentService) Upload(ctx context.Context, up UploadRequest) (doc Document, err error) {
	defer func(start time.Time) { s.c.obs.observe("upload", start, err) }(time.Now())

	if up.Content == nil {
		return Document{}, fmt.Errorf("upload: %w: content is required", ErrValidation)
	}
	body, contentType, err := multipartBody(up)
	if err != nil {
		return Document{}, fmt.Errorf("upload: %w", err)
	}

	req, err := s.c.newRequest(ctx, http.MethodPost, "/api/documents", nil, body)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.c.do(req)
	if err != nil {
		return Document{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if err := decodeJSON(resp.Body, &doc); err != nil {
		return Document{}, fmt.Errorf("upload: %w", err)
	}
	return doc, nil
}

// Get retrieves a document's metadata.
func (s *DocumentService) Get(ctx context.Context, id int64) (doc Document, err error) {
	defer func(start time.Time) { s.c.obs.observe("get", start, err) }(time.Now())

	if err := s.c.doJSON(ctx, http.MethodGet, documentPath(id), nil, &doc); err != nil {
		return Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return doc, nil
}

// Text returns the extracted text. ErrTextNotReady until extraction completes.
func (s *DocumentService) Text(ctx context.Context, id int64) (text string, err error) {
	defer func(start time.Time) { s.c.obs.observe("text", start, err) }(time.Now())

	var out struct {
		Text string `json:"text"`
	}
	if err := s.c.doJSON(ctx, http.MethodGet, documentPath(id)+"/ocr", nil, &out); err != nil {
		return "", fmt.Errorf("text of document %d: %w", id, err)
	}
	return out.Text, nil
}

// Download opens the original file. The caller closes Body.
func (s *DocumentService) Download(ctx context.Context, id int64) (dl Download, err error) {
	defer func(start time.Time) { s.c.obs.observe("download", start, err) }(time.Now())

	req, err := s.c.newRequest(ctx, http.MethodGet, documentPath(id)+"/download", nil, nil)
	if err != nil {
		return Download{}, err
	}
	resp, err := s.c.do(req)
	if err != nil {
		return Download{}, fmt.Errorf("download document %d: %w", id, err)
	}

	dl = Download{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil {
		dl.Filename = params["filename"]
	}
	return dl, nil
}

// List returns documents matching opts.
func (s *DocumentService) List(ctx context.Context, opts ListOptions) (docs []Document, err error) {
	defer func(start time.Time) { s.c.obs.observe("list", start, err) }(time.Now())

	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.SortField != "" {
		q.Set("sortField", string(opts.SortField))
	}
	if opts.Direction != "" {
		q.Set("direction", string(opts.Direction))
	}

	if err := s.c.doJSON(ctx, http.MethodGet, "/api/documents", q, &docs); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document, its file and its index entry.
func (s *DocumentService) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { s.c.obs.observe("delete", start, err) }(time.Now())

	if err := s.c.doJSON(ctx, http.MethodDelete, documentPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}

// Reprocess queues the document for another extraction run.
func (s *DocumentService) Reprocess(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { s.c.obs.observe("reprocess", start, err) }(time.Now())

	if err := s.c.doJSON(ctx, http.MethodPost, documentPath(id)+"/reprocess", nil, nil); err != nil {
		return fmt.Errorf("reprocess document %d: %w", id, err)
	}
	return nil
}

func documentPath(id int64) string {
	return "/api/documents/" + strconv.FormatInt(id, 10)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func multipartBody(up UploadRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := up.Filename
	if filename == "" {
		filename = "upload"
	}
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, "", fmt.Errorf("read content: %w", err)
	}
	if up.Title != "" {
		if err := mw.WriteField("title", up.Title); err != nil {
			return nil, "", fmt.Errorf("write title: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty response body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
