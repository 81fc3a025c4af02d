package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	documentuc "github.com/BenardMarashi/docmanagement/internal/usecase/document"
	healthuc "github.com/BenardMarashi/docmanagement/internal/usecase/health"
	searchuc "github.com/BenardMarashi/docmanagement/internal/usecase/search"
)

// --- Mocks ---

type mockDocuments struct {
	ingestFn    func(ctx context.Context, up documentuc.Upload) (domdoc.Record, error)
	getFn       func(ctx context.Context, id int64) (domdoc.Record, error)
	textFn      func(ctx context.Context, id int64) (string, error)
	downloadFn  func(ctx context.Context, id int64) (domdoc.Record, io.ReadCloser, error)
	listFn      func(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error)
	deleteFn    func(ctx context.Context, id int64) error
	reprocessFn func(ctx context.Context, id int64) error
}

func (m *mockDocuments) Ingest(ctx context.Context, up documentuc.Upload) (domdoc.Record, error) {
	return m.ingestFn(ctx, up)
}

func (m *mockDocuments) Get(ctx context.Context, id int64) (domdoc.Record, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocuments) ExtractedText(ctx context.Context, id int64) (string, error) {
	return m.textFn(ctx, id)
}

func (m *mockDocuments) Download(ctx context.Context, id int64) (domdoc.Record, io.ReadCloser, error) {
	return m.downloadFn(ctx, id)
}

func (m *mockDocuments) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	return m.listFn(ctx, q)
}

func (m *mockDocuments) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

func (m *mockDocuments) Reprocess(ctx context.Context, id int64) error {
	return m.reprocessFn(ctx, id)
}

type mockSearcher struct {
	got      searchuc.Request
	searchFn func(ctx context.Context, req searchuc.Request) (index.Page, error)
}

func (m *mockSearcher) Search(ctx context.Context, req searchuc.Request) (index.Page, error) {
	m.got = req
	return m.searchFn(ctx, req)
}

func (m *mockSearcher) DefaultPageSize() int { return 10 }

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

var uploadedAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(id int64) domdoc.Record {
	return domdoc.Reconstruct(id, "Invoice", "abc_invoice.png", "image/png", 7, uploadedAt, nil)
}

func newTestServer(docs *mockDocuments, search *mockSearcher) http.Handler {
	if search == nil {
		search = &mockSearcher{}
	}
	health := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}}
	return NewServer(docs, search, health, Options{MaxUploadBytes: 1 << 20}, nil).Routes()
}

func do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func multipartBody(t *testing.T, title, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	var got documentuc.Upload
	docs := &mockDocuments{ingestFn: func(_ context.Context, up documentuc.Upload) (domdoc.Record, error) {
		got = up
		return sampleRecord(1), nil
	}}
	h := newTestServer(docs, nil)

	for _, path := range []string{"/api/documents", "/api/documents/upload"} {
		body, ct := multipartBody(t, "Invoice", "invoice.png", []byte("payload"))
		rr := do(h, http.MethodPost, path, body, ct)

		if rr.Code != http.StatusCreated {
			t.Fatalf("%s: got %d, body %s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Location") != "/api/documents/1" {
			t.Errorf("unexpected location %q", rr.Header().Get("Location"))
		}
		var resp DocumentResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.ID != 1 || resp.Title != "Invoice" || resp.HasText {
			t.Errorf("unexpected response %+v", resp)
		}
	}

	if got.Title != "Invoice" || got.Filename != "invoice.png" || string(got.Content) != "payload" {
		t.Errorf("unexpected upload %+v", got)
	}
	if got.ContentType != "" {
		t.Errorf("expected generic part type to be left for sniffing, got %q", got.ContentType)
	}
}

func TestUploadDocument_MissingFile(t *testing.T) {
	h := newTestServer(&mockDocuments{}, nil)
	body, ct := multipartBody(t, "no file", "", nil)

	rr := do(h, http.MethodPost, "/api/documents", body, ct)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeValidationFailed {
		t.Errorf("unexpected code %s", resp.Code)
	}
}

func TestUploadDocument_NotMultipart(t *testing.T) {
	h := newTestServer(&mockDocuments{}, nil)

	rr := do(h, http.MethodPost, "/api/documents", strings.NewReader("{}"), "application/json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d", rr.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"validation", domain.Validationf("file is empty"), http.StatusBadRequest, ErrorCodeValidationFailed},
		{"storage", errors.Join(domain.ErrStorage, errors.New("dial tcp 10.0.0.1")), http.StatusBadGateway, ErrorCodeStorageUnavailable},
		{"queue", errors.Join(domain.ErrQueue, errors.New("nats: timeout")), http.StatusBadGateway, ErrorCodeQueueUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &mockDocuments{ingestFn: func(context.Context, documentuc.Upload) (domdoc.Record, error) {
				return domdoc.Record{}, tt.err
			}}
			body, ct := multipartBody(t, "", "a.png", []byte("x"))

			rr := do(newTestServer(docs, nil), http.MethodPost, "/api/documents", body, ct)

			if rr.Code != tt.status {
				t.Fatalf("got %d, want %d", rr.Code, tt.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("got code %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "10.0.0.1") || strings.Contains(resp.Message, "nats:") {
				t.Errorf("driver detail leaked: %q", resp.Message)
			}
		})
	}
}

func TestGetDocument(t *testing.T) {
	docs := &mockDocuments{getFn: func(_ context.Context, id int64) (domdoc.Record, error) {
		if id != 3 {
			return domdoc.Record{}, domain.ErrDocumentNotFound
		}
		return sampleRecord(3).WithExtractedText("hello"), nil
	}}
	h := newTestServer(docs, nil)

	rr := do(h, http.MethodGet, "/api/documents/3", http.NoBody, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp DocumentResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 3 || !resp.HasText || !resp.UploadedAt.Equal(uploadedAt) {
		t.Errorf("unexpected response %+v", resp)
	}

	rr = do(h, http.MethodGet, "/api/documents/4", http.NoBody, "")
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != ErrorCodeNotFound {
		t.Errorf("expected 404 not_found, got %d", rr.Code)
	}
}

func TestInvalidID(t *testing.T) {
	h := newTestServer(&mockDocuments{}, nil)

	for _, path := range []string{"/api/documents/abc", "/api/documents/0", "/api/documents/-1/ocr"} {
		rr := do(h, http.MethodGet, path, http.NoBody, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d", path, rr.Code)
		}
	}
}

func TestGetExtractedText(t *testing.T) {
	docs := &mockDocuments{textFn: func(_ context.Context, id int64) (string, error) {
		if id == 2 {
			return "", domain.ErrTextNotReady
		}
		return "sample OCR text", nil
	}}
	h := newTestServer(docs, nil)

	rr := do(h, http.MethodGet, "/api/documents/1/ocr", http.NoBody, "")
	var resp TextResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || resp.Text != "sample OCR text" {
		t.Errorf("unexpected %d %+v", rr.Code, resp)
	}

	rr = do(h, http.MethodGet, "/api/documents/2/ocr", http.NoBody, "")
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != ErrorCodeTextNotReady {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestDownloadDocument(t *testing.T) {
	docs := &mockDocuments{downloadFn: func(context.Context, int64) (domdoc.Record, io.ReadCloser, error) {
		return sampleRecord(1), io.NopCloser(strings.NewReader("pngdata")), nil
	}}

	rr := do(newTestServer(docs, nil), http.MethodGet, "/api/documents/1/download", http.NoBody, "")

	if rr.Code != http.StatusOK || rr.Body.String() != "pngdata" {
		t.Fatalf("unexpected %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Content-Disposition") != `attachment; filename=abc_invoice.png` {
		t.Errorf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
}

func TestDownloadDocument_MissingBlob(t *testing.T) {
	docs := &mockDocuments{downloadFn: func(context.Context, int64) (domdoc.Record, io.ReadCloser, error) {
		return domdoc.Record{}, nil, domain.ErrBlobNotFound
	}}

	rr := do(newTestServer(docs, nil), http.MethodGet, "/api/documents/1/download", http.NoBody, "")

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d", rr.Code)
	}
}

func TestListDocuments(t *testing.T) {
	var got domdoc.ListQuery
	docs := &mockDocuments{listFn: func(_ context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
		got = q
		return []domdoc.Record{sampleRecord(1), sampleRecord(2)}, nil
	}}
	h := newTestServer(docs, nil)

	rr := do(h, http.MethodGet, "/api/documents?search=inv&sortField=title&direction=asc", http.NoBody, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp []DocumentResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 {
		t.Errorf("expected 2 items, got %d", len(resp))
	}
	want := domdoc.ListQuery{Search: "inv", SortField: domdoc.SortByTitle, Direction: domdoc.Asc}
	if got != want {
		t.Errorf("got query %+v, want %+v", got, want)
	}

	do(h, http.MethodGet, "/api/documents?sort=fileSize", http.NoBody, "")
	if got.SortField != domdoc.SortByFileSize {
		t.Errorf("expected sort alias, got %+v", got)
	}
}

func TestListDocuments_Empty(t *testing.T) {
	docs := &mockDocuments{listFn: func(context.Context, domdoc.ListQuery) ([]domdoc.Record, error) {
		return nil, nil
	}}

	rr := do(newTestServer(docs, nil), http.MethodGet, "/api/documents", http.NoBody, "")

	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rr.Body.String())
	}
}

func TestDeleteDocument(t *testing.T) {
	docs := &mockDocuments{deleteFn: func(_ context.Context, id int64) error {
		if id == 9 {
			return domain.ErrDocumentNotFound
		}
		return nil
	}}
	h := newTestServer(docs, nil)

	if rr := do(h, http.MethodDelete, "/api/documents/1", http.NoBody, ""); rr.Code != http.StatusNoContent {
		t.Errorf("got %d", rr.Code)
	}
	if rr := do(h, http.MethodDelete, "/api/documents/9", http.NoBody, ""); rr.Code != http.StatusNotFound {
		t.Errorf("got %d", rr.Code)
	}
}

func TestReprocessDocument(t *testing.T) {
	var got int64
	docs := &mockDocuments{reprocessFn: func(_ context.Context, id int64) error {
		got = id
		return nil
	}}

	rr := do(newTestServer(docs, nil), http.MethodPost, "/api/documents/5/reprocess", http.NoBody, "")

	if rr.Code != http.StatusAccepted || got != 5 {
		t.Errorf("got %d id=%d", rr.Code, got)
	}
}

func TestSearchDocuments(t *testing.T) {
	search := &mockSearcher{searchFn: func(_ context.Context, req searchuc.Request) (index.Page, error) {
		return index.Page{
			Items:      []index.Entry{{ID: "1", Title: "Elastic Test Document", ExtractedText: "about Elastic"}},
			Page:       req.Page,
			Size:       req.Size,
			TotalCount: 1,
		}, nil
	}}
	h := newTestServer(&mockDocuments{}, search)

	rr := do(h, http.MethodGet, "/api/search?query=Elastc&page=1&size=5&fuzzy=true", http.NoBody, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	want := searchuc.Request{Query: "Elastc", Page: 1, Size: 5, Fuzzy: true}
	if search.got != want {
		t.Errorf("got request %+v, want %+v", search.got, want)
	}
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCount != 1 || len(resp.Items) != 1 || resp.Items[0].ID != "1" || resp.Page != 1 || resp.Size != 5 {
		t.Errorf("unexpected response %+v", resp)
	}

	do(h, http.MethodGet, "/api/documents/search?query=x", http.NoBody, "")
	if search.got.Size != 10 || search.got.Page != 0 || search.got.Fuzzy {
		t.Errorf("expected defaults, got %+v", search.got)
	}
}

func TestSearchDocuments_EmptyPageSerializesItems(t *testing.T) {
	search := &mockSearcher{searchFn: func(_ context.Context, req searchuc.Request) (index.Page, error) {
		return index.EmptyPage(req.Page, req.Size), nil
	}}

	rr := do(newTestServer(&mockDocuments{}, search), http.MethodGet, "/api/search?query=x", http.NoBody, "")

	if !strings.Contains(rr.Body.String(), `"items":[]`) || !strings.Contains(rr.Body.String(), `"totalCount":0`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestSearchDocuments_Validation(t *testing.T) {
	search := &mockSearcher{searchFn: func(context.Context, searchuc.Request) (index.Page, error) {
		return index.Page{}, domain.Validationf("query is required")
	}}
	h := newTestServer(&mockDocuments{}, search)

	if rr := do(h, http.MethodGet, "/api/search", http.NoBody, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("got %d", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/api/search?query=x&size=ten", http.NoBody, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("got %d for malformed size", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		health := &mockHealth{report: healthuc.Report{
			Status: tt.status,
			Checks: map[string]healthuc.CheckResult{"records": healthuc.CheckOK},
		}}
		h := NewServer(&mockDocuments{}, &mockSearcher{}, health, Options{}, nil).Routes()

		rr := do(h, http.MethodGet, "/health", http.NoBody, "")

		if rr.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.status, rr.Code, tt.want)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(tt.status) || resp.Checks["records"] != "ok" {
			t.Errorf("unexpected body %+v", resp)
		}
	}
}

func TestRecoverer(t *testing.T) {
	docs := &mockDocuments{getFn: func(context.Context, int64) (domdoc.Record, error) {
		panic("boom")
	}}

	rr := do(newTestServer(docs, nil), http.MethodGet, "/api/documents/1", http.NoBody, "")

	if rr.Code != http.StatusInternalServerError || decodeError(t, rr).Code != ErrorCodeInternalError {
		t.Errorf("got %d", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	docs := &mockDocuments{getFn: func(context.Context, int64) (domdoc.Record, error) {
		return sampleRecord(1), nil
	}}

	rr := do(newTestServer(docs, nil), http.MethodGet, "/api/documents/1", http.NoBody, "")

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
