package document

import (
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 678901234, time.FixedZone("X", 3600))

	rec, err := New("Invoice", "abc_invoice.pdf", "application/pdf", 1024, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID() != 0 {
		t.Errorf("ID() = %d, want 0 before creation", rec.ID())
	}
	if rec.Title() != "Invoice" {
		t.Errorf("Title() = %q", rec.Title())
	}
	if rec.BlobHandle() != "abc_invoice.pdf" {
		t.Errorf("BlobHandle() = %q", rec.BlobHandle())
	}
	if rec.FileSize() != 1024 {
		t.Errorf("FileSize() = %d", rec.FileSize())
	}
	if rec.UploadedAt().Location() != time.UTC {
		t.Errorf("UploadedAt() should be UTC, got %v", rec.UploadedAt().Location())
	}
	if rec.UploadedAt().Nanosecond() != 678000000 {
		t.Errorf("UploadedAt() should be truncated to ms, got %d", rec.UploadedAt().Nanosecond())
	}
	if _, ok := rec.ExtractedText(); ok {
		t.Error("new record must not carry text")
	}
	if rec.HasText() {
		t.Error("HasText() should be false")
	}
}

func TestNew_DefaultContentType(t *testing.T) {
	rec, err := New("", "h", "", 1, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ContentType() != "application/octet-stream" {
		t.Errorf("ContentType() = %q", rec.ContentType())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		blob string
		size int64
	}{
		{"empty blob handle", "", 10},
		{"zero size", "h", 0},
		{"negative size", "h", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("t", tt.blob, "text/plain", tt.size, time.Now()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWithExtractedText_Copies(t *testing.T) {
	rec, _ := New("t", "h", "text/plain", 3, time.Now())
	rec = rec.WithID(9)

	updated := rec.WithExtractedText("Test OCR")

	if _, ok := rec.ExtractedText(); ok {
		t.Error("original record must stay without text")
	}
	text, ok := updated.ExtractedText()
	if !ok || text != "Test OCR" {
		t.Errorf("ExtractedText() = %q, %v", text, ok)
	}
	if updated.ID() != 9 {
		t.Errorf("ID() = %d, want 9", updated.ID())
	}
}

func TestHasText_EmptyString(t *testing.T) {
	rec, _ := New("t", "h", "text/plain", 3, time.Now())
	rec = rec.WithExtractedText("")

	if _, ok := rec.ExtractedText(); !ok {
		t.Error("extraction completed, text should be present")
	}
	if rec.HasText() {
		t.Error("empty text must not count as HasText")
	}
}
