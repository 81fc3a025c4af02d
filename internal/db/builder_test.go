package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_DocumentSchema(t *testing.T) {
	idx := NewIndex("idx:docs").
		Prefix("docs:entry:").
		Language("english").
		Text("title", 2).
		Text("extractedText", 0).
		TextNoStem("extractedTextNgram").
		Numeric("uploadedAt", true).
		Numeric("fileSize", false).
		Tag("contentType").
		MustBuild()

	if len(idx.Fields) != 6 {
		t.Fatalf("fields count = %d, want 6", len(idx.Fields))
	}
	if idx.Fields[0].Weight != 2 {
		t.Errorf("title weight = %v, want 2", idx.Fields[0].Weight)
	}
	if !idx.Fields[2].NoStem {
		t.Error("extractedTextNgram should be NOSTEM")
	}
	if !idx.Fields[3].Sortable || idx.Fields[3].Type != IndexFieldNumeric {
		t.Errorf("uploadedAt = %+v, want sortable NUMERIC", idx.Fields[3])
	}
	if idx.Fields[5].Type != IndexFieldTag {
		t.Errorf("contentType = %+v, want TAG", idx.Fields[5])
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	if _, err := NewIndex("").Tag("t").Build(); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewIndex("bad name!").Tag("t").Build(); err == nil {
		t.Error("expected error for invalid name")
	}
	if _, err := NewIndex("idx").Build(); err == nil {
		t.Error("expected error for no fields")
	}
	if _, err := NewIndex("idx").Tag("a").Text("a", 0).Build(); err == nil {
		t.Error("expected error for duplicate field")
	}
	if _, err := NewIndex("idx").Text("a", -1).Build(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestIndexBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	NewIndex("").MustBuild()
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("idx:docs").
		Prefix("doc:").
		Language("english").
		TextNoStem("ngram").
		Numeric("at", true).
		MustBuild()

	s := idx.String()
	want := "FT.CREATE idx:docs ON HASH PREFIX 1 doc: LANGUAGE english SCHEMA ngram TEXT NOSTEM at NUMERIC SORTABLE"
	if s != want {
		t.Errorf("String() =\n%q\nwant\n%q", s, want)
	}
	if !strings.HasPrefix(s, "FT.CREATE") {
		t.Error("expected FT.CREATE prefix")
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"idx", "idx:docs", "my-index_1"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	invalid := []string{"", "has space", "dot.name", "слово"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestEscapeTerm(t *testing.T) {
	got := EscapeTerm("a-b@c.d")
	want := `a\-b\@c\.d`
	if got != want {
		t.Errorf("EscapeTerm = %q, want %q", got, want)
	}
}

func TestTextQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       TextQuery
		wantErr bool
	}{
		{"ok", TextQuery{IndexName: "idx", Query: "@title:(x)", Limit: 10}, false},
		{"no index", TextQuery{Query: "x"}, true},
		{"blank query", TextQuery{IndexName: "idx", Query: "  "}, true},
		{"negative offset", TextQuery{IndexName: "idx", Query: "x", Offset: -1}, true},
		{"negative limit", TextQuery{IndexName: "idx", Query: "x", Limit: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.q.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
