package search

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.bleve"))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	artifacts := []*Artifact{
		{CaseID: "case-1", Kind: "case_diary", Name: "case_diary.txt", Content: "the accused attacked the victim with a knife"},
		{CaseID: "case-1", Kind: "final", Name: "chargesheet.md", Content: "final form under section 173"},
		{CaseID: "case-2", Kind: "case_diary", Name: "case_diary.txt", Content: "a knife was recovered from the scene"},
	}
	for _, a := range artifacts {
		if err := idx.Index(ctx, a); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	if n, err := idx.DocCount(); err != nil || n != 3 {
		t.Fatalf("DocCount = %d, %v, want 3", n, err)
	}

	results, err := idx.Search(ctx, "case-1", "knife", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (scoped to case-1)", len(results))
	}
	if results[0].Kind != "case_diary" || results[0].Name != "case_diary.txt" {
		t.Errorf("hit = %+v", results[0])
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f", results[0].Score)
	}
	if !strings.Contains(results[0].Snippet, "knife") {
		t.Errorf("snippet = %q, want artifact content preview", results[0].Snippet)
	}
}

func TestSearchSnippetTruncated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	long := "seizure memo " + strings.Repeat("additional panchanama detail ", 40)
	a := &Artifact{CaseID: "case-1", Kind: "final", Name: "final_report.txt", Content: long}
	if err := idx.Index(ctx, a); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, "case-1", "seizure", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	snippet := results[0].Snippet
	if !strings.HasPrefix(snippet, "seizure memo") {
		t.Errorf("snippet = %q", snippet)
	}
	if !strings.HasSuffix(snippet, "...") {
		t.Errorf("long content should truncate with an ellipsis, got %q", snippet)
	}
	if len(snippet) >= len(long) {
		t.Errorf("snippet not shortened: %d bytes", len(snippet))
	}
}

func TestIndexReplacesArtifact(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	a := &Artifact{CaseID: "case-1", Kind: "case_diary", Name: "case_diary.txt", Content: "first version"}
	if err := idx.Index(ctx, a); err != nil {
		t.Fatal(err)
	}
	a.Content = "regenerated version"
	if err := idx.Index(ctx, a); err != nil {
		t.Fatal(err)
	}

	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount = %d, want 1 after re-index", n)
	}
	results, err := idx.Search(ctx, "case-1", "regenerated", 10)
	if err != nil || len(results) != 1 {
		t.Errorf("results = %v, %v", results, err)
	}
	results, err = idx.Search(ctx, "case-1", "first", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("stale results = %v, %v", results, err)
	}
}

func TestSearchNoMatches(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "case-1", "anything", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}
