// Package search provides Bleve-backed keyword search over case artifacts:
// parsed records, diary pages, and generated reports.
package search

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/nyaya/caseflow/pkg/utils"
)

// snippetChars bounds the content preview carried on each search hit.
const snippetChars = 200

// Artifact is one indexed piece of case output.
type Artifact struct {
	CaseID  string `json:"case_id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Result is one search hit. Snippet is the leading slice of the matched
// artifact's content, for display next to the hit.
type Result struct {
	Kind    string  `json:"kind"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Index is a Bleve index over case artifacts. Artifact IDs are
// "<caseID>/<kind>/<name>", so re-indexing an artifact replaces it.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a rebuild after mapping changes.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open search index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so legal terms
	// match exactly as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("name", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("case_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)

	im.AddDocumentMapping("artifact", docMapping)
	im.DefaultType = "artifact"
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{index: index}, nil
}

// Index adds or replaces an artifact.
func (i *Index) Index(ctx context.Context, a *Artifact) error {
	id := a.CaseID + "/" + a.Kind + "/" + a.Name
	return i.index.Index(id, a)
}

// Search runs a match query over one case's artifacts, scoped by a
// conjunction with an exact case_id term.
func (i *Index) Search(ctx context.Context, caseID, query string, limit int) ([]*Result, error) {
	caseQuery := bleve.NewTermQuery(caseID)
	caseQuery.SetField("case_id")
	match := bleve.NewMatchQuery(query)
	conj := bleve.NewConjunctionQuery(caseQuery, match)

	req := bleve.NewSearchRequest(conj)
	req.Size = limit
	req.Fields = []string{"kind", "name", "content"}
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		r := &Result{Score: hit.Score}
		if v, ok := hit.Fields["kind"].(string); ok {
			r.Kind = v
		}
		if v, ok := hit.Fields["name"].(string); ok {
			r.Name = v
		}
		if v, ok := hit.Fields["content"].(string); ok {
			r.Snippet = utils.Truncate(v, snippetChars)
		}
		out = append(out, r)
	}
	return out, nil
}

// DocCount returns the number of indexed artifacts.
func (i *Index) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
