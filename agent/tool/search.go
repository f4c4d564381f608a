package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const (
	ToolSearchArticles = "search_articles"

	DefaultMaxResults = 2
	DefaultResultsCap = 5
)

// SearchArticles looks up articles matching the keywords verbatim.
type SearchArticles struct {
	backend    contractx.SearchBackend
	resultsCap int
}

var _ contractx.DocumentSource = (*SearchArticles)(nil)

func NewSearchArticles(backend contractx.SearchBackend, resultsCap int) *SearchArticles {
	if resultsCap <= 0 {
		resultsCap = DefaultResultsCap
	}
	return &SearchArticles{backend: backend, resultsCap: resultsCap}
}

func (s *SearchArticles) Name() string { return ToolSearchArticles }

func (s *SearchArticles) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolSearchArticles,
		Description: "Search arXiv for articles matching the keywords exactly as the user wrote them. Each article found is summarized.",
		Params: map[string]contractx.ParamSpec{
			"query":       {Type: contractx.ParamString, Desc: "Search keywords, unchanged from the user input", Required: true},
			"max_results": {Type: contractx.ParamInteger, Desc: fmt.Sprintf("Number of articles to fetch (default %d, at most %d)", DefaultMaxResults, s.resultsCap)},
		},
	}
}

func (s *SearchArticles) Documents(ctx context.Context, args map[string]any) ([]contractx.Document, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "max_results", DefaultMaxResults)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	limit = min(limit, s.resultsCap)

	docs, err := s.backend.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *SearchArticles) Invoke(ctx context.Context, args map[string]any) (string, error) {
	docs, err := s.Documents(ctx, args)
	if err != nil {
		return "", err
	}
	return renderDocuments(docs), nil
}

func renderDocuments(docs []contractx.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, strings.TrimSpace(d.Title)+"\n"+strings.TrimSpace(d.Text))
	}
	return strings.Join(parts, "\n\n")
}
