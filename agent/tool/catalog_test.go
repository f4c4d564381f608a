package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

type fakeBackend struct {
	docs      []contractx.Document
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeBackend) Search(_ context.Context, query string, maxResults int) ([]contractx.Document, error) {
	f.lastQuery = query
	f.lastLimit = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeCorpus struct {
	sets map[int]contractx.DocumentSet
}

func (f *fakeCorpus) DocumentSet(_ context.Context, position int) (contractx.DocumentSet, error) {
	set, ok := f.sets[position]
	if !ok {
		return contractx.DocumentSet{}, contractx.ErrDocumentSetAbsent
	}
	return set, nil
}

type echoCompleter struct {
	prefix string
	input  string
}

func (e *echoCompleter) Complete(_ context.Context, input string) (string, error) {
	e.input = input
	return e.prefix + input, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	t.Parallel()

	search := NewSearchArticles(&fakeBackend{}, 5)
	rewrite := NewRewriteQuery(&echoCompleter{})

	reg, err := NewRegistry(search, rewrite)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	got, err := reg.Resolve(ToolSearchArticles)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Name() != ToolSearchArticles {
		t.Fatalf("unexpected tool: %s", got.Name())
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != ToolSearchArticles || names[1] != ToolRewriteQuery {
		t.Fatalf("unexpected registration order: %#v", names)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(NewSearchArticles(&fakeBackend{}, 5), NewSearchArticles(&fakeBackend{}, 5))
	if !errors.Is(err, contractx.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if _, err := reg.Resolve("missing"); !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryInfos(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(NewSearchArticles(&fakeBackend{}, 5), NewLoadDocumentSet(&fakeCorpus{}))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	infos := reg.Infos()
	if len(infos) != 2 {
		t.Fatalf("expected 2 tool infos, got %d", len(infos))
	}
	if infos[0].Name != ToolSearchArticles {
		t.Fatalf("unexpected first tool: %s", infos[0].Name)
	}
	if infos[1].Name != ToolLoadDocumentSet {
		t.Fatalf("unexpected second tool: %s", infos[1].Name)
	}

	if infos[1].ParamsOneOf == nil {
		t.Fatal("expected params for load_document_set")
	}
	if got := paramDataType(contractx.ParamInteger); got != schema.Integer {
		t.Fatalf("unexpected integer mapping: %s", got)
	}
}

func TestSearchArticlesDefaultsAndCap(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{docs: []contractx.Document{{Title: "a"}, {Title: "b"}, {Title: "c"}}}
	search := NewSearchArticles(backend, 5)

	docs, err := search.Documents(context.Background(), map[string]any{"query": "  graph neural networks "})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if backend.lastLimit != DefaultMaxResults {
		t.Fatalf("expected default limit %d, got %d", DefaultMaxResults, backend.lastLimit)
	}
	if backend.lastQuery != "graph neural networks" {
		t.Fatalf("unexpected query: %q", backend.lastQuery)
	}
	if len(docs) != 2 {
		t.Fatalf("expected truncation to 2 docs, got %d", len(docs))
	}

	if _, err := search.Documents(context.Background(), map[string]any{"query": "x", "max_results": float64(50)}); err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if backend.lastLimit != 5 {
		t.Fatalf("expected cap 5, got %d", backend.lastLimit)
	}

	if _, err := search.Documents(context.Background(), map[string]any{"query": "x", "max_results": "3"}); err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if backend.lastLimit != 3 {
		t.Fatalf("expected string max_results to parse, got %d", backend.lastLimit)
	}
}

func TestSearchArticlesValidation(t *testing.T) {
	t.Parallel()

	search := NewSearchArticles(&fakeBackend{}, 5)
	if _, err := search.Documents(context.Background(), map[string]any{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing query, got %v", err)
	}
	if _, err := search.Documents(context.Background(), map[string]any{"query": 42}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-string query, got %v", err)
	}
	if _, err := search.Documents(context.Background(), map[string]any{"query": "x", "max_results": 1.5}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for fractional max_results, got %v", err)
	}
}

func TestSearchArticlesInvokeRendersDocuments(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{docs: []contractx.Document{{Title: "A", Text: "one"}, {Title: "B", Text: "two"}}}
	out, err := NewSearchArticles(backend, 5).Invoke(context.Background(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "A\none\n\nB\ntwo" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLoadDocumentSet(t *testing.T) {
	t.Parallel()

	corpus := &fakeCorpus{sets: map[int]contractx.DocumentSet{
		3: {Position: 3, Topic: "diffusion models", Documents: []contractx.Document{{Title: "d1"}, {Title: "d2"}}},
	}}
	tool := NewLoadDocumentSet(corpus)

	docs, err := tool.Documents(context.Background(), map[string]any{"query": float64(3)})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Title != "d1" {
		t.Fatalf("unexpected documents: %#v", docs)
	}

	if _, err := tool.Documents(context.Background(), map[string]any{"query": 9}); !errors.Is(err, contractx.ErrDocumentSetAbsent) {
		t.Fatalf("expected ErrDocumentSetAbsent, got %v", err)
	}
	if _, err := tool.Documents(context.Background(), map[string]any{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompletionTools(t *testing.T) {
	t.Parallel()

	rewriter := &echoCompleter{prefix: "rewritten: "}
	out, err := NewRewriteQuery(rewriter).Invoke(context.Background(), map[string]any{"query": "llm agents"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "rewritten: llm agents" {
		t.Fatalf("unexpected output: %q", out)
	}

	overview := NewGeneralOverview(&echoCompleter{})
	if overview.Name() != ToolGeneralOverview {
		t.Fatalf("unexpected name: %s", overview.Name())
	}
	if _, err := overview.Invoke(context.Background(), map[string]any{"query": "wrong arg"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(overview.Spec().Description, "overview") {
		t.Fatalf("unexpected description: %s", overview.Spec().Description)
	}
}
