package tool

import (
	"context"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const ToolLoadDocumentSet = "load_document_set"

// LoadDocumentSet returns the pre-ingested documents stored at a position.
type LoadDocumentSet struct {
	store contractx.CorpusStore
}

var _ contractx.DocumentSource = (*LoadDocumentSet)(nil)

func NewLoadDocumentSet(store contractx.CorpusStore) *LoadDocumentSet {
	return &LoadDocumentSet{store: store}
}

func (l *LoadDocumentSet) Name() string { return ToolLoadDocumentSet }

func (l *LoadDocumentSet) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolLoadDocumentSet,
		Description: "Load the stored set of articles at the given index. Each article in the set is summarized.",
		Params: map[string]contractx.ParamSpec{
			"query": {Type: contractx.ParamInteger, Desc: "Index of the document set, unchanged from the user input", Required: true},
		},
	}
}

func (l *LoadDocumentSet) Documents(ctx context.Context, args map[string]any) ([]contractx.Document, error) {
	position, err := requiredIntArg(args, "query")
	if err != nil {
		return nil, err
	}
	set, err := l.store.DocumentSet(ctx, position)
	if err != nil {
		return nil, err
	}
	return set.Documents, nil
}

func (l *LoadDocumentSet) Invoke(ctx context.Context, args map[string]any) (string, error) {
	docs, err := l.Documents(ctx, args)
	if err != nil {
		return "", err
	}
	return renderDocuments(docs), nil
}
