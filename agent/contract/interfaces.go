package contract

import "context"

type Tool interface {
	Name() string
	Spec() ToolSpec
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// DocumentSource is a tool whose output fans out into one summary per document.
type DocumentSource interface {
	Tool
	Documents(ctx context.Context, args map[string]any) ([]Document, error)
}

type ToolResolver interface {
	Resolve(name string) (Tool, error)
}

type Controller interface {
	Decide(ctx context.Context, messages []Message) (Message, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, calls []ToolCall, keywords string) (Outcome, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, doc Document) (string, error)
}

type QualityGate interface {
	Evaluate(ctx context.Context, in QualityInput) (QualityVerdict, error)
}

type Classifier interface {
	Classify(ctx context.Context, rubric string, item string) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, input string) (string, error)
}

type SearchBackend interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

type DocumentSet struct {
	Position  int
	Topic     string
	Documents []Document
}

type CorpusStore interface {
	DocumentSet(ctx context.Context, position int) (DocumentSet, error)
}

type SummaryCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, summary string) error
}
