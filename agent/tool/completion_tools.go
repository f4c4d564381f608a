package tool

import (
	"context"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const (
	ToolRewriteQuery    = "rewrite_query"
	ToolGeneralOverview = "general_overview"
)

// completionTool forwards a single string argument to a completer.
type completionTool struct {
	spec      contractx.ToolSpec
	argName   string
	completer contractx.Completer
}

var _ contractx.Tool = (*completionTool)(nil)

func NewRewriteQuery(completer contractx.Completer) contractx.Tool {
	return &completionTool{
		argName:   "query",
		completer: completer,
		spec: contractx.ToolSpec{
			Name:        ToolRewriteQuery,
			Description: "Rewrite a keyword query into a sharper search query for arXiv. Use only when a search returned nothing useful.",
			Params: map[string]contractx.ParamSpec{
				"query": {Type: contractx.ParamString, Desc: "The keyword query to rewrite", Required: true},
			},
		},
	}
}

func NewGeneralOverview(completer contractx.Completer) contractx.Tool {
	return &completionTool{
		argName:   "text",
		completer: completer,
		spec: contractx.ToolSpec{
			Name:        ToolGeneralOverview,
			Description: "Write a general overview of the approaches described in a set of article summaries.",
			Params: map[string]contractx.ParamSpec{
				"text": {Type: contractx.ParamString, Desc: "The article summaries to survey", Required: true},
			},
		},
	}
}

func (c *completionTool) Name() string { return c.spec.Name }

func (c *completionTool) Spec() contractx.ToolSpec { return c.spec }

func (c *completionTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	input, err := stringArg(args, c.argName)
	if err != nil {
		return "", err
	}
	return c.completer.Complete(ctx, input)
}
