package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// Completer runs a single system+user exchange against a chat model and
// returns the trimmed response content.
type Completer struct {
	name    string
	runner  compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

var _ contractx.Completer = (*Completer)(nil)

type Option func(*Completer)

// WithTimeout bounds every Complete call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Completer) {
		c.timeout = d
	}
}

func New(
	ctx context.Context,
	name string,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	opts ...Option,
) (*Completer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required for %s", contractx.ErrValidation, name)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}

	runner, err := compileCompletionGraph(ctx, chatModel, systemPrompt, name)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s graph: %v", contractx.ErrModelInvoke, name, err)
	}

	c := &Completer{name: name, runner: runner}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Completer) Complete(ctx context.Context, input string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, c.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: %s returned no message", contractx.ErrSchemaViolation, c.name)
	}
	return strings.TrimSpace(msg.Content), nil
}

func compileCompletionGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	name string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add completion prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add completion model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add completion edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add completion edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add completion edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(name+".completion_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile completion graph: %w", err)
	}
	return runner, nil
}
