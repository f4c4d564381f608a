package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const historyKey = "history"

// Controller asks the reasoning model for the next step given the whole
// conversation. It never mutates the conversation it is given.
type Controller struct {
	runner compose.Runnable[map[string]any, *schema.Message]
	newID  func() string
}

var _ contractx.Controller = (*Controller)(nil)

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*Controller, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: reasoning model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: agent system prompt", contractx.ErrPromptMissing)
	}

	var bound einomodel.BaseChatModel = chatModel
	if len(tools) > 0 {
		toolModel, err := chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
		}
		bound = toolModel
	}

	runner, err := compileControllerGraph(ctx, bound, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile controller graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Controller{runner: runner, newID: uuid.NewString}, nil
}

func (c *Controller) Decide(ctx context.Context, messages []contractx.Message) (contractx.Message, error) {
	if len(messages) == 0 {
		return contractx.Message{}, contractx.ErrEmptyState
	}

	out, err := c.runner.Invoke(ctx, map[string]any{historyKey: toSchemaMessages(messages)})
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: reasoning model: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return contractx.Message{}, fmt.Errorf("%w: reasoning model returned no message", contractx.ErrSchemaViolation)
	}
	return c.fromSchemaMessage(out), nil
}

func compileControllerGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder(historyKey, false),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add controller prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add controller model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add controller edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add controller edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add controller edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("controller.decide_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile controller graph: %w", err)
	}
	return runner, nil
}

// toSchemaMessages renders the conversation for the provider. An assistant
// message whose tool calls were never answered (the batch was abandoned) is
// sent without its calls, since providers reject unanswered calls.
func toSchemaMessages(messages []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for i, m := range messages {
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case contractx.RoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case contractx.RoleAssistant:
			if m.HasToolCalls() && !answered(messages, i) {
				out = append(out, schema.AssistantMessage(elidedContent(m), nil))
				continue
			}
			out = append(out, schema.AssistantMessage(m.Content, toSchemaToolCalls(m.ToolCalls)))
		}
	}
	return out
}

func answered(messages []contractx.Message, idx int) bool {
	return idx+1 < len(messages) && messages[idx+1].Role == contractx.RoleTool
}

func elidedContent(m contractx.Message) string {
	if strings.TrimSpace(m.Content) != "" {
		return m.Content
	}
	names := make([]string, 0, len(m.ToolCalls))
	for _, c := range m.ToolCalls {
		names = append(names, c.Name)
	}
	return "Called " + strings.Join(names, ", ") + "."
}

func toSchemaToolCalls(calls []contractx.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := "{}"
		if len(c.Args) > 0 {
			if raw, err := json.Marshal(c.Args); err == nil {
				args = string(raw)
			}
		}
		out = append(out, schema.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	return out
}

func (c *Controller) fromSchemaMessage(msg *schema.Message) contractx.Message {
	calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			id = c.newID()
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Str("call_id", id).Msg("tool arguments are not valid JSON")
				args = map[string]any{}
			}
		}
		calls = append(calls, contractx.ToolCall{ID: id, Name: tc.Function.Name, Args: args})
	}

	if len(calls) == 0 {
		return contractx.AssistantMessage(msg.Content)
	}
	return contractx.AssistantMessage(msg.Content, calls...)
}
