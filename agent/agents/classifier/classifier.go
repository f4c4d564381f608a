package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const defaultMaxTokens = 8

// Classifier asks a chat completion endpoint for a one-word label. The rubric
// goes in as the system message and the item as the user message.
type Classifier struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

var _ contractx.Classifier = (*Classifier)(nil)

type Config struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

func New(client *openaisdk.Client, cfg Config) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: classifier client is required", contractx.ErrValidation)
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, fmt.Errorf("%w: classifier model is required", contractx.ErrValidation)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Classifier{
		client:      client,
		model:       modelName,
		maxTokens:   int64(maxTokens),
		temperature: float64(cfg.Temperature),
		timeout:     cfg.Timeout,
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, rubric string, item string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(rubric),
			openaisdk.UserMessage(item),
		},
		MaxCompletionTokens: openaisdk.Int(c.maxTokens),
		Temperature:         openaisdk.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: classifier: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: classifier returned no choices", contractx.ErrSchemaViolation)
	}
	return resp.Choices[0].Message.Content, nil
}
