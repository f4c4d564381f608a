package llm

import (
	"errors"
	"testing"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

func baseConfig() Config {
	return Config{
		BaseURL:               "https://openrouter.ai/api/v1",
		APIKey:                " key ",
		Model:                 "qwen/qwen-2.5-7b-instruct",
		MaxCompletionToken:    2000,
		Temperature:           0.5,
		AgentTemperature:      -1,
		SummarizerTemperature: -1,
		ClassifierTemperature: 0,
		ClassifierMaxTokens:   8,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg := baseConfig()
	cfg.APIKey = "  "
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	cfg = baseConfig()
	cfg.Model = ""
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOpenRouterForDefaults(t *testing.T) {
	t.Parallel()

	out := baseConfig().OpenRouterFor(contractx.ModelRoleAgent)
	if out.Model != "qwen/qwen-2.5-7b-instruct" {
		t.Fatalf("unexpected model: %s", out.Model)
	}
	if out.Temperature != 0.5 {
		t.Fatalf("unexpected temperature: %v", out.Temperature)
	}
	if out.APIKey != "key" {
		t.Fatalf("api key must be trimmed: %q", out.APIKey)
	}
	if out.MaxCompletionToken == nil || *out.MaxCompletionToken != 2000 {
		t.Fatalf("unexpected max tokens: %v", out.MaxCompletionToken)
	}
}

func TestOpenRouterForRoleOverrides(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.SummarizerModel = "meta-llama/llama-3.1-8b-instruct"
	cfg.SummarizerTemperature = 0.2
	cfg.ClassifierModel = "openai/gpt-4o-mini"

	sum := cfg.OpenRouterFor(contractx.ModelRoleSummarizer)
	if sum.Model != "meta-llama/llama-3.1-8b-instruct" || sum.Temperature != 0.2 {
		t.Fatalf("unexpected summarizer config: %+v", sum)
	}

	cls := cfg.OpenRouterFor(contractx.ModelRoleClassifier)
	if cls.Model != "openai/gpt-4o-mini" || cls.Temperature != 0 {
		t.Fatalf("unexpected classifier config: %+v", cls)
	}
	if cls.MaxCompletionToken == nil || *cls.MaxCompletionToken != 8 {
		t.Fatalf("unexpected classifier max tokens: %v", cls.MaxCompletionToken)
	}

	agent := cfg.OpenRouterFor(contractx.ModelRoleAgent)
	if agent.Model != "qwen/qwen-2.5-7b-instruct" {
		t.Fatalf("agent must keep default model, got %s", agent.Model)
	}
}
