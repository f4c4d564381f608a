package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

func completionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *openaisdk.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := openaisdk.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(server.URL+"/"),
		option.WithMaxRetries(0),
	)
	return &client
}

func newClassifier(t *testing.T, client *openaisdk.Client) *Classifier {
	t.Helper()
	c, err := New(client, Config{Model: "judge-model"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClassifySendsRubricAndItem(t *testing.T) {
	t.Parallel()

	var (
		path    string
		payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxCompletionTokens int `json:"max_completion_tokens"`
		}
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("good")))
	})

	out, err := newClassifier(t, client).Classify(context.Background(), "rubric text", "Keywords: x")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if out != "good" {
		t.Fatalf("Classify() = %q", out)
	}

	if path != "/chat/completions" {
		t.Fatalf("path = %q", path)
	}
	if payload.Model != "judge-model" {
		t.Fatalf("model = %q", payload.Model)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Role != "system" || payload.Messages[0].Content != "rubric text" {
		t.Fatalf("unexpected system message: %+v", payload.Messages[0])
	}
	if payload.Messages[1].Role != "user" || payload.Messages[1].Content != "Keywords: x" {
		t.Fatalf("unexpected user message: %+v", payload.Messages[1])
	}
	if payload.MaxCompletionTokens != defaultMaxTokens {
		t.Fatalf("max_completion_tokens = %d, want %d", payload.MaxCompletionTokens, defaultMaxTokens)
	}
}

func TestClassifyWrapsTransportError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	if _, err := newClassifier(t, client).Classify(context.Background(), "rubric", "item"); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestClassifyNoChoices(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})

	if _, err := newClassifier(t, client).Classify(context.Background(), "rubric", "item"); !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Config{Model: "m"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nil client: expected ErrValidation, got %v", err)
	}

	client := openaisdk.NewClient(option.WithAPIKey("k"))
	if _, err := New(&client, Config{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing model: expected ErrValidation, got %v", err)
	}
}
