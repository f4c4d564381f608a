package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	controllerx "github.com/echanatwell/ArxivAgent/agent/agents/controller"
	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	dispatchx "github.com/echanatwell/ArxivAgent/agent/dispatch"
	toolx "github.com/echanatwell/ArxivAgent/agent/tool"
)

type fakeController struct {
	replies []contractx.Message
	err     error
	calls   int
	seen    [][]contractx.Message
}

func (f *fakeController) Decide(ctx context.Context, messages []contractx.Message) (contractx.Message, error) {
	f.calls++
	f.seen = append(f.seen, messages)
	if f.err != nil {
		return contractx.Message{}, f.err
	}
	if len(f.replies) == 0 {
		return contractx.Message{}, errors.New("no fake reply left")
	}
	// The last scripted reply repeats forever.
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeDispatcher struct {
	outcomes []contractx.Outcome
	err      error
	calls    int
	keywords []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, calls []contractx.ToolCall, keywords string) (contractx.Outcome, error) {
	f.calls++
	f.keywords = append(f.keywords, keywords)
	if f.err != nil {
		return contractx.Outcome{}, f.err
	}
	if len(f.outcomes) == 0 {
		results := make([]contractx.ToolResult, 0, len(calls))
		for _, c := range calls {
			results = append(results, contractx.ToolResult{CallID: c.ID, Name: c.Name, Content: "ok"})
		}
		return contractx.Completed(results), nil
	}
	out := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return out, nil
}

func searchCall(id string) contractx.ToolCall {
	return contractx.ToolCall{ID: id, Name: "search_articles", Args: map[string]any{"query": "graph neural networks"}}
}

func newOrchestrator(t *testing.T, ctrl contractx.Controller, disp contractx.Dispatcher, maxTurns int) *Orchestrator {
	t.Helper()
	o, err := New(ctrl, disp, Config{MaxTurns: maxTurns})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestRunTerminalAfterOneTurn(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{replies: []contractx.Message{contractx.AssistantMessage("final survey")}}
	disp := &fakeDispatcher{}
	o := newOrchestrator(t, ctrl, disp, 0)

	res, err := o.Run(context.Background(), Request{Query: "graph neural networks"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "final survey" {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if res.Turns != 1 {
		t.Fatalf("expected 1 turn, got %d", res.Turns)
	}
	if disp.calls != 0 {
		t.Fatalf("dispatcher must not run, got %d calls", disp.calls)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("expected user+assistant, got %d messages", len(res.Messages))
	}
	if res.Messages[0].Role != contractx.RoleUser || res.Messages[0].Content != "graph neural networks" {
		t.Fatalf("unexpected seed message: %#v", res.Messages[0])
	}
	if res.RunID == "" {
		t.Fatal("run id must be set")
	}
}

func TestRunToolTurnThenFinal(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{replies: []contractx.Message{
		contractx.AssistantMessage("", searchCall("c1"), contractx.ToolCall{ID: "c2", Name: "rewrite_query"}),
		contractx.AssistantMessage("survey of GNNs"),
	}}
	disp := &fakeDispatcher{}
	o := newOrchestrator(t, ctrl, disp, 0)

	res, err := o.Run(context.Background(), Request{Query: "graph neural networks"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "survey of GNNs" || res.Turns != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	roles := make([]contractx.Role, 0, len(res.Messages))
	for _, m := range res.Messages {
		roles = append(roles, m.Role)
	}
	want := []contractx.Role{contractx.RoleUser, contractx.RoleAssistant, contractx.RoleTool, contractx.RoleTool, contractx.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("unexpected roles: %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("unexpected roles: %v", roles)
		}
	}
	if res.Messages[2].ToolCallID != "c1" || res.Messages[3].ToolCallID != "c2" {
		t.Fatalf("tool messages out of call order: %#v", res.Messages[2:4])
	}
	if disp.keywords[0] != "graph neural networks" {
		t.Fatalf("keywords must default to the query, got %q", disp.keywords[0])
	}

	// The second decision sees the full history including tool results.
	if len(ctrl.seen[1]) != 4 {
		t.Fatalf("controller saw %d messages on the second turn", len(ctrl.seen[1]))
	}
}

func TestRunRestartAppendsUserMessage(t *testing.T) {
	t.Parallel()

	restart := contractx.UserMessage("Search again from scratch for articles matching these keywords: graph neural networks")
	ctrl := &fakeController{replies: []contractx.Message{
		contractx.AssistantMessage("", searchCall("c1")),
		contractx.AssistantMessage("", searchCall("c2")),
		contractx.AssistantMessage("survey"),
	}}
	disp := &fakeDispatcher{outcomes: []contractx.Outcome{
		contractx.Restarted(restart, contractx.ToolResult{CallID: "c1", Content: dispatchx.RestartMarker}, 2),
	}}
	o := newOrchestrator(t, ctrl, disp, 0)

	res, err := o.Run(context.Background(), Request{Query: "graph neural networks"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Restarts != 1 || res.Turns != 3 {
		t.Fatalf("unexpected counters: turns=%d restarts=%d", res.Turns, res.Restarts)
	}

	msgs := res.Messages
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	if msgs[2].Role != contractx.RoleUser || msgs[2].Content != restart.Content {
		t.Fatalf("restart message missing: %#v", msgs[2])
	}
	for _, m := range msgs[:3] {
		if m.Role == contractx.RoleTool {
			t.Fatalf("abandoned batch must not produce tool messages: %#v", msgs)
		}
	}
	if msgs[4].Role != contractx.RoleTool || msgs[4].ToolCallID != "c2" {
		t.Fatalf("unexpected tool message after restart: %#v", msgs[4])
	}
}

func TestRunTurnLimit(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{replies: []contractx.Message{contractx.AssistantMessage("", searchCall("c"))}}
	disp := &fakeDispatcher{}
	o := newOrchestrator(t, ctrl, disp, 3)

	res, err := o.Run(context.Background(), Request{Query: "graph neural networks"})
	if !errors.Is(err, contractx.ErrTurnLimitExceeded) {
		t.Fatalf("expected ErrTurnLimitExceeded, got %v", err)
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %T", err)
	}
	if runErr.Kind != KindTurnLimit || runErr.Turn != 3 {
		t.Fatalf("unexpected run error: %+v", runErr)
	}
	if ctrl.calls != 3 || disp.calls != 2 {
		t.Fatalf("unexpected call counts: controller=%d dispatcher=%d", ctrl.calls, disp.calls)
	}
	if res.Turns != 3 {
		t.Fatalf("partial result must carry the turn count, got %d", res.Turns)
	}
}

func TestRunInvalidQuery(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	o := newOrchestrator(t, ctrl, &fakeDispatcher{}, 0)

	_, err := o.Run(context.Background(), Request{Query: "   "})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Kind != KindInvalidRequest || runErr.Turn != 0 {
		t.Fatalf("unexpected run error: %v", err)
	}
	if ctrl.calls != 0 {
		t.Fatalf("controller must not run, got %d calls", ctrl.calls)
	}
}

func TestRunModelFailure(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{err: contractx.ErrModelInvoke}
	o := newOrchestrator(t, ctrl, &fakeDispatcher{}, 0)

	_, err := o.Run(context.Background(), Request{Query: "q"})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Kind != KindModel || runErr.Turn != 1 {
		t.Fatalf("unexpected run error: %+v", runErr)
	}
	if !strings.Contains(err.Error(), "turn 1") {
		t.Fatalf("error must mention the turn: %v", err)
	}
}

func TestRunKeywordsOverride(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{replies: []contractx.Message{
		contractx.AssistantMessage("", contractx.ToolCall{ID: "c1", Name: "load_document_set", Args: map[string]any{"query": float64(3)}}),
		contractx.AssistantMessage("survey"),
	}}
	disp := &fakeDispatcher{}
	o := newOrchestrator(t, ctrl, disp, 0)

	if _, err := o.Run(context.Background(), Request{Query: "3", Keywords: "diffusion models"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.keywords[0] != "diffusion models" {
		t.Fatalf("unexpected keywords: %q", disp.keywords[0])
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeDispatcher{}, Config{}); err == nil {
		t.Fatal("expected error for missing controller")
	}
	if _, err := New(&fakeController{}, nil, Config{}); err == nil {
		t.Fatal("expected error for missing dispatcher")
	}
}

type fakeToolCallingModel struct {
	responses []*schema.Message
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeBackend struct {
	docs []contractx.Document
}

func (f *fakeBackend) Search(ctx context.Context, query string, maxResults int) ([]contractx.Document, error) {
	return f.docs, nil
}

type titleSummarizer struct{}

func (titleSummarizer) Summarize(ctx context.Context, doc contractx.Document) (string, error) {
	return "summary of " + doc.Title, nil
}

type badTitles map[string]bool

func (b badTitles) Evaluate(ctx context.Context, in contractx.QualityInput) (contractx.QualityVerdict, error) {
	if b[in.Document.Title] {
		return contractx.VerdictUnacceptable, nil
	}
	return contractx.VerdictAcceptable, nil
}

func TestRunWithRealComponents(t *testing.T) {
	t.Parallel()

	searchCallMsg := func(id string) *schema.Message {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: toolx.ToolSearchArticles, Arguments: `{"query":"graph neural networks","max_results":3}`},
		}})
	}
	model := &fakeToolCallingModel{responses: []*schema.Message{
		searchCallMsg("c1"),
		schema.AssistantMessage("Survey: A, C", nil),
	}}

	backend := &fakeBackend{docs: []contractx.Document{
		{Title: "A", Text: "a"},
		{Title: "B", Text: "b"},
		{Title: "C", Text: "c"},
	}}
	registry, err := toolx.NewRegistry(toolx.NewSearchArticles(backend, 5))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ctrl, err := controllerx.New(context.Background(), model, "agent prompt", registry.Infos())
	if err != nil {
		t.Fatalf("controller.New() error = %v", err)
	}
	disp, err := dispatchx.New(registry, titleSummarizer{}, badTitles{"B": true})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}

	o := newOrchestrator(t, ctrl, disp, 0)
	res, err := o.Run(context.Background(), Request{Query: "graph neural networks"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "Survey: A, C" {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}

	toolMsg := res.Messages[2]
	if toolMsg.Role != contractx.RoleTool || toolMsg.ToolCallID != "c1" {
		t.Fatalf("unexpected tool message: %#v", toolMsg)
	}
	want := "Summaries:\n\nsummary of A\n\nsummary of B\n\nsummary of C"
	if toolMsg.Content != want {
		t.Fatalf("unexpected tool content: %q", toolMsg.Content)
	}
}
