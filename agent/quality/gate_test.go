package quality

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

type stubClassifier struct {
	reply  string
	err    error
	rubric string
	item   string
}

func (s *stubClassifier) Classify(_ context.Context, rubric, item string) (string, error) {
	s.rubric = rubric
	s.item = item
	return s.reply, s.err
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	cases := map[string]contractx.QualityVerdict{
		"bad":              contractx.VerdictUnacceptable,
		"  Bad\n":          contractx.VerdictUnacceptable,
		"\"bad\"":          contractx.VerdictUnacceptable,
		"**BAD**":          contractx.VerdictUnacceptable,
		"bad.":             contractx.VerdictUnacceptable,
		"`bad`":            contractx.VerdictUnacceptable,
		"good":             contractx.VerdictAcceptable,
		"":                 contractx.VerdictAcceptable,
		"not bad":          contractx.VerdictAcceptable,
		"bad, off-topic":   contractx.VerdictAcceptable,
		"I think it's bad": contractx.VerdictAcceptable,
	}
	for reply, want := range cases {
		if got := ParseVerdict(reply); got != want {
			t.Fatalf("ParseVerdict(%q) = %v, want %v", reply, got, want)
		}
	}
}

func TestEvaluateSendsRubricAndItem(t *testing.T) {
	t.Parallel()

	cls := &stubClassifier{reply: "bad"}
	gate, err := NewGate(cls, "rubric")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	verdict, err := gate.Evaluate(context.Background(), contractx.QualityInput{
		Summary:  "A summary.",
		Document: contractx.Document{Title: "Paper"},
		Keywords: "graph neural networks",
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict != contractx.VerdictUnacceptable {
		t.Fatalf("verdict = %v", verdict)
	}
	if cls.rubric != "rubric" {
		t.Fatalf("rubric = %q", cls.rubric)
	}
	if want := "Keywords: graph neural networks\n\nTitle: Paper\n\nSummary: A summary."; cls.item != want {
		t.Fatalf("item = %q, want %q", cls.item, want)
	}
}

func TestEvaluatePropagatesClassifierError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	gate, err := NewGate(&stubClassifier{err: boom}, "rubric")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	if _, err := gate.Evaluate(context.Background(), contractx.QualityInput{Summary: "s"}); !errors.Is(err, boom) {
		t.Fatalf("expected classifier error, got %v", err)
	}
}

func TestNewGateValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewGate(nil, "rubric"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := NewGate(&stubClassifier{}, " "); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}
