package quality

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const unacceptableLabel = "bad"

// Gate judges a summary against the search keywords. Only a reply that
// normalizes to exactly "bad" fails the item; any other reply passes.
type Gate struct {
	classifier contractx.Classifier
	rubric     string
}

var _ contractx.QualityGate = (*Gate)(nil)

func NewGate(classifier contractx.Classifier, rubric string) (*Gate, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: quality classifier is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(rubric) == "" {
		return nil, fmt.Errorf("%w: quality rubric", contractx.ErrPromptMissing)
	}
	return &Gate{classifier: classifier, rubric: rubric}, nil
}

func (g *Gate) Evaluate(ctx context.Context, in contractx.QualityInput) (contractx.QualityVerdict, error) {
	reply, err := g.classifier.Classify(ctx, g.rubric, renderItem(in))
	if err != nil {
		return contractx.VerdictAcceptable, fmt.Errorf("quality evaluate: %w", err)
	}
	return ParseVerdict(reply), nil
}

// ParseVerdict maps a free-form classifier reply to a verdict.
func ParseVerdict(reply string) contractx.QualityVerdict {
	if normalize(reply) == unacceptableLabel {
		return contractx.VerdictUnacceptable
	}
	return contractx.VerdictAcceptable
}

func normalize(reply string) string {
	s := strings.ToLower(strings.TrimSpace(reply))
	return strings.Trim(s, " \t\r\n\"'`*_.,!?:;")
}

func renderItem(in contractx.QualityInput) string {
	var b strings.Builder
	b.WriteString("Keywords: ")
	b.WriteString(strings.TrimSpace(in.Keywords))
	if title := strings.TrimSpace(in.Document.Title); title != "" {
		b.WriteString("\n\nTitle: ")
		b.WriteString(title)
	}
	b.WriteString("\n\nSummary: ")
	b.WriteString(strings.TrimSpace(in.Summary))
	return b.String()
}
