package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	statex "github.com/echanatwell/ArxivAgent/agent/state"
)

// Summarizer produces one bounded summary per document. Summaries are cached
// by document content when a cache is configured; cache failures only log.
type Summarizer struct {
	completer contractx.Completer
	cache     contractx.SummaryCache
	minChars  int
	maxChars  int
}

var _ contractx.Summarizer = (*Summarizer)(nil)

type Option func(*Summarizer)

func WithCache(cache contractx.SummaryCache) Option {
	return func(s *Summarizer) {
		s.cache = cache
	}
}

func New(completer contractx.Completer, minChars, maxChars int, opts ...Option) (*Summarizer, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: summarizer completer is required", contractx.ErrValidation)
	}
	if minChars < 0 || maxChars <= 0 || minChars > maxChars {
		return nil, fmt.Errorf("%w: invalid summary bounds min=%d max=%d", contractx.ErrValidation, minChars, maxChars)
	}

	s := &Summarizer{completer: completer, minChars: minChars, maxChars: maxChars}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Summarizer) Summarize(ctx context.Context, doc contractx.Document) (string, error) {
	key := statex.SummaryCacheKey(doc, s.minChars, s.maxChars)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("title", doc.Title).Msg("summary cache read failed")
		case ok:
			log.Debug().Str("title", doc.Title).Msg("summary cache hit")
			return cached, nil
		}
	}

	summary, err := s.completer.Complete(ctx, renderDocument(doc))
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", doc.Title, err)
	}

	if s.cache != nil && summary != "" {
		if err := s.cache.Put(ctx, key, summary); err != nil {
			log.Warn().Err(err).Str("title", doc.Title).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

func renderDocument(doc contractx.Document) string {
	var b strings.Builder
	if title := strings.TrimSpace(doc.Title); title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(doc.Text))
	return b.String()
}
