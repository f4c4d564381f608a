package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	promptx "github.com/echanatwell/ArxivAgent/agent/prompt"
	statex "github.com/echanatwell/ArxivAgent/agent/state"
)

const (
	SummariesHeader = "Summaries:"
	RestartMarker   = "restarted due to low quality"
)

// Dispatcher executes one batch of tool calls. Multi-document results are
// summarized and gated per document; too many rejected summaries in a batch
// abandon it and ask the agent to search again.
type Dispatcher struct {
	tools       contractx.ToolResolver
	summarizer  contractx.Summarizer
	gate        contractx.QualityGate
	restart     func(keywords string) string
	ungated     map[string]bool
	workers     int
	threshold   int
	callTimeout time.Duration
}

var _ contractx.Dispatcher = (*Dispatcher)(nil)

type Option func(*Dispatcher)

// WithWorkers sets how many documents are summarized concurrently.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRestartThreshold sets how many unacceptable summaries abandon a batch.
func WithRestartThreshold(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.threshold = n
		}
	}
}

// WithCallTimeout bounds each tool invocation. Zero disables the bound.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.callTimeout = timeout
	}
}

// WithUngatedTools lists document sources whose summaries skip the quality
// gate. Their documents are still summarized but never count toward a restart.
func WithUngatedTools(names ...string) Option {
	return func(d *Dispatcher) {
		for _, name := range names {
			d.ungated[name] = true
		}
	}
}

func WithRestartPrompt(render func(keywords string) string) Option {
	return func(d *Dispatcher) {
		if render != nil {
			d.restart = render
		}
	}
}

func New(
	tools contractx.ToolResolver,
	summarizer contractx.Summarizer,
	gate contractx.QualityGate,
	opts ...Option,
) (*Dispatcher, error) {
	if tools == nil {
		return nil, fmt.Errorf("%w: tool resolver is required", contractx.ErrValidation)
	}
	if summarizer == nil {
		return nil, fmt.Errorf("%w: summarizer is required", contractx.ErrValidation)
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: quality gate is required", contractx.ErrValidation)
	}

	d := &Dispatcher{
		tools:      tools,
		summarizer: summarizer,
		gate:       gate,
		restart:    promptx.LoadPromptSet().Restart,
		ungated:    map[string]bool{},
		workers:    1,
		threshold:  statex.DefaultRestartThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch runs calls in order and returns one result per call, or a restart
// outcome as soon as the batch collects enough unacceptable summaries. The
// returned error is non-nil only when ctx ends.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []contractx.ToolCall, keywords string) (contractx.Outcome, error) {
	round := statex.NewRoundState(d.threshold)
	results := make([]contractx.ToolResult, 0, len(calls))

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return contractx.Outcome{}, err
		}

		res := d.execute(ctx, round, call, keywords)
		if round.Tripped() {
			log.Info().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Int("unacceptable", round.Unacceptable()).
				Int("threshold", round.Threshold()).
				Msg("quality threshold reached, restarting search")

			marker := contractx.ToolResult{CallID: call.ID, Name: call.Name, Content: RestartMarker}
			return contractx.Restarted(contractx.UserMessage(d.restart(keywords)), marker, round.Unacceptable()), nil
		}
		if err := ctx.Err(); err != nil {
			return contractx.Outcome{}, err
		}
		results = append(results, res)
	}
	return contractx.Completed(results), nil
}

func (d *Dispatcher) execute(ctx context.Context, round *statex.RoundState, call contractx.ToolCall, keywords string) contractx.ToolResult {
	tool, err := d.tools.Resolve(call.Name)
	if err != nil {
		return errorResult(call, err)
	}

	if source, ok := tool.(contractx.DocumentSource); ok {
		return d.fanOut(ctx, round, call, source, keywords)
	}

	callCtx, cancel := d.withCallTimeout(ctx)
	defer cancel()

	out, err := tool.Invoke(callCtx, call.Args)
	if err != nil {
		return errorResult(call, fmt.Errorf("%w: %s: %w", contractx.ErrToolExecution, call.Name, err))
	}
	log.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("tool call completed")
	return contractx.ToolResult{CallID: call.ID, Name: call.Name, Content: out}
}

func (d *Dispatcher) fanOut(
	ctx context.Context,
	round *statex.RoundState,
	call contractx.ToolCall,
	source contractx.DocumentSource,
	keywords string,
) contractx.ToolResult {
	callCtx, cancel := d.withCallTimeout(ctx)
	docs, err := source.Documents(callCtx, call.Args)
	cancel()
	if err != nil {
		return errorResult(call, fmt.Errorf("%w: %s: %w", contractx.ErrToolExecution, call.Name, err))
	}
	docs = nonBlank(docs)
	round.BeginFanOut(len(docs))

	fanCtx, stop := context.WithCancel(ctx)
	defer stop()

	gated := !d.ungated[call.Name]
	errs := make([]error, len(docs))
	p := pool.New().WithMaxGoroutines(d.workers)
	for i, doc := range docs {
		p.Go(func() {
			if fanCtx.Err() != nil || round.Tripped() {
				return
			}

			summary, err := d.summarizer.Summarize(fanCtx, doc)
			if err != nil {
				errs[i] = err
				round.RecordFailure(i, failureNote(doc, err))
				return
			}
			verdict := contractx.VerdictAcceptable
			if gated {
				verdict, err = d.gate.Evaluate(fanCtx, contractx.QualityInput{
					Summary:  summary,
					Document: doc,
					Keywords: keywords,
				})
				if err != nil {
					errs[i] = err
					round.RecordFailure(i, failureNote(doc, err))
					return
				}
			}

			tripped := round.Record(i, summary, verdict)
			log.Debug().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Int("document", i).
				Stringer("verdict", verdict).
				Int("unacceptable", round.Unacceptable()).
				Msg("document summarized")
			if tripped {
				stop()
			}
		})
	}
	p.Wait()

	if round.Tripped() {
		return contractx.ToolResult{CallID: call.ID, Name: call.Name, Content: RestartMarker}
	}
	failed := countErrors(errs)
	if failed > 0 && failed == len(docs) {
		return errorResult(call, fmt.Errorf("%w: %s: %w", contractx.ErrToolExecution, call.Name, firstError(errs)))
	}
	if failed > 0 {
		log.Warn().
			Err(firstError(errs)).
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Int("failed", failed).
			Int("documents", len(docs)).
			Msg("some documents could not be summarized")
	}

	return contractx.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: round.SummaryText(SummariesHeader),
	}
}

func (d *Dispatcher) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.callTimeout > 0 {
		return context.WithTimeout(ctx, d.callTimeout)
	}
	return context.WithCancel(ctx)
}

func errorResult(call contractx.ToolCall, err error) contractx.ToolResult {
	log.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("tool call failed")
	return contractx.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: "error: " + err.Error(),
		IsError: true,
	}
}

func nonBlank(docs []contractx.Document) []contractx.Document {
	out := make([]contractx.Document, 0, len(docs))
	for _, d := range docs {
		if !d.IsBlank() {
			out = append(out, d)
		}
	}
	return out
}

// failureNote stands in for the summary of a document that could not be
// summarized or assessed.
func failureNote(doc contractx.Document, err error) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = doc.ID
	}
	return fmt.Sprintf("error: no summary for %q: %v", title, err)
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// firstError returns the error of the earliest document, so the reported
// failure does not depend on worker scheduling.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
