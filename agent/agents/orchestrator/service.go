package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	nodex "github.com/echanatwell/ArxivAgent/agent/nodes/orchestrator"
)

const DefaultMaxTurns = 12

var ErrInvalidQuery = nodex.ErrInvalidQuery

type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindTurnLimit      ErrorKind = "turn_limit"
	KindModel          ErrorKind = "model"
	KindEmptyState     ErrorKind = "empty_state"
	KindCancelled      ErrorKind = "cancelled"
	KindInternal       ErrorKind = "internal"
)

// RunError reports why a run stopped and how many agent turns it took.
type RunError struct {
	Kind ErrorKind
	Turn int
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed at turn %d (%s): %v", e.Turn, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

type Config struct {
	MaxTurns int
}

type Request struct {
	Query string
	// Keywords overrides the text summaries are judged against.
	Keywords string
}

type Result struct {
	RunID    string
	Answer   string
	Turns    int
	Restarts int
	Messages []contractx.Message
}

type Orchestrator struct {
	controller contractx.Controller
	dispatcher contractx.Dispatcher
	maxTurns   int

	graphRunner compose.Runnable[*nodex.GraphState, nodex.GraphOutput]

	newRunID func() string
}

func New(
	controller contractx.Controller,
	dispatcher contractx.Dispatcher,
	cfg Config,
) (*Orchestrator, error) {
	if controller == nil {
		return nil, errors.New("agent controller is required")
	}
	if dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	o := &Orchestrator{
		controller: controller,
		dispatcher: dispatcher,
		maxTurns:   maxTurns,
		newRunID:   uuid.NewString,
	}

	graphRunner, err := o.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Run drives one survey from the query to the agent's final answer. On
// failure the partial Result is returned alongside a *RunError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	runID := o.newRunID()
	res := Result{RunID: runID}

	st, err := nodex.ValidateRequest(nodex.GraphInput{
		RunID:    runID,
		Query:    req.Query,
		Keywords: req.Keywords,
		MaxTurns: o.maxTurns,
	})
	if err != nil {
		return res, &RunError{Kind: KindInvalidRequest, Err: err}
	}

	log.Info().Str("run_id", runID).Str("keywords", st.Keywords).Int("max_turns", o.maxTurns).Msg("survey run started")

	out, err := o.graphRunner.Invoke(ctx, st)
	res.Turns = st.Turns
	res.Restarts = st.Restarts
	res.Messages = st.Conversation.Messages()
	if err != nil {
		runErr := &RunError{Kind: classify(err), Turn: st.Turns, Err: err}
		log.Error().Err(err).Str("run_id", runID).Str("kind", string(runErr.Kind)).Int("turn", st.Turns).Msg("survey run failed")
		return res, runErr
	}

	res.Answer = out.Answer
	log.Info().Str("run_id", runID).Int("turns", out.Turns).Int("restarts", out.Restarts).Msg("survey run finished")
	return res, nil
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, contractx.ErrTurnLimitExceeded):
		return KindTurnLimit
	case errors.Is(err, contractx.ErrEmptyState):
		return KindEmptyState
	case errors.Is(err, contractx.ErrModelInvoke), errors.Is(err, contractx.ErrSchemaViolation):
		return KindModel
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, contractx.ErrValidation):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}
