package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// ToolTurn executes the tool calls of the latest agent message. A restart
// outcome appends only the injected user message; otherwise every call gets
// exactly one tool message, in call order.
func ToolTurn(
	ctx context.Context,
	in *GraphState,
	dispatcher contractx.Dispatcher,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	last, err := in.Conversation.LastMessage()
	if err != nil {
		return nil, err
	}
	if !last.HasToolCalls() {
		return nil, fmt.Errorf("%w: tool turn without tool calls", contractx.ErrValidation)
	}

	outcome, err := dispatcher.Dispatch(ctx, last.ToolCalls, in.Keywords)
	if err != nil {
		return nil, fmt.Errorf("dispatch tool calls: %w", err)
	}

	if outcome.IsRestart() {
		in.Restarts++
		in.Conversation.Append(*outcome.Restart)
		log.Info().
			Str("run_id", in.RunID).
			Int("turn", in.Turns).
			Int("restarts", in.Restarts).
			Int("unacceptable", outcome.Unacceptable).
			Str("marker", outcome.Marker.Content).
			Msg("tool batch abandoned")
		return in, nil
	}

	for _, res := range outcome.Results {
		in.Conversation.Append(contractx.ToolMessage(res))
	}
	log.Info().
		Str("run_id", in.RunID).
		Int("turn", in.Turns).
		Int("results", len(outcome.Results)).
		Msg("tool turn")
	return in, nil
}
