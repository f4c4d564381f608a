package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// AgentTurn asks the controller for the next step and records its reply. A
// reply without tool calls ends the run.
func AgentTurn(
	ctx context.Context,
	in *GraphState,
	controller contractx.Controller,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Conversation.Len() == 0 {
		return nil, contractx.ErrEmptyState
	}

	in.Turns++
	msg, err := controller.Decide(ctx, in.Conversation.Messages())
	if err != nil {
		return nil, err
	}
	in.Conversation.Append(msg)

	log.Info().
		Str("run_id", in.RunID).
		Int("turn", in.Turns).
		Int("tool_calls", len(msg.ToolCalls)).
		Msg("agent turn")

	if !msg.HasToolCalls() {
		in.Answer = msg.Content
		in.Done = true
		return in, nil
	}
	if in.MaxTurns > 0 && in.Turns >= in.MaxTurns {
		return nil, fmt.Errorf("%w: still requesting tools after %d turns", contractx.ErrTurnLimitExceeded, in.Turns)
	}
	return in, nil
}
