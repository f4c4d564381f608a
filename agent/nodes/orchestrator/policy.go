package orchestratornode

import (
	"fmt"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const (
	NodeAgentTurn     = "agent_turn"
	NodeToolTurn      = "tool_turn"
	NodeFinalizeReply = "finalize_reply"
)

func NextAfterAgentTurn(in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Done {
		return NodeFinalizeReply, nil
	}
	return NodeToolTurn, nil
}
