package orchestratornode

import (
	"fmt"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if !in.Done {
		return GraphOutput{}, fmt.Errorf("%w: run finalized before a terminal turn", contractx.ErrValidation)
	}
	return GraphOutput{Answer: in.Answer, Turns: in.Turns, Restarts: in.Restarts}, nil
}
