package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	statex "github.com/echanatwell/ArxivAgent/agent/state"
)

var ErrInvalidQuery = fmt.Errorf("%w: query is empty", contractx.ErrValidation)

type GraphInput struct {
	RunID string
	Query string
	// Keywords judged against by the quality gate. Defaults to Query.
	Keywords string
	MaxTurns int
}

type GraphOutput struct {
	Answer   string
	Turns    int
	Restarts int
}

// GraphState is owned by a single run and threaded through every node.
type GraphState struct {
	RunID    string
	Keywords string
	MaxTurns int

	Conversation *statex.ConversationState
	Turns        int
	Restarts     int

	Answer string
	Done   bool
}

// ValidateRequest seeds the conversation with the query exactly as given.
func ValidateRequest(in GraphInput) (*GraphState, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, ErrInvalidQuery
	}
	if in.MaxTurns < 0 {
		return nil, fmt.Errorf("%w: max turns must be >= 0", contractx.ErrValidation)
	}

	keywords := strings.TrimSpace(in.Keywords)
	if keywords == "" {
		keywords = strings.TrimSpace(in.Query)
	}

	return &GraphState{
		RunID:        in.RunID,
		Keywords:     keywords,
		MaxTurns:     in.MaxTurns,
		Conversation: statex.NewConversationState(contractx.UserMessage(in.Query)),
	}, nil
}
