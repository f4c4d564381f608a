package state

import (
	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// ConversationState is the append-only message log of one orchestration run.
// It has a single owner (the orchestrator) and is not safe for concurrent use.
type ConversationState struct {
	messages []contractx.Message
}

func NewConversationState(seed ...contractx.Message) *ConversationState {
	st := &ConversationState{
		messages: make([]contractx.Message, 0, 16),
	}
	for _, m := range seed {
		st.Append(m)
	}
	return st
}

// Append adds msg to the end of the log.
func (s *ConversationState) Append(msg contractx.Message) {
	s.messages = append(s.messages, msg.Clone())
}

// LastMessage returns the most recently appended message.
func (s *ConversationState) LastMessage() (contractx.Message, error) {
	if s == nil || len(s.messages) == 0 {
		return contractx.Message{}, contractx.ErrEmptyState
	}
	return s.messages[len(s.messages)-1].Clone(), nil
}

// Messages returns a copy of the log in conversation order.
func (s *ConversationState) Messages() []contractx.Message {
	if s == nil {
		return nil
	}
	out := make([]contractx.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *ConversationState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.messages)
}
