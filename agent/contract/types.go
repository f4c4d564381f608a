package contract

import (
	"maps"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ModelRole selects per-purpose model overrides.
type ModelRole string

const (
	ModelRoleAgent      ModelRole = "agent"
	ModelRoleSummarizer ModelRole = "summarizer"
	ModelRoleClassifier ModelRole = "classifier"
)

// Message is a single conversation entry. Treat it as immutable once built;
// ConversationState stores and returns clones.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolMessage(res ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Content,
		ToolCallID: res.CallID,
		Name:       res.Name,
	}
}

func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c.Clone()
		}
	}
	return out
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Args != nil {
		out.Args = maps.Clone(c.Args)
	}
	return out
}

type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Document is one item of a multi-document tool result.
type Document struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Text    string   `json:"text"`
	Authors []string `json:"authors,omitempty"`
	URL     string   `json:"url,omitempty"`
}

func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Text) == ""
}

type QualityVerdict int

const (
	VerdictAcceptable QualityVerdict = iota
	VerdictUnacceptable
)

func (v QualityVerdict) String() string {
	if v == VerdictUnacceptable {
		return "unacceptable"
	}
	return "acceptable"
}

type QualityInput struct {
	Summary  string
	Document Document
	Keywords string
}

type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeRestart
)

// Outcome is what one tool turn produced: either a result per call, or a
// restart signal carrying the user message that asks for a fresh search.
type Outcome struct {
	Kind    OutcomeKind
	Results []ToolResult

	Restart      *Message
	Marker       ToolResult
	Unacceptable int
}

func Completed(results []ToolResult) Outcome {
	return Outcome{Kind: OutcomeCompleted, Results: results}
}

func Restarted(msg Message, marker ToolResult, unacceptable int) Outcome {
	return Outcome{
		Kind:         OutcomeRestart,
		Restart:      &msg,
		Marker:       marker,
		Unacceptable: unacceptable,
	}
}

func (o Outcome) IsRestart() bool {
	return o.Kind == OutcomeRestart
}

// ToolSpec describes a tool to the reasoning model.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type ParamSpec struct {
	Type     ParamType
	Desc     string
	Required bool
}
