package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrUnknownTool       = errors.New("unknown tool")
	ErrDuplicateTool     = errors.New("duplicate tool")
	ErrToolExecution     = errors.New("tool execution failed")
	ErrEmptyState        = errors.New("conversation state is empty")
	ErrTurnLimitExceeded = errors.New("turn limit exceeded")
	ErrDocumentSetAbsent = errors.New("document set not found")
)
