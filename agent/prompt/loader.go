package prompt

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed template/agent.txt
	agentRaw string

	//go:embed template/agent_index.txt
	agentIndexRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string

	//go:embed template/quality.txt
	qualityRaw string

	//go:embed template/rewrite.txt
	rewriteRaw string

	//go:embed template/overview.txt
	overviewRaw string

	//go:embed template/restart.txt
	restartRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Agent      string
	AgentIndex string
	Quality    string
	Rewrite    string
	Overview   string

	summarizer string
	restart    string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Agent:      strings.TrimSpace(agentRaw),
		AgentIndex: strings.TrimSpace(agentIndexRaw),
		Quality:    strings.TrimSpace(qualityRaw),
		Rewrite:    strings.TrimSpace(rewriteRaw),
		Overview:   strings.TrimSpace(overviewRaw),
		summarizer: strings.TrimSpace(summarizerRaw),
		restart:    strings.TrimSpace(restartRaw),
	}
}

// Summarizer renders the per-article summarization prompt with its length bounds.
func (p PromptSet) Summarizer(minChars, maxChars int) string {
	return fmt.Sprintf(p.summarizer, maxChars, minChars)
}

// Restart renders the user message that asks the agent for a fresh search.
func (p PromptSet) Restart(keywords string) string {
	return fmt.Sprintf(p.restart, strings.TrimSpace(keywords))
}
