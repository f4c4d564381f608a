package state

import (
	"strings"
	"sync"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// DefaultRestartThreshold is the number of unacceptable items in one tool
// batch that aborts the batch and restarts the search.
const DefaultRestartThreshold = 2

// RoundState tracks one tool batch. The unacceptable counter spans the whole
// batch; summary slots are re-armed for each multi-document call.
//
// All mutation goes through mu so parallel fan-out workers observe a single
// serialized count.
type RoundState struct {
	mu           sync.Mutex
	threshold    int
	unacceptable int
	slots        []string
	filled       []bool
}

func NewRoundState(threshold int) *RoundState {
	if threshold <= 0 {
		threshold = DefaultRestartThreshold
	}
	return &RoundState{threshold: threshold}
}

// BeginFanOut prepares n ordered summary slots for the next multi-document call.
// The unacceptable counter is left untouched.
func (r *RoundState) BeginFanOut(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make([]string, n)
	r.filled = make([]bool, n)
}

// Record stores the summary for document idx and counts the verdict. It
// reports whether the restart threshold has been reached.
func (r *RoundState) Record(idx int, summary string, verdict contractx.QualityVerdict) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx >= 0 && idx < len(r.slots) {
		r.slots[idx] = summary
		r.filled[idx] = true
	}
	if verdict == contractx.VerdictUnacceptable {
		r.unacceptable++
	}
	return r.unacceptable >= r.threshold
}

// RecordFailure fills slot idx with note without counting a verdict.
func (r *RoundState) RecordFailure(idx int, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx >= 0 && idx < len(r.slots) {
		r.slots[idx] = note
		r.filled[idx] = true
	}
}

func (r *RoundState) Tripped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unacceptable >= r.threshold
}

func (r *RoundState) Unacceptable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unacceptable
}

func (r *RoundState) Threshold() int {
	return r.threshold
}

// Summaries returns the recorded summaries in document order.
func (r *RoundState) Summaries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.slots))
	for i, s := range r.slots {
		if r.filled[i] {
			out = append(out, s)
		}
	}
	return out
}

// SummaryText renders the accumulated summaries under header, each preceded
// by a blank line.
func (r *RoundState) SummaryText(header string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, s := range r.Summaries() {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	return b.String()
}
