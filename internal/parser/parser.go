// Package parser turns lines of recon tool output into job state.
//
// Parsers are pure: they hold no state of their own and perform no I/O.
// The accumulated State is threaded through every call by the runner.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// State is the progress and partial result accumulated so far. Parsers may
// keep their own bookkeeping in its unexported fields.
type State struct {
	Progress float64
	Result   domain.JobResult

	// separators counts gobuster dir banner rows seen so far.
	separators int
	// lines holds raw output until Snapshot or Finish joins it.
	lines []string
}

// Snapshot returns the result accumulated so far.
func (s State) Snapshot() domain.JobResult {
	if len(s.lines) > 0 {
		s.Result.Output = strings.Join(s.lines, "\n")
	}
	return s.Result
}

// Parser consumes one line of tool output at a time.
type Parser interface {
	// Feed returns the next state. changed reports whether the state differs
	// in a way worth publishing. A non-nil error is terminal for the job.
	Feed(state State, line string) (next State, changed bool, err error)

	// Finish returns the final state once the output is exhausted.
	Finish(state State) State
}

// For returns the parser for a job kind.
func For(kind domain.JobKind) (Parser, error) {
	switch kind {
	case domain.KindPing, domain.KindPortScan:
		return RawParser{}, nil
	case domain.KindSubdomainEnum:
		return SubdomainEnumParser{}, nil
	case domain.KindPathEnum:
		return PathEnumParser{}, nil
	}
	return nil, fmt.Errorf("no parser for job kind %q", kind)
}

// parseProgress extracts the percentage from a gobuster progress line such
// as "Progress: 1000 / 4989 (20.04%)".
func parseProgress(line string) (float64, error) {
	open := strings.LastIndex(line, "(")
	if open < 0 {
		return 0, &domain.ParseFaultError{Line: line, Reason: "progress line without percentage"}
	}
	rest := line[open+1:]
	pct := strings.Index(rest, "%")
	if pct < 0 {
		return 0, &domain.ParseFaultError{Line: line, Reason: "progress line without percentage"}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rest[:pct]), 64)
	if err != nil || v < 0 {
		return 0, &domain.ParseFaultError{Line: line, Reason: "malformed progress value"}
	}
	return v, nil
}

// advance applies a new progress reading, keeping progress non-decreasing
// and within [0, 100].
func advance(state State, v float64) (State, bool) {
	if v > 100 {
		v = 100
	}
	if v <= state.Progress {
		return state, false
	}
	state.Progress = v
	return state, true
}

func finish(state State) State {
	state.Progress = 100
	return state
}
