// Package resilience implements the escalating/decaying failure score that
// decides whether the poll loop keeps running or gives up.
package resilience

import (
	"fmt"
	"log/slog"
)

// Default policy values.
const (
	DefaultFailureWeight = 10
	DefaultDecayWeight   = 1
	DefaultFatalCeiling  = 100
)

// Policy holds the score transition weights. The zero value is not useful;
// start from DefaultPolicy.
type Policy struct {
	FailureWeight int
	DecayWeight   int
	FatalCeiling  int
}

// DefaultPolicy returns +10 per failure, -1 per clean iteration, fatal above 100.
func DefaultPolicy() Policy {
	return Policy{
		FailureWeight: DefaultFailureWeight,
		DecayWeight:   DefaultDecayWeight,
		FatalCeiling:  DefaultFatalCeiling,
	}
}

// Validate reports weights that would make the state machine meaningless.
func (p Policy) Validate() error {
	if p.FailureWeight <= 0 {
		return fmt.Errorf("failure weight must be positive (got %d)", p.FailureWeight)
	}
	if p.DecayWeight < 0 {
		return fmt.Errorf("decay weight must not be negative (got %d)", p.DecayWeight)
	}
	if p.FatalCeiling < 0 {
		return fmt.Errorf("fatal ceiling must not be negative (got %d)", p.FatalCeiling)
	}
	return nil
}

// OnSuccess returns the score after a clean iteration, floored at zero.
func (p Policy) OnSuccess(score int) int {
	return max(0, score-p.DecayWeight)
}

// OnFailure returns the score after a failed iteration.
func (p Policy) OnFailure(score int) int {
	return max(0, score) + p.FailureWeight
}

// Fatal reports whether score has crossed the ceiling.
func (p Policy) Fatal(score int) bool {
	return score > p.FatalCeiling
}

// Severity maps a score to the log level failures are reported at: warn
// while the score sits in the lower half of the budget, error above it.
func (p Policy) Severity(score int) slog.Level {
	if p.Fatal(score) || score > p.FatalCeiling/2 {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// FailuresToFatal returns how many back-to-back failures from score trip the
// ceiling, or -1 when the policy can never trip.
func (p Policy) FailuresToFatal(score int) int {
	if p.FailureWeight <= 0 && !p.Fatal(score) {
		return -1
	}
	n := 0
	for !p.Fatal(score) {
		score = p.OnFailure(score)
		n++
	}
	return n
}
