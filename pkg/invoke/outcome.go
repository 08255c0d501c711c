package invoke

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Error kinds attached with eris.Wrap and tested with eris.Is. They decide
// how a failure is reported, never whether sibling steps run.
var (
	// ErrConfiguration marks malformed or missing rules and dependency
	// entries.
	ErrConfiguration = eris.New("configuration error")
	// ErrEnvironment marks a missing or incompatible installed toolchain.
	ErrEnvironment = eris.New("environment error")
)

// Exit codes used when a step fails before a native tool produced one.
const (
	ExitConfiguration = 10
	ExitEnvironment   = 1
)

// Outcome is the normalized result of one hook call or one project
// invocation.
type Outcome struct {
	// Source identifies the step, a file path plus an optional suffix.
	Source string
	// Configuration is the configuration the step ran for, if any.
	Configuration string
	// Code is the exit code, 0 on success.
	Code int
	// Skipped is set for steps that declared themselves not implemented.
	// A skipped outcome never affects the summary code.
	Skipped bool
	// Output is the captured diagnostic text of the step.
	Output string
}

// Failed reports whether this outcome counts as a failure.
func (o Outcome) Failed() bool {
	return !o.Skipped && o.Code != 0
}

func (o Outcome) String() string {
	state := "ok"
	if o.Skipped {
		state = "skipped"
	} else if o.Code != 0 {
		state = fmt.Sprintf("error %d", o.Code)
	}

	source := o.Source
	if o.Configuration != "" && o.Configuration != "all" {
		source += "|" + o.Configuration
	}
	return fmt.Sprintf("%s: %s", state, source)
}

// Skip builds a skipped outcome for the given step.
func Skip(source, configuration string) Outcome {
	return Outcome{Source: source, Configuration: configuration, Skipped: true}
}

// Summary aggregates outcomes in the order they were produced.
type Summary struct {
	Outcomes []Outcome
}

// Add records one outcome.
func (s *Summary) Add(outcome Outcome) {
	s.Outcomes = append(s.Outcomes, outcome)
}

// Merge appends all outcomes of other, preserving their order.
func (s *Summary) Merge(other *Summary) {
	s.Outcomes = append(s.Outcomes, other.Outcomes...)
}

// Code returns the first non-skipped non-zero exit code, or 0 when every
// recorded step succeeded or was skipped.
func (s *Summary) Code() int {
	for _, outcome := range s.Outcomes {
		if outcome.Failed() {
			return outcome.Code
		}
	}
	return 0
}

// Failed reports whether any recorded step failed.
func (s *Summary) Failed() bool {
	return s.Code() != 0
}

// Failures returns the failing outcomes in order.
func (s *Summary) Failures() []Outcome {
	var failures []Outcome
	for _, outcome := range s.Outcomes {
		if outcome.Failed() {
			failures = append(failures, outcome)
		}
	}
	return failures
}
