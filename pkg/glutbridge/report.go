package glutbridge

import (
	"fmt"
)

// Outcome is the result of registering one entry point.
type Outcome int

const (
	OutcomeUndefined = Outcome(iota)
	OutcomeNotFound
	OutcomeRegistered
	OutcomeAlreadyRegistered
	OutcomeSkipped
	endOfOutcome
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUndefined:
		return "undefined"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRegistered:
		return "registered"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("<unknown_outcome_%d>", int(o))
	}
}

// AllOutcomes returns every defined outcome except OutcomeUndefined.
func AllOutcomes() []Outcome {
	var result []Outcome
	for o := OutcomeUndefined + 1; o < endOfOutcome; o++ {
		result = append(result, o)
	}
	return result
}

type EntryOutcome struct {
	Name    string
	Outcome Outcome
}

// RegistrationReport lists the outcome of every entry point of one
// RegisterAll pass, in table order.
type RegistrationReport struct {
	Shim    string
	Entries []EntryOutcome
}

func (r *RegistrationReport) add(name string, outcome Outcome) {
	r.Entries = append(r.Entries, EntryOutcome{Name: name, Outcome: outcome})
}

func (r *RegistrationReport) Count(outcome Outcome) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Attempted returns the names of the entry points whose registration
// symbol was looked up.
func (r *RegistrationReport) Attempted() []string {
	if r == nil {
		return nil
	}
	var result []string
	for _, e := range r.Entries {
		switch e.Outcome {
		case OutcomeNotFound, OutcomeRegistered:
			result = append(result, e.Name)
		}
	}
	return result
}

func (r *RegistrationReport) Missing() []string {
	if r == nil {
		return nil
	}
	var result []string
	for _, e := range r.Entries {
		if e.Outcome == OutcomeNotFound {
			result = append(result, e.Name)
		}
	}
	return result
}
