package eyes

import (
	"fmt"
	"sort"
)

// Phase is a pipeline stage an eye can require or provide.
type Phase string

const (
	PhaseEntry          Phase = "entry"
	PhaseClarification  Phase = "clarification"
	PhaseRefinement     Phase = "refinement"
	PhaseConfirmation   Phase = "confirmation"
	PhasePlanning       Phase = "planning"
	PhaseScaffolding    Phase = "scaffolding"
	PhaseImplementation Phase = "implementation"
	PhaseTesting        Phase = "testing"
	PhaseDocumentation  Phase = "documentation"
	PhaseValidation     Phase = "validation"
	PhaseConsistency    Phase = "consistency"
	PhaseApproval       Phase = "approval"
)

// AllPhases returns all phases in pipeline order.
func AllPhases() []Phase {
	return []Phase{
		PhaseEntry,
		PhaseClarification,
		PhaseRefinement,
		PhaseConfirmation,
		PhasePlanning,
		PhaseScaffolding,
		PhaseImplementation,
		PhaseTesting,
		PhaseDocumentation,
		PhaseValidation,
		PhaseConsistency,
		PhaseApproval,
	}
}

var phaseOrder = func() map[Phase]int {
	m := make(map[Phase]int)
	for i, p := range AllPhases() {
		m[p] = i
	}
	return m
}()

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// ParsePhase converts s to a Phase, rejecting unknown values.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

// PhaseSet is an unordered set of phases.
type PhaseSet map[Phase]struct{}

// NewPhaseSet returns a set holding phases.
func NewPhaseSet(phases ...Phase) PhaseSet {
	s := make(PhaseSet, len(phases))
	for _, p := range phases {
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s PhaseSet) Has(p Phase) bool {
	_, ok := s[p]
	return ok
}

// Add inserts phases.
func (s PhaseSet) Add(phases ...Phase) {
	for _, p := range phases {
		s[p] = struct{}{}
	}
}

// Missing returns the phases of required absent from s, in pipeline order.
func (s PhaseSet) Missing(required []Phase) []Phase {
	var out []Phase
	for _, p := range required {
		if !s.Has(p) {
			out = append(out, p)
		}
	}
	sortPhases(out)
	return out
}

// Sorted returns the members in pipeline order.
func (s PhaseSet) Sorted() []Phase {
	out := make([]Phase, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sortPhases(out)
	return out
}

func sortPhases(ps []Phase) {
	sort.SliceStable(ps, func(i, j int) bool {
		oi, iok := phaseOrder[ps[i]]
		oj, jok := phaseOrder[ps[j]]
		if iok != jok {
			return iok
		}
		if !iok {
			return ps[i] < ps[j]
		}
		return oi < oj
	})
}

func phaseStrings(ps []Phase) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
