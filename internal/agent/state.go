// Package agent holds the conversation orchestrator: a phase state machine
// that sequences LLM-proposed tool calls, validates them against conversation
// state, and suspends at ask-user boundaries until the human answers.
package agent

import (
	"fmt"

	"github.com/user/rentagent/internal/model"
)

// Phase is the orchestrator's position in the conversation flow.
type Phase string

const (
	PhaseStart                Phase = "start"
	PhaseParsing              Phase = "parsing"
	PhaseSearching            Phase = "searching"
	PhasePresenting           Phase = "presenting"
	PhaseEmptyResult          Phase = "empty_result"
	PhaseSearchFailed         Phase = "search_failed"
	PhaseCollectingPreference Phase = "collecting_preference"
	PhaseApproving            Phase = "approving"
	PhaseCollectingDetails    Phase = "collecting_details"
	PhaseVerifyingContact     Phase = "verifying_contact"
	PhasePlanning             Phase = "planning"
	PhaseSimulating           Phase = "simulating"
	PhaseDone                 Phase = "done"
	PhaseAbandoned            Phase = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAbandoned
}

var validTransitions = map[Phase][]Phase{
	PhaseStart:                {PhaseParsing},
	PhaseParsing:              {PhaseParsing, PhaseSearching, PhaseAbandoned},
	PhaseSearching:            {PhasePresenting, PhaseEmptyResult, PhaseSearchFailed},
	PhaseEmptyResult:          {PhaseParsing, PhaseAbandoned},
	PhaseSearchFailed:         {PhaseSearching, PhaseAbandoned},
	PhasePresenting:           {PhaseParsing, PhasePresenting, PhaseCollectingPreference, PhaseAbandoned},
	PhaseCollectingPreference: {PhaseCollectingPreference, PhaseApproving, PhaseAbandoned},
	PhaseApproving:            {PhaseCollectingDetails, PhaseAbandoned},
	PhaseCollectingDetails:    {PhaseCollectingDetails, PhaseVerifyingContact, PhaseAbandoned},
	PhaseVerifyingContact:     {PhasePlanning, PhaseSimulating, PhaseAbandoned},
	PhasePlanning:             {PhasePlanning, PhaseSimulating, PhaseAbandoned},
	PhaseSimulating:           {PhaseSimulating, PhaseDone, PhaseAbandoned},
}

// CanTransition reports whether from -> to is a permitted move.
func CanTransition(from, to Phase) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ConversationState is owned by exactly one conversation. Tool results
// replace whole fields, never mutate them in place, so a state value can be
// constructed directly in tests.
type ConversationState struct {
	Phase             Phase
	Filters           *model.SearchFilters
	Shortlist         []model.Listing
	ViewingPreference string
	UserDetails       *model.UserDetails
	ApprovedIDs       []string
	ViewingPlan       *model.ViewingPlan
	AvailableSlots    []model.TimeSlot

	PlanConfirmed     bool
	CalendarDisabled  bool
	SearchFailures    int
	CalendarFailures  int
	DetailAttempts    int
	SimulatedCount    int
	SimulatedFailures int
}

// NewConversationState returns a state at the initial phase.
func NewConversationState() *ConversationState {
	return &ConversationState{Phase: PhaseStart}
}

// Transition moves the state to the next phase, rejecting moves the flow
// does not permit.
func (st *ConversationState) Transition(to Phase) error {
	if !CanTransition(st.Phase, to) {
		return fmt.Errorf("invalid phase transition %s -> %s", st.Phase, to)
	}
	st.Phase = to
	return nil
}

// advanceTo walks the shortest permitted path to the target phase, taking
// the mandatory intermediate steps for the caller. It only follows
// single-step or two-step paths; anything longer is a flow bug.
func (st *ConversationState) advanceTo(to Phase) error {
	if st.Phase == to {
		return nil
	}
	if CanTransition(st.Phase, to) {
		st.Phase = to
		return nil
	}
	for _, mid := range validTransitions[st.Phase] {
		if mid == st.Phase {
			continue
		}
		if CanTransition(mid, to) {
			st.Phase = to
			return nil
		}
	}
	return fmt.Errorf("invalid phase transition %s -> %s", st.Phase, to)
}

// Approved resolves the approved listing ids against the shortlist that was
// live at approval time.
func (st *ConversationState) Approved() []model.Listing {
	byID := make(map[string]model.Listing, len(st.Shortlist))
	for _, l := range st.Shortlist {
		byID[l.ID] = l
	}
	out := make([]model.Listing, 0, len(st.ApprovedIDs))
	for _, id := range st.ApprovedIDs {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
