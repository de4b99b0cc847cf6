package dialogue

import "fmt"

// StateID names a node of the dialogue graph.
type StateID string

const (
	StateOrchestrate          StateID = "Orchestrate"
	StateGreet                StateID = "Greet"
	StateFarewell             StateID = "Farewell"
	StateCollectInitial       StateID = "CollectInitial"
	StateCollectFollowUp      StateID = "CollectFollowUp"
	StateCheckCompleteness    StateID = "CheckCompleteness"
	StateClarify              StateID = "Clarify"
	StateCheckAvailability    StateID = "CheckAvailability"
	StateConfirm              StateID = "Confirm"
	StateFinalizeConfirmation StateID = "FinalizeConfirmation"
	StateBook                 StateID = "Book"
	StateToolInvoke           StateID = "ToolInvoke"
	StateFallback             StateID = "Fallback"
	StateOther                StateID = "Other"
	StateEnd                  StateID = "End"
)

// AllStates lists every state of the graph.
var AllStates = []StateID{
	StateOrchestrate, StateGreet, StateFarewell, StateCollectInitial,
	StateCollectFollowUp, StateCheckCompleteness, StateClarify,
	StateCheckAvailability, StateConfirm, StateFinalizeConfirmation,
	StateBook, StateToolInvoke, StateFallback, StateOther, StateEnd,
}

// Trigger is the outcome a handler reports to pick the next state.
type Trigger string

const (
	TriggerRespond          Trigger = "respond"
	TriggerScheduling       Trigger = "scheduling"
	TriggerSchedulingInfo   Trigger = "scheduling_info"
	TriggerGreeting         Trigger = "greeting"
	TriggerFarewell         Trigger = "farewell"
	TriggerInfoQuery        Trigger = "info_query"
	TriggerOther            Trigger = "other"
	TriggerFallback         Trigger = "fallback"
	TriggerAwaitSelection   Trigger = "await_selection"
	TriggerAwaitConfirm     Trigger = "await_confirmation"
	TriggerCollected        Trigger = "collected"
	TriggerMissing          Trigger = "missing"
	TriggerComplete         Trigger = "complete"
	TriggerUncertain        Trigger = "uncertain"
	TriggerNewData          Trigger = "new_data"
	TriggerConfirmed        Trigger = "confirmed"
	TriggerRejectedWithData Trigger = "rejected_with_data"
	TriggerSlotGone         Trigger = "slot_gone"
	TriggerToolResult       Trigger = "tool_result"
)

type transitionTable map[StateID]map[Trigger]StateID

func defaultTransitions() transitionTable {
	return transitionTable{
		StateOrchestrate: {
			TriggerScheduling:     StateCollectInitial,
			TriggerSchedulingInfo: StateCollectFollowUp,
			TriggerGreeting:       StateGreet,
			TriggerFarewell:       StateFarewell,
			TriggerInfoQuery:      StateToolInvoke,
			TriggerOther:          StateOther,
			TriggerFallback:       StateFallback,
			TriggerAwaitSelection: StateConfirm,
			TriggerAwaitConfirm:   StateFinalizeConfirmation,
		},
		StateCollectInitial:  {TriggerCollected: StateCheckCompleteness},
		StateCollectFollowUp: {TriggerCollected: StateCheckCompleteness},
		StateCheckCompleteness: {
			TriggerMissing:  StateClarify,
			TriggerComplete: StateCheckAvailability,
		},
		StateClarify: {
			TriggerRespond:   StateEnd,
			TriggerUncertain: StateToolInvoke,
		},
		StateCheckAvailability: {TriggerRespond: StateEnd},
		StateConfirm: {
			TriggerRespond: StateEnd,
			TriggerNewData: StateCollectFollowUp,
		},
		StateFinalizeConfirmation: {
			TriggerRespond:          StateEnd,
			TriggerConfirmed:        StateBook,
			TriggerRejectedWithData: StateCollectFollowUp,
		},
		StateBook: {
			TriggerRespond:  StateEnd,
			TriggerSlotGone: StateCheckAvailability,
		},
		StateToolInvoke: {
			TriggerRespond:    StateEnd,
			TriggerToolResult: StateToolInvoke,
		},
		StateGreet:    {TriggerRespond: StateEnd},
		StateFarewell: {TriggerRespond: StateEnd},
		StateOther:    {TriggerRespond: StateEnd},
		StateFallback: {TriggerRespond: StateEnd},
	}
}

// validate checks that every state except End has a handler and at least one
// outgoing edge, that edges only target known states, that End is terminal
// and that every state is reachable from Orchestrate.
func (t transitionTable) validate(handlers map[StateID]handlerFunc) error {
	known := make(map[StateID]bool, len(AllStates))
	for _, s := range AllStates {
		known[s] = true
	}
	for _, s := range AllStates {
		edges := t[s]
		if s == StateEnd {
			if len(edges) > 0 {
				return fmt.Errorf("dialogue: %s must be terminal", s)
			}
			continue
		}
		if len(edges) == 0 {
			return fmt.Errorf("dialogue: state %s has no transitions", s)
		}
		if handlers[s] == nil {
			return fmt.Errorf("dialogue: state %s has no handler", s)
		}
		for trigger, next := range edges {
			if !known[next] {
				return fmt.Errorf("dialogue: %s --%s--> unknown state %q", s, trigger, next)
			}
		}
	}
	for s := range t {
		if !known[s] {
			return fmt.Errorf("dialogue: transitions for unknown state %q", s)
		}
	}

	seen := map[StateID]bool{StateOrchestrate: true}
	queue := []StateID{StateOrchestrate}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range t[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, s := range AllStates {
		if !seen[s] {
			return fmt.Errorf("dialogue: state %s is unreachable", s)
		}
	}
	return nil
}

func (t transitionTable) next(from StateID, trigger Trigger) (StateID, bool) {
	next, ok := t[from][trigger]
	return next, ok
}
