package interp

import (
	"fmt"
	"sort"
)

// Hook observes interpreter events. The data map carries event-specific
// details such as the source name or the code about to run.
type Hook func(event string, data map[string]any)

// Event names accepted by AddHook.
const (
	EvBeforeFile        = "beforeFile"
	EvAfterFile         = "afterFile"
	EvBeforeString      = "beforeString"
	EvAfterString       = "afterString"
	EvBeforeBinary      = "beforeBinary"
	EvAfterBinary       = "afterBinary"
	EvBeforeInclude     = "beforeInclude"
	EvAfterInclude      = "afterInclude"
	EvBeforeExpand      = "beforeExpand"
	EvAfterExpand       = "afterExpand"
	EvBeforeEvaluate    = "beforeEvaluate"
	EvAfterEvaluate     = "afterEvaluate"
	EvBeforeExecute     = "beforeExecute"
	EvAfterExecute      = "afterExecute"
	EvBeforeSignificate = "beforeSignificate"
	EvAfterSignificate  = "afterSignificate"
	EvAtParse           = "atParse"
	EvAtError           = "atError"
	EvAtShutdown        = "atShutdown"
)

var knownEvents = map[string]bool{
	EvBeforeFile:        true,
	EvAfterFile:         true,
	EvBeforeString:      true,
	EvAfterString:       true,
	EvBeforeBinary:      true,
	EvAfterBinary:       true,
	EvBeforeInclude:     true,
	EvAfterInclude:      true,
	EvBeforeExpand:      true,
	EvAfterExpand:       true,
	EvBeforeEvaluate:    true,
	EvAfterEvaluate:     true,
	EvBeforeExecute:     true,
	EvAfterExecute:      true,
	EvBeforeSignificate: true,
	EvAfterSignificate:  true,
	EvAtParse:           true,
	EvAtError:           true,
	EvAtShutdown:        true,
}

// Events returns every hook event name, sorted.
func Events() []string {
	events := make([]string, 0, len(knownEvents))
	for event := range knownEvents {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

type hookEntry struct {
	id int
	fn Hook
}

// hookRegistry keys hooks by event name. Registration hands back an
// integer id because function values cannot be compared for removal.
type hookRegistry struct {
	hooks map[string][]hookEntry
	next  int
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{hooks: make(map[string][]hookEntry), next: 1}
}

func (r *hookRegistry) add(event string, fn Hook) (int, error) {
	if !knownEvents[event] {
		return 0, &HookError{Msg: fmt.Sprintf("unknown hook event: %q", event)}
	}
	id := r.next
	r.next++
	r.hooks[event] = append(r.hooks[event], hookEntry{id: id, fn: fn})
	return id, nil
}

func (r *hookRegistry) remove(event string, id int) error {
	entries := r.hooks[event]
	for i, e := range entries {
		if e.id == id {
			r.hooks[event] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return &HookError{Msg: fmt.Sprintf("no hook %d registered for %q", id, event)}
}

func (r *hookRegistry) clear(event string) error {
	if !knownEvents[event] {
		return &HookError{Msg: fmt.Sprintf("unknown hook event: %q", event)}
	}
	delete(r.hooks, event)
	return nil
}

func (r *hookRegistry) clearAll() {
	r.hooks = make(map[string][]hookEntry)
}

func (r *hookRegistry) run(event string, data map[string]any) {
	for _, e := range r.hooks[event] {
		e.fn(event, data)
	}
}
