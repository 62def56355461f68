package tpiu

import "fmt"

// EventKind identifies a point in the enable/disable state machine a
// caller can hook.
type EventKind int

const (
	EventPreEnable EventKind = iota
	EventPostEnable
	EventPreDisable
	EventPostDisable
)

func (e EventKind) String() string {
	switch e {
	case EventPreEnable:
		return "pre-enable"
	case EventPostEnable:
		return "post-enable"
	case EventPreDisable:
		return "pre-disable"
	case EventPostDisable:
		return "post-disable"
	}
	return "unknown"
}

// HookError is returned by an EventRunner when the bound hook body fails;
// it carries the event and instance name for diagnostics.
type HookError struct {
	Instance string
	Event    EventKind
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("tpiu %s: %s hook failed: %v", e.Instance, e.Event, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// EventRunner executes a bound hook body for an instance transition. A
// real embedding application backs this with its own scripting
// interpreter; this module only defines the calling contract.
type EventRunner interface {
	Run(instance string, event EventKind, body string) error
}

// EventHooks is a per-instance event table: one optional hook body per
// kind, matching the source's single-slot-per-event replace semantics
// (configuring the same event twice overwrites the previous body).
type EventHooks struct {
	bodies map[EventKind]string
}

func newEventHooks() *EventHooks {
	return &EventHooks{bodies: make(map[EventKind]string)}
}

// Set installs or replaces the hook body bound to event.
func (h *EventHooks) Set(event EventKind, body string) {
	h.bodies[event] = body
}

// Get returns the hook body bound to event, if any.
func (h *EventHooks) Get(event EventKind) (string, bool) {
	b, ok := h.bodies[event]
	return b, ok
}

// List returns every configured (event, body) pair, in a stable order,
// for the eventlist command.
func (h *EventHooks) List() []struct {
	Event EventKind
	Body  string
} {
	out := make([]struct {
		Event EventKind
		Body  string
	}, 0, len(h.bodies))
	for _, e := range []EventKind{EventPreEnable, EventPostEnable, EventPreDisable, EventPostDisable} {
		if b, ok := h.bodies[e]; ok {
			out = append(out, struct {
				Event EventKind
				Body  string
			}{e, b})
		}
	}
	return out
}

// fire runs the hook bound to event, if any, via runner. A nil runner
// treats every hook as a no-op success, matching an embedding that hasn't
// wired a scripting interpreter.
func (i *Instance) fire(event EventKind) error {
	if i.hooks == nil || i.runner == nil {
		return nil
	}
	body, ok := i.hooks.Get(event)
	if !ok {
		return nil
	}
	if err := i.runner.Run(i.Name, event, body); err != nil {
		return &HookError{Instance: i.Name, Event: event, Err: err}
	}
	return nil
}
