package feedback

// Transition is a status change a recipient can request.
type Transition string

const (
	TransitionApply Transition = "apply"
	TransitionThank Transition = "thank"
)

type transitionRule struct {
	from Status
	typ  Type
	to   Status
}

// transitions is the complete table of legal status changes. Anything not
// listed here is rejected.
var transitions = map[Transition]transitionRule{
	TransitionApply: {from: StatusActive, typ: TypeSuggestion, to: StatusAccepted},
	TransitionThank: {from: StatusActive, typ: TypeComment, to: StatusThanked},
}

// Next returns the status item moves to under t, or a ValidationError when the
// transition is not legal for the item's current status and type.
func Next(item Item, t Transition) (Status, error) {
	rule, ok := transitions[t]
	if !ok {
		return item.Status, &ValidationError{Reason: "unknown transition " + string(t)}
	}
	if item.Type != rule.typ {
		return item.Status, &ValidationError{Reason: string(t) + " requires a " + string(rule.typ)}
	}
	if item.Status != rule.from {
		return item.Status, &ValidationError{Reason: "item is already " + string(item.Status)}
	}
	return rule.to, nil
}

// Actions lists the transitions currently available for item.
// Resolved items have none.
func Actions(item Item) []Transition {
	var out []Transition
	for _, t := range []Transition{TransitionApply, TransitionThank} {
		if _, err := Next(item, t); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Resolved reports whether item has reached a terminal status.
func Resolved(item Item) bool {
	return item.Status != StatusActive
}
