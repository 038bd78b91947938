package domain

// Delta is a partial, mergeable state update. Every mutation in the
// engine is representable as a Delta, which is what makes additive
// merging and resumable persistence possible.
//
// Merge rules: the stack is whole-value replacement (later wins), slot
// values are pointwise with later writers winning per flow+slot, and
// executed-step sets union. Merge is associative: applying delta A then
// delta B equals applying Merge(A, B).
type Delta struct {
	// Stack is the replacement stack. Only meaningful when ReplaceStack
	// is true; the flag distinguishes "set to empty" from "no change".
	Stack        []FlowInstance
	ReplaceStack bool

	// Slots holds partial slot additions keyed by flow id.
	Slots map[string]map[string]any

	// Executed holds step ids to add to each flow's executed set.
	Executed map[string][]string
}

// IsZero reports whether the delta carries no change.
func (d Delta) IsZero() bool {
	return !d.ReplaceStack && len(d.Slots) == 0 && len(d.Executed) == 0
}

// WithSlot returns a copy of the delta with one extra slot write.
func (d Delta) WithSlot(flowID, slot string, value any) Delta {
	out := d
	out.Slots = copySlots(d.Slots)
	if out.Slots == nil {
		out.Slots = make(map[string]map[string]any)
	}
	if out.Slots[flowID] == nil {
		out.Slots[flowID] = make(map[string]any)
	}
	out.Slots[flowID][slot] = value
	return out
}

// WithExecuted returns a copy of the delta recording a fired step.
func (d Delta) WithExecuted(flowID, stepID string) Delta {
	out := d
	out.Executed = copyExecuted(d.Executed)
	if out.Executed == nil {
		out.Executed = make(map[string][]string)
	}
	out.Executed[flowID] = append(out.Executed[flowID], stepID)
	return out
}

// Merge combines two deltas into one equivalent delta. b is "later":
// its stack replacement and slot values win over a's.
func Merge(a, b Delta) Delta {
	out := Delta{}

	if b.ReplaceStack {
		out.ReplaceStack = true
		out.Stack = append([]FlowInstance(nil), b.Stack...)
	} else if a.ReplaceStack {
		out.ReplaceStack = true
		out.Stack = append([]FlowInstance(nil), a.Stack...)
	}

	if len(a.Slots) > 0 || len(b.Slots) > 0 {
		out.Slots = copySlots(a.Slots)
		if out.Slots == nil {
			out.Slots = make(map[string]map[string]any)
		}
		for flowID, slots := range b.Slots {
			if out.Slots[flowID] == nil {
				out.Slots[flowID] = make(map[string]any, len(slots))
			}
			for k, v := range slots {
				out.Slots[flowID][k] = v
			}
		}
	}

	if len(a.Executed) > 0 || len(b.Executed) > 0 {
		out.Executed = copyExecuted(a.Executed)
		if out.Executed == nil {
			out.Executed = make(map[string][]string)
		}
		for flowID, steps := range b.Executed {
			out.Executed[flowID] = appendUnique(out.Executed[flowID], steps)
		}
	}

	return out
}

// Apply produces a new state with the delta folded in. The input state
// is not mutated.
func Apply(s *State, d Delta) *State {
	next := s.Clone()

	if d.ReplaceStack {
		next.Stack = append([]FlowInstance(nil), d.Stack...)
	}

	for flowID, slots := range d.Slots {
		if next.Slots[flowID] == nil {
			next.Slots[flowID] = make(map[string]any, len(slots))
		}
		for k, v := range slots {
			next.Slots[flowID][k] = copyValue(v)
		}
	}

	for flowID, steps := range d.Executed {
		if next.Executed[flowID] == nil {
			next.Executed[flowID] = make(map[string]bool, len(steps))
		}
		for _, id := range steps {
			next.Executed[flowID][id] = true
		}
	}

	return next
}

func copySlots(src map[string]map[string]any) map[string]map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]map[string]any, len(src))
	for flowID, slots := range src {
		inner := make(map[string]any, len(slots))
		for k, v := range slots {
			inner[k] = copyValue(v)
		}
		out[flowID] = inner
	}
	return out
}

func copyExecuted(src map[string][]string) map[string][]string {
	if src == nil {
		return nil
	}
	out := make(map[string][]string, len(src))
	for flowID, steps := range src {
		out[flowID] = append([]string(nil), steps...)
	}
	return out
}

func appendUnique(dst []string, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, id := range dst {
		seen[id] = true
	}
	for _, id := range src {
		if !seen[id] {
			dst = append(dst, id)
			seen[id] = true
		}
	}
	return dst
}
