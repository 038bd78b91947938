package runtime

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
)

// denyCountSlot is the reserved slot tracking repeated denials of a
// pending confirmation.
const denyCountSlot = "_confirm_denies"

// PatternConfig holds the per-pattern templates and thresholds.
// Templates interpolate {slot}, {value}, and {flow}.
type PatternConfig struct {
	// CorrectionAck acknowledges a slot correction.
	CorrectionAck string

	// CancellationAck acknowledges a cancelled flow.
	CancellationAck string

	// NothingToCancel is used when a cancel arrives while idle.
	NothingToCancel string

	// ClarifyFallback answers a clarification when the current step has
	// no explanation of its own.
	ClarifyFallback string

	// MaxConfirmDenies is how many re-prompts a denied confirmation
	// gets before the flow is cancelled.
	MaxConfirmDenies int
}

// DefaultPatternConfig returns the documented defaults.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		CorrectionAck:    "Okay, {slot} is now {value}.",
		CancellationAck:  "Okay, I've stopped {flow}.",
		NothingToCancel:  "There's nothing to cancel right now.",
		ClarifyFallback:  "We're currently working through {flow}.",
		MaxConfirmDenies: 2,
	}
}

// Dispatcher is the higher-priority routing layer for cross-cutting
// conversational patterns: correction, clarification, cancellation, and
// confirmation. It runs before generic command processing and returns
// the same (delta, response) shape for every pattern, so the engine
// treats pattern-driven and stack-driven turns identically.
type Dispatcher struct {
	set    *flows.Set
	config PatternConfig
	logger *slog.Logger
}

// NewDispatcher creates a pattern dispatcher over the compiled flows.
func NewDispatcher(set *flows.Set, config PatternConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{set: set, config: config, logger: logger}
}

// Dispatch routes one command. handled is false when the command is not
// a conversational pattern (or not applicable right now) and should
// fall through to the command processor.
func (d *Dispatcher) Dispatch(cmd domain.Command, state *domain.State) (delta domain.Delta, response string, handled bool, err error) {
	switch c := cmd.(type) {
	case domain.CorrectSlot:
		return d.correct(c, state)
	case domain.Clarify:
		return d.clarify(state)
	case domain.Cancel:
		return d.cancel(state)
	case domain.CancelFlow:
		return d.cancel(state)
	case domain.Affirm:
		return d.affirm(state)
	case domain.Deny:
		return d.deny(c, state)
	default:
		return domain.Delta{}, "", false, nil
	}
}

// correct sets the slot and acknowledges; the current step is left
// untouched so the flow re-evaluates from its position.
func (d *Dispatcher) correct(cmd domain.CorrectSlot, state *domain.State) (domain.Delta, string, bool, error) {
	if state.Active() == nil {
		return domain.Delta{}, "", false, nil
	}
	delta := SetSlot(state, cmd.Slot, cmd.Value)
	ack := renderTemplate(d.config.CorrectionAck, map[string]string{
		"slot":  cmd.Slot,
		"value": fmt.Sprintf("%v", cmd.Value),
		"flow":  state.Active().FlowName,
	})
	return delta, ack, true, nil
}

// clarify explains the pending prompt without touching stack or step.
func (d *Dispatcher) clarify(state *domain.State) (domain.Delta, string, bool, error) {
	inst := state.Active()
	if inst == nil {
		return domain.Delta{}, "", false, nil
	}

	explanation := ""
	if graph, err := d.set.Get(inst.FlowName); err == nil && inst.CurrentStep != "" {
		if node := graph.Node(inst.CurrentStep); node != nil {
			explanation = node.Explanation
		}
	}
	if explanation == "" {
		explanation = renderTemplate(d.config.ClarifyFallback, map[string]string{
			"flow": inst.FlowName,
		})
	}
	return domain.Delta{}, explanation, true, nil
}

// cancel pops the active flow; if it was a nested call, the caller
// becomes active again and auto-resumes in the execution phase.
func (d *Dispatcher) cancel(state *domain.State) (domain.Delta, string, bool, error) {
	popped, delta, err := PopFlow(state, domain.StatusCancelled)
	if err != nil {
		d.logger.Debug("cancel on empty stack treated as no-op")
		return domain.Delta{}, d.config.NothingToCancel, true, nil
	}
	ack := renderTemplate(d.config.CancellationAck, map[string]string{
		"flow": popped.FlowName,
	})
	return delta, ack, true, nil
}

// affirm clears the pending confirmation by marking the confirm step
// executed, letting the walk proceed past it.
func (d *Dispatcher) affirm(state *domain.State) (domain.Delta, string, bool, error) {
	pending := state.Pending
	if pending == nil || pending.Kind != domain.TaskConfirm {
		return domain.Delta{}, "", false, nil
	}

	delta := domain.Delta{}.WithExecuted(pending.FlowID, pending.StepID)

	// A confirm step with a slot records the outcome there.
	if node := d.pendingNode(state, pending); node != nil && node.Slot != "" {
		delta = delta.WithSlot(pending.FlowID, node.Slot, true)
	}
	delta = delta.WithSlot(pending.FlowID, denyCountSlot, nil)
	return delta, "", true, nil
}

// deny either routes back into slot collection, re-prompts, or gives up
// and cancels after too many refusals.
func (d *Dispatcher) deny(cmd domain.Deny, state *domain.State) (domain.Delta, string, bool, error) {
	pending := state.Pending
	if pending == nil || pending.Kind != domain.TaskConfirm {
		return domain.Delta{}, "", false, nil
	}

	if cmd.SlotToChange != "" {
		inst := state.Active()
		graph, err := d.set.Get(inst.FlowName)
		if err != nil {
			return domain.Delta{}, "", false, err
		}
		collectID, ok := graph.CollectFor(cmd.SlotToChange)
		if !ok {
			d.logger.Debug("deny names unknown slot, re-prompting",
				"slot", cmd.SlotToChange, "flow", inst.FlowName)
			return domain.Delta{}, "", true, nil
		}
		delta := SetSlot(state, cmd.SlotToChange, nil)
		delta = domain.Merge(delta, SetCurrentStep(domain.Apply(state, delta), collectID))
		delta = delta.WithSlot(pending.FlowID, denyCountSlot, nil)
		return delta, "", true, nil
	}

	denies := 1
	if raw, ok := GetSlot(state, denyCountSlot); ok {
		if f, ok := asFloat(raw); ok {
			denies = int(f) + 1
		}
	}
	if denies > d.config.MaxConfirmDenies {
		return d.cancel(state)
	}
	return SetSlot(state, denyCountSlot, denies), "", true, nil
}

func (d *Dispatcher) pendingNode(state *domain.State, pending *domain.PendingTask) *flows.Node {
	inst := state.Active()
	if inst == nil {
		return nil
	}
	graph, err := d.set.Get(inst.FlowName)
	if err != nil {
		return nil
	}
	return graph.Node(pending.StepID)
}

func renderTemplate(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
