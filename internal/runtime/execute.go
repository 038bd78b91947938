package runtime

import (
	"context"
	"fmt"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
)

// executeNode runs one node's body. It returns the advanced state plus
// either the id of the next node to visit, a pending task (suspension),
// or an empty next id when control transferred to another flow
// instance.
func (e *Engine) executeNode(ctx context.Context, st *domain.State, graph *flows.Graph, node *flows.Node, flowID string, replies *[]string) (*domain.State, string, *domain.PendingTask, error) {
	switch node.Kind {
	case flows.StepSay:
		text := interpolate(node.Prompt, AllSlots(st))
		*replies = append(*replies, text)
		st = domain.Apply(st, domain.Delta{}.WithExecuted(flowID, node.ID))
		if node.WaitForAck {
			return st, "", &domain.PendingTask{
				Kind:   domain.TaskInform,
				Prompt: text,
				StepID: node.ID,
				FlowID: flowID,
			}, nil
		}
		return st, node.Next, nil, nil

	case flows.StepCollect:
		value, ok := GetSlot(st, node.Slot)
		if ok && value != nil {
			if node.Validator == "" {
				return st, node.Next, nil, nil
			}
			valid, err := e.validators.Validate(ctx, node.Validator, value, AllSlots(st))
			if err != nil {
				return nil, "", nil, &domain.ValidationError{
					Validator: node.Validator, Slot: node.Slot, Err: err,
				}
			}
			if valid {
				return st, node.Next, nil, nil
			}
			e.logger.Debug("slot value rejected, re-prompting",
				"slot", node.Slot, "validator", node.Validator)
			st = domain.Apply(st, SetSlot(st, node.Slot, nil))
		}
		prompt := interpolate(node.Prompt, AllSlots(st))
		*replies = append(*replies, prompt)
		return st, "", &domain.PendingTask{
			Kind:     domain.TaskCollect,
			Prompt:   prompt,
			SlotName: node.Slot,
			Options:  node.Options,
			StepID:   node.ID,
			FlowID:   flowID,
		}, nil

	case flows.StepConfirm:
		// An affirmed confirm is marked executed and skipped before we
		// get here, so reaching the node always suspends.
		prompt := interpolate(node.Prompt, AllSlots(st))
		*replies = append(*replies, prompt)
		options := node.Options
		if len(options) == 0 {
			options = []string{"yes", "no"}
		}
		return st, "", &domain.PendingTask{
			Kind:    domain.TaskConfirm,
			Prompt:  prompt,
			Options: options,
			StepID:  node.ID,
			FlowID:  flowID,
		}, nil

	case flows.StepAction:
		outputs, err := e.actions.Execute(ctx, node.Action, AllSlots(st))
		if err != nil {
			return nil, "", nil, &domain.ActionExecutionError{Action: node.Action, Err: err}
		}
		delta := domain.Delta{}
		for outKey, slot := range node.MapOutputs {
			if v, ok := outputs[outKey]; ok {
				delta = delta.WithSlot(flowID, slot, v)
			}
		}
		delta = delta.WithExecuted(flowID, node.ID)
		st = domain.Apply(st, delta)
		return st, node.Next, nil, nil

	case flows.StepSet:
		value := node.Value
		if s, ok := value.(string); ok {
			value = interpolate(s, AllSlots(st))
		}
		delta := SetSlot(st, node.Slot, value).WithExecuted(flowID, node.ID)
		st = domain.Apply(st, delta)
		return st, node.Next, nil, nil

	case flows.StepBranch:
		slots := AllSlots(st)
		label := fmt.Sprintf("%v", slots[node.Condition])
		target, ok := node.Cases[label]
		if !ok && node.DefaultCase != "" {
			target, ok = node.Cases[node.DefaultCase], true
		}
		if !ok {
			return nil, "", nil, fmt.Errorf("%w: flow %q step %q selector %q=%q",
				domain.ErrNoMatchingCase, graph.Name, node.ID, node.Condition, label)
		}
		return st, target, nil, nil

	case flows.StepWhile:
		ok, err := e.evaluator(node.Condition, AllSlots(st))
		if err != nil {
			return nil, "", nil, fmt.Errorf("flow %q step %q condition: %w", graph.Name, node.ID, err)
		}
		if ok {
			return st, node.BodyStart, nil, nil
		}
		return st, node.ExitTo, nil, nil

	case flows.StepCall:
		// The caller resumes past the call node once the callee's
		// terminal pops it back to the top of the stack.
		st = domain.Apply(st, domain.Delta{}.WithExecuted(flowID, node.ID))
		_, delta := PushFlow(st, node.Target, nil)
		st = domain.Apply(st, delta)
		e.metrics.FlowStarted()
		e.logger.Debug("flow called", "caller", graph.Name, "callee", node.Target)
		return st, "", nil, nil

	case flows.StepLink:
		// A link is a transfer: the current instance is replaced, with
		// no return path.
		st = domain.Apply(st, domain.Delta{}.WithExecuted(flowID, node.ID))
		_, popDelta, err := PopFlow(st, domain.StatusCompleted)
		if err != nil {
			return nil, "", nil, err
		}
		st = domain.Apply(st, popDelta)
		e.metrics.FlowEnded(false)
		_, pushDelta := PushFlow(st, node.Target, nil)
		st = domain.Apply(st, pushDelta)
		e.metrics.FlowStarted()
		e.logger.Debug("flow linked", "from", graph.Name, "to", node.Target)
		return st, "", nil, nil

	default:
		return nil, "", nil, fmt.Errorf("flow %q step %q: unexpected kind %q", graph.Name, node.ID, node.Kind)
	}
}
