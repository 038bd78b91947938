package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Command is a structured instruction derived from user input by the
// understanding provider. The set is closed: each variant is a struct
// implementing the sealed marker. Commands are inputs only; they are
// never stored beyond the turn that consumes them.
type Command interface {
	// CommandName returns the stable wire name of the command.
	CommandName() string

	isCommand()
}

// StartFlow activates a new flow on top of the stack.
type StartFlow struct {
	Flow  string         `mapstructure:"flow"`
	Slots map[string]any `mapstructure:"slots"`
}

// CancelFlow cancels the active flow with an optional reason.
type CancelFlow struct {
	Reason string `mapstructure:"reason"`
}

// SetSlot fills a slot on the active flow.
type SetSlot struct {
	Slot  string `mapstructure:"slot"`
	Value any    `mapstructure:"value"`
}

// CorrectSlot revises a previously provided slot value.
type CorrectSlot struct {
	Slot  string `mapstructure:"slot"`
	Value any    `mapstructure:"value"`
}

// Affirm answers a pending confirmation positively.
type Affirm struct{}

// Deny answers a pending confirmation negatively. SlotToChange names
// the slot the user wants to revise, if any.
type Deny struct {
	SlotToChange string `mapstructure:"slot_to_change"`
}

// Clarify asks why the engine needs the pending input.
type Clarify struct {
	Topic string `mapstructure:"topic"`
}

// Cancel aborts the active flow without a reason.
type Cancel struct{}

// ChitChat is off-task small talk. The core leaves it unconsumed.
type ChitChat struct {
	Hint string `mapstructure:"hint"`
}

func (StartFlow) CommandName() string   { return "start_flow" }
func (CancelFlow) CommandName() string  { return "cancel_flow" }
func (SetSlot) CommandName() string     { return "set_slot" }
func (CorrectSlot) CommandName() string { return "correct_slot" }
func (Affirm) CommandName() string      { return "affirm" }
func (Deny) CommandName() string        { return "deny" }
func (Clarify) CommandName() string     { return "clarify" }
func (Cancel) CommandName() string      { return "cancel" }
func (ChitChat) CommandName() string    { return "chitchat" }

func (StartFlow) isCommand()   {}
func (CancelFlow) isCommand()  {}
func (SetSlot) isCommand()     {}
func (CorrectSlot) isCommand() {}
func (Affirm) isCommand()      {}
func (Deny) isCommand()        {}
func (Clarify) isCommand()     {}
func (Cancel) isCommand()      {}
func (ChitChat) isCommand()    {}

// DecodeCommand converts a generic record (e.g. a JSON object from the
// HTTP commands endpoint) into a Command. The record must carry a
// "command" field naming the variant; remaining fields are decoded
// through mapstructure.
func DecodeCommand(record map[string]any) (Command, error) {
	name, _ := record["command"].(string)
	if name == "" {
		return nil, fmt.Errorf("command record missing %q field", "command")
	}

	var target Command
	switch name {
	case "start_flow":
		var cmd StartFlow
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "cancel_flow":
		var cmd CancelFlow
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "set_slot":
		var cmd SetSlot
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "correct_slot":
		var cmd CorrectSlot
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "affirm":
		target = Affirm{}
	case "deny":
		var cmd Deny
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "clarify":
		var cmd Clarify
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	case "cancel":
		target = Cancel{}
	case "chitchat":
		var cmd ChitChat
		if err := decodeInto(record, &cmd, name); err != nil {
			return nil, err
		}
		target = cmd
	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return target, nil
}

func decodeInto(record map[string]any, target any, name string) error {
	if err := mapstructure.Decode(record, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
