// Package keyword is a deterministic understanding provider built on a
// small slash-command grammar. It exists so the engine runs end-to-end
// (CLI, tests, demos) without a natural-language component:
//
//	/start <flow> [slot=value ...]   start a flow
//	/cancel                          cancel the active flow
//	/set <slot> <value>              fill a slot
//	/correct <slot> <value>          revise a slot
//	/why                             ask for clarification
//	yes | no [slot]                  answer a pending confirmation
//	<flow name>                      start that flow
//	<anything else>                  fills the expected slot, if any
package keyword

import (
	"context"
	"strings"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/ports"
)

// Provider implements ports.UnderstandingProvider.
type Provider struct{}

// New creates a keyword provider.
func New() *Provider {
	return &Provider{}
}

// Classify maps user text to structured commands. Unrecognized input
// with no expected slot becomes chitchat, which the engine leaves
// unconsumed.
func (p *Provider) Classify(ctx context.Context, userText string, tc ports.TurnContext) ([]domain.Command, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, nil
	}

	if strings.HasPrefix(text, "/") {
		return p.slashCommand(text)
	}

	if tc.Pending != nil && tc.Pending.Kind == domain.TaskConfirm {
		if cmd, ok := confirmationAnswer(text); ok {
			return []domain.Command{cmd}, nil
		}
	}

	for _, flow := range tc.AvailableFlows {
		if strings.EqualFold(text, flow) {
			return []domain.Command{domain.StartFlow{Flow: flow}}, nil
		}
	}

	if tc.ExpectedSlot != "" {
		return []domain.Command{domain.SetSlot{Slot: tc.ExpectedSlot, Value: text}}, nil
	}

	return []domain.Command{domain.ChitChat{Hint: text}}, nil
}

func (p *Provider) slashCommand(text string) ([]domain.Command, error) {
	fields := strings.Fields(text)
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "/start":
		if len(args) == 0 {
			return nil, nil
		}
		cmd := domain.StartFlow{Flow: args[0]}
		for _, pair := range args[1:] {
			if k, v, ok := strings.Cut(pair, "="); ok {
				if cmd.Slots == nil {
					cmd.Slots = make(map[string]any)
				}
				cmd.Slots[k] = v
			}
		}
		return []domain.Command{cmd}, nil

	case "/cancel":
		return []domain.Command{domain.Cancel{}}, nil

	case "/set":
		if len(args) < 2 {
			return nil, nil
		}
		return []domain.Command{domain.SetSlot{
			Slot:  args[0],
			Value: strings.Join(args[1:], " "),
		}}, nil

	case "/correct":
		if len(args) < 2 {
			return nil, nil
		}
		return []domain.Command{domain.CorrectSlot{
			Slot:  args[0],
			Value: strings.Join(args[1:], " "),
		}}, nil

	case "/why":
		return []domain.Command{domain.Clarify{}}, nil

	default:
		return nil, nil
	}
}

func confirmationAnswer(text string) (domain.Command, bool) {
	fields := strings.Fields(strings.ToLower(text))
	switch fields[0] {
	case "y", "yes", "yep", "sure", "ok", "okay":
		return domain.Affirm{}, true
	case "n", "no", "nope":
		deny := domain.Deny{}
		if len(fields) > 1 {
			deny.SlotToChange = fields[1]
		}
		return deny, true
	}
	return nil, false
}
