package soni_test

import (
	"context"
	"fmt"
	"log"

	soni "github.com/jmorenobl/soni-sub003"
	"github.com/jmorenobl/soni-sub003/pkg/adapters/keyword"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
)

// ExampleNew shows the smallest useful setup: flows defined in Go
// structs, the keyword provider turning text into commands, and the
// default in-memory store keeping the session alive between turns.
func ExampleNew() {
	defs := flows.Definitions{
		"greet": {
			{Step: "ask_name", Type: "collect", Slot: "name", Message: "What's your name?"},
			{Step: "hello", Type: "say", Message: "Hello, {name}!"},
		},
	}

	engine, err := soni.New(defs, soni.WithUnderstanding(keyword.New()))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// Turn 1: start the flow. It suspends on the collect step.
	reply, err := engine.ProcessTurn(ctx, "demo", "/start greet")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply)

	// Turn 2: the bare answer fills the slot the engine is waiting on.
	reply, err = engine.ProcessTurn(ctx, "demo", "Ada")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply)

	// Output:
	// What's your name?
	// Hello, Ada!
}

// ExampleEngine_ProcessCommands drives a turn with structured commands
// instead of free text, the way an NLU service or the HTTP commands
// endpoint would. It also registers an action and routes its output
// into a slot.
func ExampleEngine_ProcessCommands() {
	defs := flows.Definitions{
		"balance": {
			{Step: "fetch", Type: "action", Call: "lookup_balance",
				MapOutputs: map[string]string{"balance": "balance"}},
			{Step: "tell", Type: "say", Message: "Your balance is {balance}."},
		},
	}

	engine, err := soni.New(defs)
	if err != nil {
		log.Fatal(err)
	}
	engine.Actions().Register("lookup_balance", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"balance": 42}, nil
	})

	reply, err := engine.ProcessCommands(context.Background(), "demo", []domain.Command{
		domain.StartFlow{Flow: "balance"},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply)

	// Output:
	// Your balance is 42.
}
