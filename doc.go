/*
Package soni is a dialogue orchestration engine. It runs declaratively
defined conversational flows as a stack of suspendable sub-programs,
routes structured commands into state mutations, and persists execution
across turns of interaction.

The engine is domain-agnostic: it never parses natural language. An
external understanding provider turns user text into commands ("start
flow X", "set slot Y", "cancel"), and the engine decides how the flow
stack and slot data evolve, which flow runs next, and when execution
must pause to await input.

# Concept

A flow is an ordered list of typed steps, compiled into a node graph.
Running a flow pushes an instance onto the session's stack; a Call step
pushes a nested flow that returns to its caller, a Link step transfers
without a return path. When a step needs user input the engine returns
a pending task and stops. Nothing blocks while waiting: all state needed
to resume is persisted, and the next turn re-enters the graph, skipping
steps whose side effects already fired.

# Usage

	defs, err := flows.LoadDir("./flows")
	if err != nil {
		log.Fatal(err)
	}

	engine, err := soni.New(defs,
		soni.WithCheckpointStore(memory.NewStore()),
		soni.WithUnderstanding(keyword.New()),
	)
	if err != nil {
		log.Fatal(err)
	}

	reply, err := engine.ProcessTurn(ctx, "session-123", "/start greet")

ProcessTurn is the only entry point a front end needs: it loads the
session, classifies the text, runs the turn, persists the result, and
returns the reply. Integrator side effects and slot validation hook in
through the action and validator registries.
*/
package soni
