package flows

import (
	"fmt"
	"sort"
)

// StepKind is the closed set of executable node kinds. Unknown kinds
// are a compile-time error, never a run-time fallback.
type StepKind string

const (
	StepSay     StepKind = "say"
	StepCollect StepKind = "collect"
	StepConfirm StepKind = "confirm"
	StepAction  StepKind = "action"
	StepBranch  StepKind = "branch"
	StepSet     StepKind = "set"
	StepWhile   StepKind = "while"
	StepCall    StepKind = "call"
	StepLink    StepKind = "link"
	StepEnd     StepKind = "end"
)

// EndID is the id of the implicit terminal node every flow compiles
// with. Definitions may name it explicitly in jump_to or case targets.
const EndID = "end"

// Node is the compiler's output unit: a step with its kind-specific
// configuration and fully resolved edges.
type Node struct {
	ID   string
	Kind StepKind

	Prompt      string
	Slot        string
	Options     []string
	Value       any
	Action      string
	MapOutputs  map[string]string
	Cases       map[string]string
	DefaultCase string
	Condition   string
	Target      string
	Validator   string
	Explanation string
	WaitForAck  bool

	// Next is the default edge. Unused by branch nodes.
	Next string

	// BodyStart and ExitTo are only set on while nodes.
	BodyStart string
	ExitTo    string
}

// Graph is a compiled flow: nodes indexed by id plus the entry edge.
type Graph struct {
	Name  string
	Entry string

	nodes         map[string]*Node
	order         []string
	collectBySlot map[string]string
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Steps returns the node ids in declaration order (terminal last).
func (g *Graph) Steps() []string {
	return append([]string(nil), g.order...)
}

// CollectFor returns the id of the collect step that fills the given
// slot, used to route "change slot X" denials back into collection.
func (g *Graph) CollectFor(slot string) (string, bool) {
	id, ok := g.collectBySlot[slot]
	return id, ok
}

var kindByType = map[string]StepKind{
	"say":     StepSay,
	"collect": StepCollect,
	"confirm": StepConfirm,
	"action":  StepAction,
	"branch":  StepBranch,
	"set":     StepSet,
	"while":   StepWhile,
	"call":    StepCall,
	"link":    StepLink,
}

// Compile translates one flow's ordered step list into an executable
// graph. All structural validation happens here and fails fast; an
// empty step list compiles to a graph containing only the terminal
// node.
func Compile(flowName string, steps []StepDefinition) (*Graph, error) {
	g := &Graph{
		Name:          flowName,
		Entry:         EndID,
		nodes:         make(map[string]*Node),
		collectBySlot: make(map[string]string),
	}

	if err := checkUniqueIDs(flowName, steps, map[string]bool{}); err != nil {
		return nil, err
	}

	if err := compileList(g, steps, EndID); err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		g.Entry = steps[0].Step
	}

	g.nodes[EndID] = &Node{ID: EndID, Kind: StepEnd}
	g.order = append(g.order, EndID)

	if err := resolveTargets(g); err != nil {
		return nil, err
	}
	return g, nil
}

// compileList flattens one step list (possibly a while body) into the
// graph. exit is the id execution falls through to after the last step:
// the terminal node for a top-level list, the owning while node for a
// loop body.
func compileList(g *Graph, steps []StepDefinition, exit string) error {
	for i, def := range steps {
		if def.Step == "" {
			return &CompilationError{Flow: g.Name, Reason: fmt.Sprintf("step %d has no id", i)}
		}
		kind, ok := kindByType[def.Type]
		if !ok {
			return &CompilationError{Flow: g.Name, Step: def.Step,
				Reason: fmt.Sprintf("unknown step type %q", def.Type)}
		}

		next := exit
		if i+1 < len(steps) {
			next = steps[i+1].Step
		}

		node := &Node{
			ID:          def.Step,
			Kind:        kind,
			Prompt:      def.Message,
			Slot:        def.Slot,
			Options:     append([]string(nil), def.Options...),
			Value:       def.Value,
			Action:      def.Call,
			MapOutputs:  def.MapOutputs,
			Cases:       def.Cases,
			DefaultCase: def.Default,
			Condition:   def.Condition,
			Target:      def.Target,
			Validator:   def.Validator,
			Explanation: def.Explanation,
			WaitForAck:  def.WaitForAck,
			Next:        next,
		}

		switch kind {
		case StepSay:
			if def.Message == "" {
				return missingField(g.Name, def.Step, "message")
			}
		case StepCollect:
			if def.Slot == "" {
				return missingField(g.Name, def.Step, "slot")
			}
			if def.Message == "" {
				return missingField(g.Name, def.Step, "message")
			}
			g.collectBySlot[def.Slot] = def.Step
		case StepConfirm:
			if def.Message == "" {
				return missingField(g.Name, def.Step, "message")
			}
		case StepAction:
			if def.Call == "" {
				return missingField(g.Name, def.Step, "call")
			}
		case StepSet:
			if def.Slot == "" {
				return missingField(g.Name, def.Step, "slot")
			}
		case StepBranch:
			if def.Condition == "" {
				return missingField(g.Name, def.Step, "condition")
			}
			if len(def.Cases) == 0 {
				return missingField(g.Name, def.Step, "cases")
			}
			if def.JumpTo != "" {
				return &CompilationError{Flow: g.Name, Step: def.Step,
					Reason: "jump_to is not allowed on branch steps; use cases"}
			}
		case StepWhile:
			if def.Condition == "" {
				return missingField(g.Name, def.Step, "condition")
			}
			if len(def.Do) == 0 {
				return &CompilationError{Flow: g.Name, Step: def.Step,
					Reason: "while requires a non-empty do block"}
			}
			node.BodyStart = def.Do[0].Step
			node.ExitTo = next
			if def.ExitTo != "" {
				node.ExitTo = def.ExitTo
			}
			// The last body step loops back to the while head.
			if err := compileList(g, def.Do, def.Step); err != nil {
				return err
			}
		case StepCall, StepLink:
			if def.Target == "" {
				return missingField(g.Name, def.Step, "target")
			}
		}

		if def.JumpTo != "" && kind != StepBranch {
			node.Next = def.JumpTo
		}

		g.nodes[def.Step] = node
		g.order = append(g.order, def.Step)
	}
	return nil
}

func checkUniqueIDs(flowName string, steps []StepDefinition, seen map[string]bool) error {
	for _, def := range steps {
		if def.Step == EndID {
			return &CompilationError{Flow: flowName, Step: def.Step,
				Reason: fmt.Sprintf("step id %q is reserved for the terminal node", EndID)}
		}
		if seen[def.Step] {
			return &CompilationError{Flow: flowName, Step: def.Step, Reason: "duplicate step id"}
		}
		if def.Step != "" {
			seen[def.Step] = true
		}
		if len(def.Do) > 0 {
			if err := checkUniqueIDs(flowName, def.Do, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveTargets(g *Graph) error {
	check := func(step, field, target string) error {
		if target == "" {
			return nil
		}
		if _, ok := g.nodes[target]; !ok {
			return &CompilationError{Flow: g.Name, Step: step,
				Reason: fmt.Sprintf("%s target %q does not resolve to a step", field, target)}
		}
		return nil
	}

	for _, id := range g.order {
		node := g.nodes[id]
		switch node.Kind {
		case StepBranch:
			// Deterministic error ordering over case labels.
			labels := make([]string, 0, len(node.Cases))
			for label := range node.Cases {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				if err := check(id, fmt.Sprintf("case %q", label), node.Cases[label]); err != nil {
					return err
				}
			}
			if node.DefaultCase != "" {
				if _, ok := node.Cases[node.DefaultCase]; !ok {
					return &CompilationError{Flow: g.Name, Step: id,
						Reason: fmt.Sprintf("default %q is not a declared case", node.DefaultCase)}
				}
			}
		case StepWhile:
			if err := check(id, "body", node.BodyStart); err != nil {
				return err
			}
			if err := check(id, "exit_to", node.ExitTo); err != nil {
				return err
			}
		case StepEnd:
			// Terminal has no edges.
		default:
			if err := check(id, "next", node.Next); err != nil {
				return err
			}
		}
	}
	return nil
}

func missingField(flow, step, field string) error {
	return &CompilationError{Flow: flow, Step: step,
		Reason: fmt.Sprintf("missing required field %q", field)}
}
