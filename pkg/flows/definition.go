package flows

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepDefinition is one declarative step in a flow. Which fields are
// required depends on Type; the compiler enforces that.
type StepDefinition struct {
	Step string `yaml:"step" json:"step"`
	Type string `yaml:"type" json:"type"`

	// Say / Collect / Confirm prompt. Supports {slot} interpolation.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// Collect / Set / Confirm target slot.
	Slot string `yaml:"slot,omitempty" json:"slot,omitempty"`

	// Collect choice constraint and Confirm answer labels.
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`

	// Set literal value. String values are interpolated.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Action name for Action steps.
	Call string `yaml:"call,omitempty" json:"call,omitempty"`

	// MapOutputs routes action output keys into slots.
	MapOutputs map[string]string `yaml:"map_outputs,omitempty" json:"map_outputs,omitempty"`

	// Branch case label -> target step id.
	Cases map[string]string `yaml:"cases,omitempty" json:"cases,omitempty"`

	// Branch fallback label.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`

	// Branch selector / While condition.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// While body.
	Do []StepDefinition `yaml:"do,omitempty" json:"do,omitempty"`

	// Call / Link target flow name.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// While exit override; defaults to the first step after the body.
	ExitTo string `yaml:"exit_to,omitempty" json:"exit_to,omitempty"`

	// Explicit next-step override.
	JumpTo string `yaml:"jump_to,omitempty" json:"jump_to,omitempty"`

	// Say steps with WaitForAck suspend until the user reacts.
	WaitForAck bool `yaml:"wait_for_ack,omitempty" json:"wait_for_ack,omitempty"`

	// Collect validator name, looked up in the validator registry.
	Validator string `yaml:"validator,omitempty" json:"validator,omitempty"`

	// Explanation answers "why are you asking" clarifications.
	Explanation string `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// Definitions maps flow name to its ordered step list.
type Definitions map[string][]StepDefinition

// ParseYAML decodes a flow definition document of the shape
//
//	flows:
//	  greet:
//	    steps:
//	      - step: ask_name
//	        type: collect
//	        ...
func ParseYAML(data []byte) (Definitions, error) {
	var doc struct {
		Flows map[string]struct {
			Steps []StepDefinition `yaml:"steps"`
		} `yaml:"flows"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse flow definitions: %w", err)
	}
	if len(doc.Flows) == 0 {
		return nil, fmt.Errorf("parse flow definitions: no flows declared")
	}
	defs := make(Definitions, len(doc.Flows))
	for name, f := range doc.Flows {
		defs[name] = f.Steps
	}
	return defs, nil
}

// LoadDir reads every .yaml/.yml file under dir and merges the declared
// flows. A flow name declared in two files is an error.
func LoadDir(dir string) (Definitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read flow directory: %w", err)
	}

	merged := make(Definitions)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		defs, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		for name, steps := range defs {
			if _, dup := merged[name]; dup {
				return nil, fmt.Errorf("%s: flow %q declared more than once", entry.Name(), name)
			}
			merged[name] = steps
		}
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("no flow definitions found in %s", dir)
	}
	return merged, nil
}

// Names returns the declared flow names, sorted for determinism.
func (d Definitions) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
