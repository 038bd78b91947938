package domain

// TaskKind identifies why execution suspended.
type TaskKind string

const (
	// TaskCollect waits for a slot value from the user.
	TaskCollect TaskKind = "collect"
	// TaskConfirm waits for an affirm/deny answer.
	TaskConfirm TaskKind = "confirm"
	// TaskInform waits for the user to acknowledge a message.
	TaskInform TaskKind = "inform"
)

// PendingTask describes the input the engine is suspended on. The
// suspension model is "return a value and stop": everything needed to
// resume lives in the persisted State, and resuming is just another
// call into the engine with fresh commands.
type PendingTask struct {
	Kind   TaskKind `json:"kind"`
	Prompt string   `json:"prompt"`

	// SlotName is set for collect tasks.
	SlotName string `json:"slot_name,omitempty"`

	// Options constrains the expected answer (choice collects, confirm
	// yes/no labels).
	Options []string `json:"options,omitempty"`

	// StepID is the suspended step, used to re-enter the graph.
	StepID string `json:"step_id"`

	// FlowID is the instance the task belongs to.
	FlowID string `json:"flow_id"`
}
