package domain

import "time"

// WorkflowStage is one approval step bound to an approver role.
type WorkflowStage struct {
	Name         string    `json:"name"`
	ApproverRole StaffRole `json:"approver_role"`
}

// Workflow is an ordered list of approval stages. It is never modified while a
// ticket traverses it.
type Workflow struct {
	ID        string
	Name      string
	Stages    []WorkflowStage
	CreatedAt time.Time
}

// StageCount returns the number of stages.
func (w *Workflow) StageCount() int {
	if w == nil {
		return 0
	}
	return len(w.Stages)
}
