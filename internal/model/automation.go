package model

// TriggerKind is the event that fires an automation rule.
type TriggerKind string

const (
	TriggerStatusChange   TriggerKind = "status_change"
	TriggerDueDate        TriggerKind = "due_date"
	TriggerTaskCreated    TriggerKind = "task_created"
	TriggerAssigneeChange TriggerKind = "assignee_change"
)

// Valid reports whether k is a known trigger kind.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerStatusChange, TriggerDueDate, TriggerTaskCreated, TriggerAssigneeChange:
		return true
	}
	return false
}

// ActionKind is what an automation rule does when triggered.
type ActionKind string

const (
	ActionNotify      ActionKind = "notify"
	ActionAssign      ActionKind = "assign"
	ActionSetStatus   ActionKind = "set_status"
	ActionSetPriority ActionKind = "set_priority"
	ActionAddLabel    ActionKind = "add_label"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionNotify, ActionAssign, ActionSetStatus, ActionSetPriority, ActionAddLabel:
		return true
	}
	return false
}

// AutomationRule is a trigger/action pair scoped to a project. The backend
// evaluates rules; the client only configures them.
type AutomationRule struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Trigger      TriggerKind `json:"trigger"`
	TriggerValue string      `json:"triggerValue"`
	Action       ActionKind  `json:"action"`
	ActionValue  string      `json:"actionValue"`
	Enabled      bool        `json:"enabled"`
	ProjectID    string      `json:"projectId"`
}

// RulePatch is a partial update. Nil fields are left untouched.
type RulePatch struct {
	Name         *string      `json:"name,omitempty"`
	Trigger      *TriggerKind `json:"trigger,omitempty"`
	TriggerValue *string      `json:"triggerValue,omitempty"`
	Action       *ActionKind  `json:"action,omitempty"`
	ActionValue  *string      `json:"actionValue,omitempty"`
	Enabled      *bool        `json:"enabled,omitempty"`
	ProjectID    *string      `json:"projectId,omitempty"`
}

// Apply merges the patch into r.
func (p RulePatch) Apply(r *AutomationRule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Trigger != nil && p.Trigger.Valid() {
		r.Trigger = *p.Trigger
	}
	if p.TriggerValue != nil {
		r.TriggerValue = *p.TriggerValue
	}
	if p.Action != nil && p.Action.Valid() {
		r.Action = *p.Action
	}
	if p.ActionValue != nil {
		r.ActionValue = *p.ActionValue
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.ProjectID != nil {
		r.ProjectID = *p.ProjectID
	}
}

// Patch returns a patch that sets every editable field to r's values.
func (r AutomationRule) Patch() RulePatch {
	name, trigger, triggerValue := r.Name, r.Trigger, r.TriggerValue
	action, actionValue, enabled, project := r.Action, r.ActionValue, r.Enabled, r.ProjectID
	return RulePatch{
		Name:         &name,
		Trigger:      &trigger,
		TriggerValue: &triggerValue,
		Action:       &action,
		ActionValue:  &actionValue,
		Enabled:      &enabled,
		ProjectID:    &project,
	}
}
