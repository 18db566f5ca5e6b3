package model

import "time"

// Notification is an alert delivered to the current user, either listed
// from the backend or pushed over the live event channel.
type Notification struct {
	ID string `json:"id"`

	// Kind is the backend's event name, e.g. "task_assigned".
	Kind    string `json:"kind"`
	Message string `json:"message"`

	// TaskID links the notification to a task when set.
	TaskID string `json:"taskId"`

	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
