package model

import (
	"math"
	"time"
)

// TimeEntry is a block of tracked work against a task.
type TimeEntry struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`

	// Hours is positive and rounded to two decimals.
	Hours float64 `json:"hours"`

	// Date is an ISO date (YYYY-MM-DD).
	Date        string `json:"date"`
	Description string `json:"description"`
	Billable    bool   `json:"billable"`
}

// RoundHours rounds h to two decimal places.
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// SecondsToHours converts an elapsed second count to rounded hours.
func SecondsToHours(seconds int64) float64 {
	return RoundHours(float64(seconds) / 3600)
}

// ActiveTimer is the backend's record of a running timer. StartedAt is the
// server's clock and the only input to elapsed-time display.
type ActiveTimer struct {
	TaskID      string    `json:"taskId"`
	ProjectID   string    `json:"projectId"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"startedAt"`
}
