package models

import "time"

// ActionFailure captures a failed automated action for the failure topic.
type ActionFailure struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
