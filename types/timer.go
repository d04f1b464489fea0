package types

import "strings"

// Timer is a countdown timer. Durations are opaque strings owned by the client;
// RemainingDuration and EndTime are both absent when the timer is not running.
type Timer struct {
	ID                string  `json:"id" dynamodbav:"id"`
	UserID            string  `json:"userId" dynamodbav:"userId"`
	Name              string  `json:"name" dynamodbav:"name"`
	TotalDuration     string  `json:"totalDuration" dynamodbav:"totalDuration"`
	RemainingDuration *string `json:"remainingDuration,omitempty" dynamodbav:"remainingDuration,omitempty"`
	EndTime           *string `json:"timerEnd,omitempty" dynamodbav:"timerEnd,omitempty"`
}

// IsRunning reports whether the timer carries countdown state.
func (t *Timer) IsRunning() bool {
	return t.RemainingDuration != nil || t.EndTime != nil
}

// MissingFields lists the required fields that are empty, in wire-key form.
// The owner is not checked here because callers assign it.
func (t *Timer) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(t.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(t.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(t.TotalDuration) == "" {
		missing = append(missing, "totalDuration")
	}
	return missing
}

// WithOwner returns a copy of the timer owned by userID.
func (t Timer) WithOwner(userID string) Timer {
	t.UserID = userID
	return t
}

// SaveTimerRequest is the request body for persisting a timer over REST.
type SaveTimerRequest struct {
	Timer *Timer `json:"timer" binding:"required"`
}
