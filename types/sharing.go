package types

import "time"

// SharingRelationship is a directed edge granting SharedWith visibility of TimerID.
type SharingRelationship struct {
	TimerID    string    `json:"timerId" dynamodbav:"timerId"`
	SharedWith string    `json:"sharedWith" dynamodbav:"sharedWith"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// ShareResult splits share targets by outcome, both in request order.
type ShareResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}

// ShareTimerRequest is the request body for sharing a timer with other users.
// Timer is used to materialize the record when it has not been saved yet.
type ShareTimerRequest struct {
	TimerID string   `json:"timerId" binding:"required"`
	UserIDs []string `json:"userIds" binding:"required"`
	Timer   *Timer   `json:"timer,omitempty"`
}

// RejectShareRequest removes the caller's edge to a shared timer.
type RejectShareRequest struct {
	TimerID string `json:"timerId" binding:"required"`
}
