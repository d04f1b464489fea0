package types

import "time"

// Connection maps a user's device to its live transport handle. ConnectionID
// is empty while the device is disconnected; the row itself is kept.
type Connection struct {
	UserID       string    `json:"userId" dynamodbav:"userId"`
	DeviceID     string    `json:"deviceId" dynamodbav:"deviceId"`
	ConnectionID string    `json:"connectionId,omitempty" dynamodbav:"connectionId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Live reports whether the device currently holds a connection.
func (c Connection) Live() bool {
	return c.ConnectionID != ""
}
