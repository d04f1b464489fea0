package types

import "encoding/json"

// Inbound message types carried in Envelope.Data.type.
const (
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeAcknowledge     = "acknowledge"
	MessageTypeActiveTimerList = "activeTimerList"
	MessageTypeStopTimer       = "stopTimer"
	MessageTypeUpdateTimer     = "updateTimer"
)

// Envelope is the outer shape of every inbound socket message.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// MessageHeader decodes only the discriminator of an envelope payload.
type MessageHeader struct {
	Type string `json:"type"`
}

// StopTimerData is the payload of a stopTimer message. Timer is optional and
// only used to recover the owner when the stored copy is already gone.
type StopTimerData struct {
	Type    string `json:"type"`
	TimerID string `json:"timerId"`
	Timer   *Timer `json:"timer,omitempty"`
}

// UpdateTimerData is the payload of an updateTimer message. A missing
// ShareWith clears all sharing for the timer.
type UpdateTimerData struct {
	Type      string   `json:"type"`
	Timer     *Timer   `json:"timer"`
	ShareWith []string `json:"shareWith,omitempty"`
}

// TimerUpdateFrame is pushed to every recipient after an update.
type TimerUpdateFrame struct {
	Type  string `json:"type"`
	Timer Timer  `json:"timer"`
}

// TimerStopFrame is pushed to every recipient after a stop.
type TimerStopFrame struct {
	Type    string `json:"type"`
	TimerID string `json:"timerId"`
}

// ConnectEvent opens a connection for a user's device.
type ConnectEvent struct {
	ConnectionID string
	UserID       string
	DeviceID     string
}

// DisconnectEvent closes a connection. UserID and DeviceID may be empty, in
// which case they are resolved from ConnectionID.
type DisconnectEvent struct {
	ConnectionID string
	UserID       string
	DeviceID     string
}

// MessageEvent carries one inbound frame. UserID may be empty, in which case
// it is resolved from ConnectionID.
type MessageEvent struct {
	ConnectionID string
	UserID       string
	Body         []byte
}

// ProtocolResponse is the result of handling a socket lifecycle event. Body is
// a JSON document; an empty Body means nothing is sent back to the client.
type ProtocolResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}
