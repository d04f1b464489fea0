package types

import "errors"

var (
	// ErrConnectionGone is returned by a frame sender when the target
	// connection no longer exists on the transport.
	ErrConnectionGone = errors.New("connection gone")
	// ErrConnectionNotHeld is returned by a frame sender that does not own
	// the connection, such as a hub in another process or a socket still
	// being accepted. The connection may be alive elsewhere.
	ErrConnectionNotHeld = errors.New("connection not held by this sender")
	// ErrTokenUnregistered is returned by a push gateway when the device
	// token is no longer valid.
	ErrTokenUnregistered = errors.New("push token unregistered")
)
