package netcode

import "errors"

// Error taxonomy for the network core. Construction-time failures are
// returned to the caller; runtime failures inside Service are logged and
// swallowed. Wrap these with fmt.Errorf("%w: detail", …) so errors.Is still
// classifies them.
var (
	// ErrNotInitialized: an operation ran before Init.
	ErrNotInitialized = errors.New("network subsystem not initialized")

	// ErrAlreadyInitialized: Init was called twice, or a connect was issued
	// while a connection already exists or is in progress.
	ErrAlreadyInitialized = errors.New("network subsystem already initialized")

	// ErrHostCreation: binding the port or creating the transport object
	// failed.
	ErrHostCreation = errors.New("failed to create network host")

	// ErrConnectionFailed: a connection attempt was rejected or aborted.
	ErrConnectionFailed = errors.New("failed to connect")

	// ErrSendFailed: the transport refused an outgoing packet.
	ErrSendFailed = errors.New("send operation failed")

	// ErrInvalidAddress: the address string did not parse.
	ErrInvalidAddress = errors.New("invalid network address")

	// ErrTimeout: a blocking connect ran out of time.
	ErrTimeout = errors.New("connection timed out")

	// ErrDisconnected: a send was attempted without a live connection.
	ErrDisconnected = errors.New("peer disconnected")
)
