package bridge

type bridgeError string

func (e bridgeError) Error() string {
	return string(e)
}

const (
	// ErrAlreadyRunning is returned when a worker for the bridge is registered.
	ErrAlreadyRunning = bridgeError("bridge is already running")
	// ErrNotRunning is returned when no worker for the bridge is registered.
	ErrNotRunning = bridgeError("bridge is not running")
	// ErrNotConnected is returned when the default bridge has no connection.
	ErrNotConnected = bridgeError("bridge is not connected")
	// ErrNoDefaultBridge is returned when no default bridge is configured.
	ErrNoDefaultBridge = bridgeError("no default bridge configured")
	// ErrInvalidMessage is returned for outbox messages without bridge, kind or target.
	ErrInvalidMessage = bridgeError("invalid outbox message")
)
