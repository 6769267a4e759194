package domain

// ConnState is the observable state of the transport link.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	// StateReconnecting distinguishes automatic retry from the initial attempt.
	StateReconnecting ConnState = "reconnecting"
)
