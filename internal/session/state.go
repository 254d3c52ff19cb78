package session

// State is the connection lifecycle of one logical session. Transitions
// are linear except for the Connected-Authenticated loop on reconnect.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Authenticating
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
