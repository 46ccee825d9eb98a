package domain

// ConnState is the lifecycle state of a client connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateJoined
	StateLeaving
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
