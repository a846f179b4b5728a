package conversation

// State is the transport mode of a conversation
type State int

const (
	StateIdle State = iota
	StateOneShotPending
	StateStreamingOpen
	StateStreamingClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOneShotPending:
		return "one_shot_pending"
	case StateStreamingOpen:
		return "streaming_open"
	case StateStreamingClosed:
		return "streaming_closed"
	default:
		return "unknown"
	}
}

// User-visible texts appended by the manager
const (
	SessionEndedText   = "The interactive session has ended."
	LostConnectionText = "Sorry, I lost connection with my team. Please try again."
	UnreachableText    = "Could not connect to backend. Please ensure it is running."
	GenericErrorText   = "Sorry, I encountered an error. Please try again."
)
