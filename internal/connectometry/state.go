package connectometry

// State is the coordinator lifecycle stage.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateRestart
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateRestart:
		return "RESTART"
	case StateFinalizing:
		return "FINALIZING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
