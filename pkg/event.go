package protocol

// EventType enumerates the conditions the simulated hardware reports to a
// protocol state machine through WaitForEvent.
type EventType int

const (
	FRAME_ARRIVAL EventType = iota
	CKSUM_ERR
	TIMEOUT
	ACK_TIMEOUT
	NETWORK_LAYER_READY
)

func (ev EventType) String() string {
	switch ev {
	case FRAME_ARRIVAL:
		return "FRAME_ARRIVAL"
	case CKSUM_ERR:
		return "CKSUM_ERR"
	case TIMEOUT:
		return "TIMEOUT"
	case ACK_TIMEOUT:
		return "ACK_TIMEOUT"
	case NETWORK_LAYER_READY:
		return "NETWORK_LAYER_READY"
	}
	return "UNKNOWN"
}
