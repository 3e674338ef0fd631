package protocol

// MAX_PKT is the maximum packet payload size in bytes.
const MAX_PKT = 1024

type FrameKind int

const (
	DATA FrameKind = iota
	ACK
	NAK
)

func (fk FrameKind) String() string {
	switch fk {
	case DATA:
		return "DATA"
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	}
	return "UNKNOWN"
}

// Packet is a network-layer packet (the payload carried inside a frame).
type Packet struct {
	Data []byte
}

// Frame is a data-link layer frame travelling over the simulated channel.
type Frame struct {
	Kind FrameKind
	Seq  int    // sequence number in [0, maxSeq]
	Ack  int    // (piggybacked) acknowledgement number in [0, maxSeq]
	Info Packet // payload, only meaningful for DATA frames
}

func copyPacket(p Packet) Packet {
	return Packet{Data: append([]byte(nil), p.Data...)}
}

func copyFrame(f Frame) Frame {
	return Frame{
		Kind: f.Kind,
		Seq:  f.Seq,
		Ack:  f.Ack,
		Info: copyPacket(f.Info),
	}
}

// Inc increments k circularly in the range [0, maxSeq].
func Inc(k int, maxSeq int) int {
	return (k + 1) % (maxSeq + 1)
}

// Between returns true if a <= b < c circularly (modulo maxSeq+1).
// Used by Go-Back-N and Selective Repeat to test whether an ack or an
// arriving sequence number falls inside the current window.
func Between(a int, b int, c int) bool {
	return (a <= b && b < c) || (c < a && a <= b) || (b < c && c < a)
}
