package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSelectiveRepeat(t *testing.T, env *Environment, maxSeq int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := &SelectiveRepeat{Env: env, MaxSeq: maxSeq}
	go p.Run(ctx)
}

// peerAck is the ack value carried by a peer that has received nothing yet
// (frameExpected-1 circularly, with maxSeq=7).
const peerAck = 7

func TestSelectiveRepeatBuffersOutOfOrder(t *testing.T) {
	env := NewEnvironment(time.Hour, 40*time.Millisecond)
	startSelectiveRepeat(t, env, 7)

	// physical arrival order 2, 0, 1
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 2, Ack: peerAck, Info: Packet{Data: []byte("p2")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 0, Ack: peerAck, Info: Packet{Data: []byte("p0")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 1, Ack: peerAck, Info: Packet{Data: []byte("p1")}})

	// application delivery order must be 0, 1, 2
	deadline := time.Now().Add(2 * time.Second)
	var got []Packet
	for len(got) < 3 && time.Now().Before(deadline) {
		got = append(got, env.DrainDeliveredPackets()...)
		time.Sleep(time.Millisecond)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "p0", string(got[0].Data))
	assert.Equal(t, "p1", string(got[1].Data))
	assert.Equal(t, "p2", string(got[2].Data))
}

func TestSelectiveRepeatDoesNotLeakArrivedState(t *testing.T) {
	env := NewEnvironment(time.Hour, 40*time.Millisecond)
	startSelectiveRepeat(t, env, 7)

	// deliver a full first window out of order, then reuse the same buffer
	// slots for the next window
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 1, Ack: peerAck, Info: Packet{Data: []byte("b")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 0, Ack: peerAck, Info: Packet{Data: []byte("a")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 2, Ack: peerAck, Info: Packet{Data: []byte("c")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 3, Ack: peerAck, Info: Packet{Data: []byte("d")}})
	waitForBytes(t, env, []byte("abcd"), 2*time.Second)

	// seq 4..7 map onto the same slots 0..3; stale arrived bits would break this
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 5, Ack: peerAck, Info: Packet{Data: []byte("f")}})
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 4, Ack: peerAck, Info: Packet{Data: []byte("e")}})
	waitForBytes(t, env, []byte("ef"), 2*time.Second)
}

func TestSelectiveRepeatSingleNak(t *testing.T) {
	env := NewEnvironment(time.Hour, time.Hour)
	startSelectiveRepeat(t, env, 7)

	// an unexpected sequence number provokes exactly one NAK
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 2, Ack: peerAck, Info: Packet{Data: []byte("p2")}})
	frames := collectFrames(t, env, 1, 2*time.Second)
	require.Equal(t, NAK, frames[0].Kind)
	// the NAK's ack names the last in-order frame received (none yet)
	assert.Equal(t, peerAck, frames[0].Ack)

	// further trouble before the gap is repaired must not add NAKs
	env.PushCorruptionSignal()
	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 3, Ack: peerAck, Info: Packet{Data: []byte("p3")}})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, countKind(drainFrames(env), NAK))
}

func TestSelectiveRepeatCksumErrTriggersNak(t *testing.T) {
	env := NewEnvironment(time.Hour, time.Hour)
	startSelectiveRepeat(t, env, 7)

	env.PushCorruptionSignal()
	frames := collectFrames(t, env, 1, 2*time.Second)
	assert.Equal(t, NAK, frames[0].Kind)

	// still suppressed until a data frame is delivered in order
	env.PushCorruptionSignal()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, countKind(drainFrames(env), NAK))
}

func TestSelectiveRepeatNakTriggersSingleResend(t *testing.T) {
	env := NewEnvironment(time.Hour, time.Hour)
	startSelectiveRepeat(t, env, 7)

	env.PushApplicationPacket([]byte("p0"))
	env.PushApplicationPacket([]byte("p1"))
	env.PushApplicationPacket([]byte("p2"))
	initial := collectFrames(t, env, 3, 2*time.Second)
	require.Equal(t, []int{0, 1, 2}, seqsOf(initial))

	// peer NAKs frame 1: ack field says "got up to 0"
	env.PushIncomingFrame(Frame{Kind: NAK, Seq: 0, Ack: 0})
	resent := collectFrames(t, env, 1, 2*time.Second)
	assert.Equal(t, DATA, resent[0].Kind)
	assert.Equal(t, 1, resent[0].Seq)
	assert.Equal(t, "p1", string(resent[0].Info.Data))

	// only the requested frame goes out again
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, drainFrames(env))
}

func TestSelectiveRepeatTimeoutResendsOldestOnly(t *testing.T) {
	timerInterval := 250 * time.Millisecond
	env := NewEnvironment(timerInterval, time.Hour)
	startSelectiveRepeat(t, env, 7)

	env.PushApplicationPacket([]byte("p0"))
	env.PushApplicationPacket([]byte("p1"))
	initial := collectFrames(t, env, 2, 2*time.Second)
	require.Equal(t, []int{0, 1}, seqsOf(initial))

	// first expiry retransmits only the oldest unacked frame
	resent := collectFrames(t, env, 1, 2*time.Second)
	assert.Equal(t, 0, resent[0].Seq)
	assert.Equal(t, "p0", string(resent[0].Info.Data))
}

func TestSelectiveRepeatAckTimeoutSendsBareAck(t *testing.T) {
	env := NewEnvironment(time.Hour, 50*time.Millisecond)
	startSelectiveRepeat(t, env, 7)

	env.PushIncomingFrame(Frame{Kind: DATA, Seq: 0, Ack: peerAck, Info: Packet{Data: []byte("p0")}})
	waitForBytes(t, env, []byte("p0"), 2*time.Second)

	// nothing to piggyback on, so the ack timer forces a bare ACK
	frames := collectFrames(t, env, 1, 2*time.Second)
	assert.Equal(t, ACK, frames[0].Kind)
	assert.Equal(t, 0, frames[0].Ack)
}

func TestSelectiveRepeatEndToEnd(t *testing.T) {
	payloadA := []byte("selective repeat exercises out of order delivery....")
	payloadB := []byte("and the reverse direction carries piggybacked acks..")

	sim := NewSimulator(nil, nil)
	err := sim.Start(StartOptions{
		Protocol:   "selective-repeat",
		MaxSeq:     7,
		MinDelay:   time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
		AckTimeout: 40 * time.Millisecond,
		PayloadA:   payloadA,
		PayloadB:   payloadB,
	})
	require.NoError(t, err)

	waitForBytes(t, sim.EnvB, payloadA, 15*time.Second)
	waitForBytes(t, sim.EnvA, payloadB, 15*time.Second)
	sim.Stop()
}
