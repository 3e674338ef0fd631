package protocol

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	DEFAULT_TIMEOUT     = 500 * time.Millisecond // per-frame retransmission timer
	DEFAULT_ACK_TIMEOUT = 250 * time.Millisecond // standalone ack timer
)

// ErrEmptyQueue is returned when a protocol pops from an empty queue. Doing so
// is a bug in the calling state machine: it must only pop after observing the
// corresponding event.
var ErrEmptyQueue = errors.New("empty queue")

// Environment is one endpoint's simulated network interface. It owns the
// application queues, the physical-layer queues, the per-slot timer table and
// the ack timer, and exposes the primitives every protocol is written against.
//
// The protocol goroutine bound to the Environment is the only caller of the
// primitive methods; the channel pump pushes into the incoming side and drains
// the outgoing side. All state is guarded by one mutex, and producers signal
// the wake channel so WaitForEvent can block instead of spinning.
type Environment struct {
	mutex sync.Mutex
	wake  chan struct{}

	networkEnabled bool
	netOutgoing    []Packet // application -> protocol (to be sent)
	netIncoming    []Packet // protocol -> application (delivered)
	phyIncoming    []Frame  // channel -> protocol
	phyOutgoing    []Frame  // protocol -> channel
	errorCount     int      // pending channel-injected CKSUM_ERR events

	timerDeadline map[int]time.Time // timer slot -> deadline
	timerInterval time.Duration

	ackTimerOn       bool
	ackTimerDeadline time.Time
	ackTimerInterval time.Duration
}

// NewEnvironment creates an Environment with the given timer intervals.
// Zero intervals fall back to the defaults.
func NewEnvironment(timerInterval time.Duration, ackTimerInterval time.Duration) *Environment {
	if timerInterval <= 0 {
		timerInterval = DEFAULT_TIMEOUT
	}
	if ackTimerInterval <= 0 {
		ackTimerInterval = DEFAULT_ACK_TIMEOUT
	}
	return &Environment{
		wake:             make(chan struct{}, 1),
		networkEnabled:   true,
		timerDeadline:    make(map[int]time.Time),
		timerInterval:    timerInterval,
		ackTimerInterval: ackTimerInterval,
	}
}

// notify wakes up a blocked WaitForEvent, if any. The channel is buffered so
// the signal coalesces and producers never block.
func (env *Environment) notify() {
	select {
	case env.wake <- struct{}{}:
	default:
	}
}

// WaitForEvent blocks until one of the five event conditions holds, checked in
// priority order: expired frame timer, expired ack timer, pending corruption
// signal, frame arrival, network layer ready. It returns an error only when
// ctx is cancelled.
func (env *Environment) WaitForEvent(ctx context.Context) (EventType, error) {
	for {
		env.mutex.Lock()
		now := time.Now()

		// 1) Did some frame timer expire? The entry is consumed here; the
		// protocol decides what to retransmit.
		expired := -1
		for k, deadline := range env.timerDeadline {
			if !now.Before(deadline) {
				expired = k
				break
			}
		}
		if expired >= 0 {
			delete(env.timerDeadline, expired)
			env.mutex.Unlock()
			return TIMEOUT, nil
		}

		// 2) Ack timer?
		if env.ackTimerOn && !now.Before(env.ackTimerDeadline) {
			env.ackTimerOn = false
			env.mutex.Unlock()
			return ACK_TIMEOUT, nil
		}

		// 3) Corruption injected by the channel?
		if env.errorCount > 0 {
			env.errorCount--
			env.mutex.Unlock()
			return CKSUM_ERR, nil
		}

		// 4) Did a frame arrive over the physical layer?
		if len(env.phyIncoming) > 0 {
			env.mutex.Unlock()
			return FRAME_ARRIVAL, nil
		}

		// 5) Does the network layer have a packet, and is it enabled?
		if env.networkEnabled && len(env.netOutgoing) > 0 {
			env.mutex.Unlock()
			return NETWORK_LAYER_READY, nil
		}

		// Nothing is ready. Sleep until a producer signals us or the nearest
		// timer deadline passes.
		next, haveDeadline := env.nextDeadlineLocked()
		env.mutex.Unlock()

		var deadlineC <-chan time.Time
		var tmr *time.Timer
		if haveDeadline {
			tmr = time.NewTimer(time.Until(next))
			deadlineC = tmr.C
		}
		select {
		case <-ctx.Done():
			if tmr != nil {
				tmr.Stop()
			}
			return 0, ctx.Err()
		case <-env.wake:
		case <-deadlineC:
		}
		if tmr != nil {
			tmr.Stop()
		}
	}
}

// nextDeadlineLocked returns the earliest armed timer deadline.
func (env *Environment) nextDeadlineLocked() (time.Time, bool) {
	var next time.Time
	have := false
	for _, deadline := range env.timerDeadline {
		if !have || deadline.Before(next) {
			next = deadline
			have = true
		}
	}
	if env.ackTimerOn && (!have || env.ackTimerDeadline.Before(next)) {
		next = env.ackTimerDeadline
		have = true
	}
	return next, have
}

// FromNetworkLayer pops the next application packet into p.
func (env *Environment) FromNetworkLayer(p *Packet) error {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	if len(env.netOutgoing) == 0 {
		return errors.Wrap(ErrEmptyQueue, "FromNetworkLayer: no packets queued")
	}
	pkt := env.netOutgoing[0]
	env.netOutgoing = env.netOutgoing[1:]
	p.Data = pkt.Data
	return nil
}

// ToNetworkLayer delivers a decoded packet to the receiving host's application.
func (env *Environment) ToNetworkLayer(p Packet) {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	env.netIncoming = append(env.netIncoming, copyPacket(p))
}

// FromPhysicalLayer pops the next frame received from the channel into r.
func (env *Environment) FromPhysicalLayer(r *Frame) error {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	if len(env.phyIncoming) == 0 {
		return errors.Wrap(ErrEmptyQueue, "FromPhysicalLayer: no frames available")
	}
	f := env.phyIncoming[0]
	env.phyIncoming = env.phyIncoming[1:]
	*r = copyFrame(f)
	return nil
}

// ToPhysicalLayer queues a copy of s for transmission; the channel pump picks
// it up with TakeOutgoingFrame.
func (env *Environment) ToPhysicalLayer(s Frame) {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	env.phyOutgoing = append(env.phyOutgoing, copyFrame(s))
}

// StartTimer arms (or re-arms) the retransmission timer for the given slot.
// Go-Back-N keys slots by raw sequence number, Selective Repeat by
// seq % NR_BUFS; the Environment never interprets the key.
func (env *Environment) StartTimer(k int) {
	env.mutex.Lock()
	env.timerDeadline[k] = time.Now().Add(env.timerInterval)
	env.mutex.Unlock()
	env.notify()
}

// StopTimer disarms the timer for the given slot.
func (env *Environment) StopTimer(k int) {
	env.mutex.Lock()
	delete(env.timerDeadline, k)
	env.mutex.Unlock()
}

// StartAckTimer arms the single ack timer.
func (env *Environment) StartAckTimer() {
	env.mutex.Lock()
	env.ackTimerOn = true
	env.ackTimerDeadline = time.Now().Add(env.ackTimerInterval)
	env.mutex.Unlock()
	env.notify()
}

// StopAckTimer disarms the ack timer.
func (env *Environment) StopAckTimer() {
	env.mutex.Lock()
	env.ackTimerOn = false
	env.mutex.Unlock()
}

// EnableNetworkLayer allows NETWORK_LAYER_READY events to fire again.
func (env *Environment) EnableNetworkLayer() {
	env.mutex.Lock()
	env.networkEnabled = true
	env.mutex.Unlock()
	env.notify()
}

// DisableNetworkLayer gates NETWORK_LAYER_READY; the window protocols use this
// for flow control once the window is full.
func (env *Environment) DisableNetworkLayer() {
	env.mutex.Lock()
	env.networkEnabled = false
	env.mutex.Unlock()
}

// PushIncomingFrame is called by the channel to deliver a frame.
func (env *Environment) PushIncomingFrame(f Frame) {
	env.mutex.Lock()
	env.phyIncoming = append(env.phyIncoming, copyFrame(f))
	env.mutex.Unlock()
	env.notify()
}

// PushCorruptionSignal is called by the channel to make the next event a
// CKSUM_ERR.
func (env *Environment) PushCorruptionSignal() {
	env.mutex.Lock()
	env.errorCount++
	env.mutex.Unlock()
	env.notify()
}

// TakeOutgoingFrame removes and returns the next frame the protocol queued for
// transmission; ok is false when none is pending.
func (env *Environment) TakeOutgoingFrame() (Frame, bool) {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	if len(env.phyOutgoing) == 0 {
		return Frame{}, false
	}
	f := env.phyOutgoing[0]
	env.phyOutgoing = env.phyOutgoing[1:]
	return f, true
}

// PushApplicationPacket queues application data for the protocol to send.
func (env *Environment) PushApplicationPacket(data []byte) {
	env.mutex.Lock()
	env.netOutgoing = append(env.netOutgoing, copyPacket(Packet{Data: data}))
	env.mutex.Unlock()
	env.notify()
}

// DrainDeliveredPackets removes and returns everything the protocol has
// delivered to this host's application, in delivery order.
func (env *Environment) DrainDeliveredPackets() []Packet {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	delivered := env.netIncoming
	env.netIncoming = nil
	return delivered
}

// DrainDelivered returns the delivered application bytes, concatenated.
func (env *Environment) DrainDelivered() []byte {
	var out []byte
	for _, p := range env.DrainDeliveredPackets() {
		out = append(out, p.Data...)
	}
	return out
}
