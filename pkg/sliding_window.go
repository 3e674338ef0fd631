package protocol

import "context"

// SlidingWindow1Bit is protocol 4: bidirectional flow with a one-bit window
// in each direction and the ack piggybacked on every data frame. Both peers
// run the same symmetric loop.
type SlidingWindow1Bit struct {
	Env *Environment
}

const swMaxSeq = 1

// Run drives one endpoint. The first packet primes the outgoing stream; after
// that a new packet is fetched only when the previous one has been acked.
func (p *SlidingWindow1Bit) Run(ctx context.Context) error {
	nextFrameToSend := 0
	frameExpected := 0
	var buffer Packet
	primed := false
	awaitingPacket := false

	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		switch event {
		case NETWORK_LAYER_READY:
			if err := p.Env.FromNetworkLayer(&buffer); err != nil {
				return err
			}
			if primed {
				nextFrameToSend = Inc(nextFrameToSend, swMaxSeq)
			}
			primed = true
			awaitingPacket = false
			p.Env.DisableNetworkLayer()
			p.sendData(buffer, nextFrameToSend, frameExpected)
		case FRAME_ARRIVAL:
			var r Frame
			if err := p.Env.FromPhysicalLayer(&r); err != nil {
				return err
			}
			// inbound stream
			if r.Seq == frameExpected {
				p.Env.ToNetworkLayer(r.Info)
				frameExpected = Inc(frameExpected, swMaxSeq)
			}
			// outbound stream, acked by piggyback
			if primed && !awaitingPacket && r.Ack == nextFrameToSend {
				p.Env.StopTimer(r.Ack)
				awaitingPacket = true
				p.Env.EnableNetworkLayer()
			} else if primed && !awaitingPacket {
				// re-send the outstanding frame so the peer sees the
				// freshest piggybacked ack
				p.sendData(buffer, nextFrameToSend, frameExpected)
			}
		case CKSUM_ERR:
			// corrupted frames are ignored; the timer repairs the loss
		case TIMEOUT:
			if primed && !awaitingPacket {
				p.sendData(buffer, nextFrameToSend, frameExpected)
			}
		}
	}
}

func (p *SlidingWindow1Bit) sendData(buffer Packet, seq int, frameExpected int) {
	s := Frame{
		Kind: DATA,
		Seq:  seq,
		Ack:  1 - frameExpected,
		Info: buffer,
	}
	p.Env.ToPhysicalLayer(s)
	p.Env.StartTimer(s.Seq)
}
