package protocol

import "context"

// GoBackN is protocol 5: a send window of MaxSeq frames with cumulative
// piggybacked acks. The receiver only accepts frames in order; when the
// oldest outstanding frame times out, the sender goes back and retransmits
// everything still unacknowledged.
type GoBackN struct {
	Env    *Environment
	MaxSeq int
}

// Run drives one endpoint of a bidirectional Go-Back-N link.
func (p *GoBackN) Run(ctx context.Context) error {
	nextFrameToSend := 0 // next fresh frame going out
	ackExpected := 0     // oldest frame not yet acked (lower window edge)
	frameExpected := 0   // next inbound sequence number accepted
	nbuffered := 0
	buffer := make([]Packet, p.MaxSeq+1)

	p.Env.EnableNetworkLayer()

	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		switch event {
		case NETWORK_LAYER_READY:
			// take a fresh packet, buffer it for possible retransmission
			if err := p.Env.FromNetworkLayer(&buffer[nextFrameToSend]); err != nil {
				return err
			}
			nbuffered++
			p.sendData(nextFrameToSend, frameExpected, buffer)
			nextFrameToSend = Inc(nextFrameToSend, p.MaxSeq)

		case FRAME_ARRIVAL:
			var r Frame
			if err := p.Env.FromPhysicalLayer(&r); err != nil {
				return err
			}

			// accept only in order; anything else is silently discarded
			if r.Seq == frameExpected {
				p.Env.ToNetworkLayer(r.Info)
				frameExpected = Inc(frameExpected, p.MaxSeq)
			}

			// cumulative ack: ack n confirms n-1, n-2, ... circularly
			for Between(ackExpected, r.Ack, nextFrameToSend) {
				nbuffered--
				p.Env.StopTimer(ackExpected)
				ackExpected = Inc(ackExpected, p.MaxSeq)
			}

		case CKSUM_ERR:
			// corrupted frames are ignored

		case TIMEOUT:
			// go back: retransmit every outstanding frame starting at the
			// lower window edge
			nextFrameToSend = ackExpected
			for i := 1; i <= nbuffered; i++ {
				p.sendData(nextFrameToSend, frameExpected, buffer)
				nextFrameToSend = Inc(nextFrameToSend, p.MaxSeq)
			}
		}

		if nbuffered < p.MaxSeq {
			p.Env.EnableNetworkLayer()
		} else {
			p.Env.DisableNetworkLayer()
		}
	}
}

// sendData builds and sends a data frame with the piggybacked ack and arms
// its timer. Timers are keyed by raw sequence number here.
func (p *GoBackN) sendData(frameNr int, frameExpected int, buffer []Packet) {
	s := Frame{
		Kind: DATA,
		Seq:  frameNr,
		Ack:  (frameExpected + p.MaxSeq) % (p.MaxSeq + 1),
		Info: buffer[frameNr],
	}
	p.Env.ToPhysicalLayer(s)
	p.Env.StartTimer(frameNr)
}
