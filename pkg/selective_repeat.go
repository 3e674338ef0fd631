package protocol

import "context"

// SelectiveRepeat is protocol 6: both sides hold a window of
// NR_BUFS = (MaxSeq+1)/2 frames. The receiver buffers out-of-order arrivals
// and delivers them in order; a NAK asks for one specific frame, and a
// TIMEOUT retransmits only the expired frame rather than the whole window.
type SelectiveRepeat struct {
	Env    *Environment
	MaxSeq int
}

// Run drives one endpoint of a bidirectional Selective Repeat link.
func (p *SelectiveRepeat) Run(ctx context.Context) error {
	nrBufs := (p.MaxSeq + 1) / 2

	ackExpected := 0     // lower edge of the sender's window
	nextFrameToSend := 0 // upper edge of the sender's window + 1
	frameExpected := 0   // lower edge of the receiver's window
	tooFar := nrBufs     // upper edge of the receiver's window + 1
	noNak := true        // no NAK has been sent yet for frameExpected
	nbuffered := 0

	outBuf := make([]Packet, nrBufs) // buffers for the outbound stream
	inBuf := make([]Packet, nrBufs)  // buffers for the inbound stream
	arrived := make([]bool, nrBufs)  // inbound bitmap

	// sendFrame builds and sends a DATA, ACK, or NAK frame. Timers are keyed
	// by buffer slot (seq % nrBufs), unlike Go-Back-N's raw sequence keys.
	sendFrame := func(fk FrameKind, frameNr int) {
		s := Frame{
			Kind: fk,
			Seq:  frameNr,
			Ack:  (frameExpected + p.MaxSeq) % (p.MaxSeq + 1),
		}
		if fk == DATA {
			s.Info = outBuf[frameNr%nrBufs]
		}
		if fk == NAK {
			// one NAK per frame, don't start a NAK storm
			noNak = false
		}
		p.Env.ToPhysicalLayer(s)
		if fk == DATA {
			p.Env.StartTimer(frameNr % nrBufs)
		}
		// anything we send carries an ack, so no separate one is needed
		p.Env.StopAckTimer()
	}

	p.Env.EnableNetworkLayer()

	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		switch event {
		case NETWORK_LAYER_READY:
			// accept, save, and transmit a new frame
			nbuffered++
			if err := p.Env.FromNetworkLayer(&outBuf[nextFrameToSend%nrBufs]); err != nil {
				return err
			}
			sendFrame(DATA, nextFrameToSend)
			nextFrameToSend = Inc(nextFrameToSend, p.MaxSeq)

		case FRAME_ARRIVAL:
			var r Frame
			if err := p.Env.FromPhysicalLayer(&r); err != nil {
				return err
			}

			if r.Kind == DATA {
				if r.Seq != frameExpected && noNak {
					sendFrame(NAK, 0)
				} else {
					p.Env.StartAckTimer()
				}

				// accept any frame inside the window not seen before
				if Between(frameExpected, r.Seq, tooFar) && !arrived[r.Seq%nrBufs] {
					arrived[r.Seq%nrBufs] = true
					inBuf[r.Seq%nrBufs] = r.Info

					// pass frames to the application while consecutive slots
					// starting at the window bottom have arrived
					for arrived[frameExpected%nrBufs] {
						p.Env.ToNetworkLayer(inBuf[frameExpected%nrBufs])
						noNak = true
						arrived[frameExpected%nrBufs] = false
						frameExpected = Inc(frameExpected, p.MaxSeq)
						tooFar = Inc(tooFar, p.MaxSeq)
						p.Env.StartAckTimer()
					}
				}
			}

			if r.Kind == NAK && Between(ackExpected, (r.Ack+1)%(p.MaxSeq+1), nextFrameToSend) {
				sendFrame(DATA, (r.Ack+1)%(p.MaxSeq+1))
			}

			// cumulative piggybacked acks
			for Between(ackExpected, r.Ack, nextFrameToSend) {
				nbuffered--
				p.Env.StopTimer(ackExpected % nrBufs)
				ackExpected = Inc(ackExpected, p.MaxSeq)
			}

		case CKSUM_ERR:
			if noNak {
				sendFrame(NAK, 0)
			}

		case TIMEOUT:
			// only the oldest unacknowledged frame is retransmitted; that is
			// the lower edge of the sender's window
			if nbuffered > 0 {
				sendFrame(DATA, ackExpected)
			}

		case ACK_TIMEOUT:
			// no reverse traffic to piggyback on, send a bare ack
			sendFrame(ACK, 0)
		}

		if nbuffered < nrBufs {
			p.Env.EnableNetworkLayer()
		} else {
			p.Env.DisableNetworkLayer()
		}
	}
}
