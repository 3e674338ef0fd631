package protocol

import "context"

// PAR is protocol 3 (Positive Acknowledgement with Retransmission), the
// alternating-bit ARQ: unidirectional flow over an unreliable channel,
// sequence numbers in {0, 1}, one frame outstanding, resend on TIMEOUT.
type PAR struct {
	Env *Environment
}

const parMaxSeq = 1

// Sender keeps exactly one frame outstanding and retransmits it on TIMEOUT
// until the matching ack comes back.
func (p *PAR) Sender(ctx context.Context) error {
	nextFrameToSend := 0
	var buffer Packet
	outstanding := false

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
			outstanding = true
			p.sendData(buffer, nextFrameToSend)
			// one frame at a time
			p.Env.DisableNetworkLayer()
		case FRAME_ARRIVAL:
			var s Frame
			if err := p.Env.FromPhysicalLayer(&s); err != nil {
				return err
			}
			if outstanding && s.Ack == nextFrameToSend {
				p.Env.StopTimer(s.Ack)
				nextFrameToSend = Inc(nextFrameToSend, parMaxSeq)
				outstanding = false
				p.Env.EnableNetworkLayer()
			}
		case CKSUM_ERR:
			// the damaged ack is ignored; the timer will get us going again
		case TIMEOUT:
			if outstanding {
				p.sendData(buffer, nextFrameToSend)
			}
		}
	}
}

func (p *PAR) sendData(buffer Packet, seq int) {
	s := Frame{Kind: DATA, Seq: seq, Info: buffer}
	p.Env.ToPhysicalLayer(s)
	p.Env.StartTimer(s.Seq)
}

// Receiver delivers in-order frames and acks every arrival, duplicates
// included, so a lost ack still gets repaired.
func (p *PAR) Receiver(ctx context.Context) error {
	frameExpected := 0
	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		if event != FRAME_ARRIVAL {
			continue
		}
		var r Frame
		if err := p.Env.FromPhysicalLayer(&r); err != nil {
			return err
		}
		if r.Seq == frameExpected {
			p.Env.ToNetworkLayer(r.Info)
			frameExpected = Inc(frameExpected, parMaxSeq)
		}
		// tell the sender which frame is being acked
		p.Env.ToPhysicalLayer(Frame{Kind: ACK, Ack: 1 - frameExpected})
	}
}
