package protocol

import "context"

// StopAndWait is protocol 2: unidirectional flow over a perfect channel, but
// the receiver has finite capacity, so the sender waits for a dummy "wake"
// frame after every data frame.
type StopAndWait struct {
	Env *Environment
}

// Sender sends one packet, then gates the network layer until the receiver's
// wake frame arrives.
func (p *StopAndWait) Sender(ctx context.Context) error {
	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		switch event {
		case NETWORK_LAYER_READY:
			var buffer Packet
			if err := p.Env.FromNetworkLayer(&buffer); err != nil {
				return err
			}
			p.Env.ToPhysicalLayer(Frame{Kind: DATA, Info: buffer})
			// hold off until the receiver wakes us
			p.Env.DisableNetworkLayer()
		case FRAME_ARRIVAL:
			var r Frame
			if err := p.Env.FromPhysicalLayer(&r); err != nil {
				return err
			}
			p.Env.EnableNetworkLayer()
		}
	}
}

// Receiver delivers each arrival and answers with a dummy frame to wake the
// sender.
func (p *StopAndWait) Receiver(ctx context.Context) error {
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
		p.Env.ToNetworkLayer(r.Info)
		p.Env.ToPhysicalLayer(Frame{Kind: ACK})
	}
}
