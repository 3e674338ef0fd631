package protocol

import "context"

// Utopia is protocol 1: unidirectional flow over a channel assumed perfect,
// with a receiver that can always keep up. No sequence numbers, no acks.
type Utopia struct {
	Env *Environment
}

// Sender pumps packets toward the channel as fast as the network layer
// produces them.
func (p *Utopia) Sender(ctx context.Context) error {
	for {
		event, err := p.Env.WaitForEvent(ctx)
		if err != nil {
			return err
		}
		if event != NETWORK_LAYER_READY {
			continue
		}
		var buffer Packet
		if err := p.Env.FromNetworkLayer(&buffer); err != nil {
			return err
		}
		p.Env.ToPhysicalLayer(Frame{Kind: DATA, Info: buffer})
	}
}

// Receiver waits for arrivals and hands the payload to the application.
func (p *Utopia) Receiver(ctx context.Context) error {
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
	}
}
