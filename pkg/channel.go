package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"datalink-sim/priorityQueue"

	"github.com/iti/rngstream"
	"go.uber.org/zap"
)

// FrameEvent classifies a channel notification.
type FrameEvent string

const (
	FrameSent      FrameEvent = "sent"
	FrameDelivered FrameEvent = "delivered"
	FrameDropped   FrameEvent = "dropped"
	FrameErrored   FrameEvent = "errored"
)

// Direction identifies which way a frame is travelling.
type Direction string

const (
	DirAToB Direction = "A->B"
	DirBToA Direction = "B->A"
)

// OnFrameFunc is fired synchronously by the channel pump for observability.
// It must not block for long.
type OnFrameFunc func(event FrameEvent, dir Direction, frame Frame, detail string)

// ChannelStats counts frame outcomes for one direction.
type ChannelStats struct {
	Sent      int
	Delivered int
	Dropped   int
	Errored   int
}

// ChannelConfig holds the unreliability knobs of the simulated link.
type ChannelConfig struct {
	MinDelay  time.Duration // lower latency bound
	MaxDelay  time.Duration // upper latency bound
	ErrorProb float64       // probability a frame is delivered corrupted
	LossProb  float64       // probability a frame is silently dropped
}

const pumpInterval = time.Millisecond

// Channel connects two Environments and simulates an unreliable duplex
// transport. Its pump goroutine continuously takes frames each side has
// queued, rolls loss and corruption, and schedules delivery after a random
// delay in [MinDelay, MaxDelay]. Each frame's delay is drawn independently,
// so two frames sent back to back in the same direction can arrive out of
// order; Selective Repeat depends on that and it must not be "fixed".
type Channel struct {
	envA *Environment
	envB *Environment
	cfg  ChannelConfig

	onFrame OnFrameFunc
	logger  *zap.Logger

	rngAB *rngstream.RngStream
	rngBA *rngstream.RngStream

	mutex    sync.Mutex
	inFlight priorityQueue.DeliverySchedule
	paused   bool
	stats    map[Direction]*ChannelStats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel wires envA and envB together. onFrame may be nil.
func NewChannel(envA *Environment, envB *Environment, cfg ChannelConfig, onFrame OnFrameFunc, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		envA:    envA,
		envB:    envB,
		cfg:     cfg,
		onFrame: onFrame,
		logger:  logger,
		rngAB:   rngstream.New("channel:" + string(DirAToB)),
		rngBA:   rngstream.New("channel:" + string(DirBToA)),
		stats: map[Direction]*ChannelStats{
			DirAToB: {},
			DirBToA: {},
		},
		done: make(chan struct{}),
	}
}

// Start launches the pump goroutine.
func (ch *Channel) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	ch.cancel = cancel
	go ch.pump(ctx)
	ch.logger.Info("channel started",
		zap.Duration("minDelay", ch.cfg.MinDelay),
		zap.Duration("maxDelay", ch.cfg.MaxDelay),
		zap.Float64("errorProb", ch.cfg.ErrorProb),
		zap.Float64("lossProb", ch.cfg.LossProb))
}

// Stop halts the pump permanently. Frames still scheduled are discarded,
// modeling an abrupt link failure.
func (ch *Channel) Stop() {
	if ch.cancel == nil {
		return
	}
	ch.cancel()
	<-ch.done
	ch.logger.Info("channel stopped")
}

// Pause suspends (or resumes) the pump without discarding scheduled frames.
func (ch *Channel) Pause(value bool) {
	ch.mutex.Lock()
	ch.paused = value
	ch.mutex.Unlock()
}

// Stats returns a snapshot of the per-direction frame counters.
func (ch *Channel) Stats() map[Direction]ChannelStats {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	return map[Direction]ChannelStats{
		DirAToB: *ch.stats[DirAToB],
		DirBToA: *ch.stats[DirBToA],
	}
}

func (ch *Channel) pump(ctx context.Context) {
	defer close(ch.done)
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ch.mutex.Lock()
		paused := ch.paused
		ch.mutex.Unlock()
		if paused {
			continue
		}

		// Vacuum outgoing frames in both directions, then deliver what is due.
		ch.takeAndSchedule(ch.envA, DirAToB, ch.rngAB)
		ch.takeAndSchedule(ch.envB, DirBToA, ch.rngBA)
		ch.deliverDue()
	}
}

func (ch *Channel) takeAndSchedule(src *Environment, dir Direction, rng *rngstream.RngStream) {
	for {
		f, ok := src.TakeOutgoingFrame()
		if !ok {
			return
		}
		ch.notifyFrame(FrameSent, dir, f, fmt.Sprintf("seq=%d, ack=%d, kind=%s", f.Seq, f.Ack, f.Kind))
		ch.bump(dir, func(s *ChannelStats) { s.Sent++ })

		// Lost?
		if rng.RandU01() < ch.cfg.LossProb {
			ch.notifyFrame(FrameDropped, dir, f, "lost in channel")
			ch.bump(dir, func(s *ChannelStats) { s.Dropped++ })
			ch.logger.Debug("frame dropped", zap.String("dir", string(dir)), zap.Int("seq", f.Seq))
			continue
		}

		// Corrupted?
		corrupted := rng.RandU01() < ch.cfg.ErrorProb

		delay := ch.cfg.MinDelay
		if ch.cfg.MaxDelay > ch.cfg.MinDelay {
			delay += time.Duration(rng.RandU01() * float64(ch.cfg.MaxDelay-ch.cfg.MinDelay))
		}

		ch.mutex.Lock()
		ch.inFlight.Schedule(&priorityQueue.InFlightFrame{
			DeliverAt: time.Now().Add(delay),
			Direction: string(dir),
			Corrupted: corrupted,
			Frame:     f,
		})
		ch.mutex.Unlock()
	}
}

func (ch *Channel) deliverDue() {
	for {
		ch.mutex.Lock()
		item := ch.inFlight.PopDue(time.Now())
		ch.mutex.Unlock()
		if item == nil {
			return
		}

		f := item.Frame.(Frame)
		dir := Direction(item.Direction)
		dst := ch.envB
		if dir == DirBToA {
			dst = ch.envA
		}

		if item.Corrupted {
			dst.PushCorruptionSignal()
			ch.notifyFrame(FrameErrored, dir, f, "CKSUM_ERR injected")
			ch.bump(dir, func(s *ChannelStats) { s.Errored++ })
			ch.logger.Debug("frame corrupted", zap.String("dir", string(dir)), zap.Int("seq", f.Seq))
		} else {
			dst.PushIncomingFrame(f)
			ch.notifyFrame(FrameDelivered, dir, f, "OK")
			ch.bump(dir, func(s *ChannelStats) { s.Delivered++ })
		}
	}
}

func (ch *Channel) notifyFrame(event FrameEvent, dir Direction, f Frame, detail string) {
	if ch.onFrame != nil {
		ch.onFrame(event, dir, f, detail)
	}
}

func (ch *Channel) bump(dir Direction, update func(*ChannelStats)) {
	ch.mutex.Lock()
	update(ch.stats[dir])
	ch.mutex.Unlock()
}
