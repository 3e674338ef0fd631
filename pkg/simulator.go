package protocol

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnknownProtocol is returned by Start when the protocol name is not one
// of the six known variants.
var ErrUnknownProtocol = errors.New("unknown protocol")

// packetChunkSize is how many payload bytes go into one application packet.
const packetChunkSize = 16

// StartOptions is the configuration surface of a simulation run.
type StartOptions struct {
	Protocol  string        // utopia | stop-and-wait | par | sliding-1bit | go-back-n | selective-repeat
	MaxSeq    int           // sequence number ceiling (window protocols)
	ErrorProb float64       // corruption probability in [0, 1]
	LossProb  float64       // drop probability in [0, 1]
	MinDelay  time.Duration // lower delivery latency bound
	MaxDelay  time.Duration // upper delivery latency bound
	PayloadA  []byte        // application bytes injected at host A
	PayloadB  []byte        // application bytes injected at host B
	Repeat    int           // how many times each payload is injected (default 1)

	// Timer intervals for the Environments; zero means the defaults.
	Timeout    time.Duration
	AckTimeout time.Duration
}

// Simulator orchestrates two Environments, the Channel between them, and one
// protocol goroutine per endpoint role.
type Simulator struct {
	EnvA *Environment
	EnvB *Environment

	onFrame OnFrameFunc
	logger  *zap.Logger

	mutex   sync.Mutex // guards channel, cancel, running across Start/Pause/Stop/Stats
	channel *Channel
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSimulator creates a Simulator. onFrame and logger may be nil.
func NewSimulator(onFrame OnFrameFunc, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{onFrame: onFrame, logger: logger}
}

// Start validates opts, builds the environments and the channel, injects the
// application payloads, and launches the protocol goroutines.
func (sim *Simulator) Start(opts StartOptions) error {
	sim.mutex.Lock()
	defer sim.mutex.Unlock()
	if sim.running {
		return errors.New("simulator already running")
	}

	name := strings.ToLower(strings.TrimSpace(opts.Protocol))
	if opts.MaxSeq < 1 {
		opts.MaxSeq = 7
	}
	if opts.Repeat < 1 {
		opts.Repeat = 1
	}

	// build into locals first so a rejected protocol name leaves the
	// simulator untouched
	envA := NewEnvironment(opts.Timeout, opts.AckTimeout)
	envB := NewEnvironment(opts.Timeout, opts.AckTimeout)

	var runA, runB func(context.Context) error
	bidirectional := false

	switch name {
	case "utopia":
		pA := &Utopia{Env: envA}
		pB := &Utopia{Env: envB}
		runA, runB = pA.Sender, pB.Receiver
	case "stop-and-wait":
		pA := &StopAndWait{Env: envA}
		pB := &StopAndWait{Env: envB}
		runA, runB = pA.Sender, pB.Receiver
	case "par":
		pA := &PAR{Env: envA}
		pB := &PAR{Env: envB}
		runA, runB = pA.Sender, pB.Receiver
	case "sliding-1bit":
		pA := &SlidingWindow1Bit{Env: envA}
		pB := &SlidingWindow1Bit{Env: envB}
		runA, runB = pA.Run, pB.Run
		bidirectional = true
	case "go-back-n":
		pA := &GoBackN{Env: envA, MaxSeq: opts.MaxSeq}
		pB := &GoBackN{Env: envB, MaxSeq: opts.MaxSeq}
		runA, runB = pA.Run, pB.Run
		bidirectional = true
	case "selective-repeat":
		pA := &SelectiveRepeat{Env: envA, MaxSeq: opts.MaxSeq}
		pB := &SelectiveRepeat{Env: envB, MaxSeq: opts.MaxSeq}
		runA, runB = pA.Run, pB.Run
		bidirectional = true
	default:
		return errors.Wrapf(ErrUnknownProtocol, "%q", opts.Protocol)
	}

	// traffic A->B always; B->A only for the bidirectional protocols
	injectPayload(envA, opts.PayloadA, opts.Repeat)
	if bidirectional {
		injectPayload(envB, opts.PayloadB, opts.Repeat)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sim.EnvA = envA
	sim.EnvB = envB
	sim.channel = NewChannel(envA, envB, ChannelConfig{
		MinDelay:  opts.MinDelay,
		MaxDelay:  opts.MaxDelay,
		ErrorProb: opts.ErrorProb,
		LossProb:  opts.LossProb,
	}, sim.onFrame, sim.logger)
	sim.cancel = cancel
	sim.running = true
	sim.channel.Start()
	sim.launch(ctx, "A", runA)
	sim.launch(ctx, "B", runB)

	sim.logger.Info("simulation started",
		zap.String("protocol", name),
		zap.Int("maxSeq", opts.MaxSeq),
		zap.Float64("errorProb", opts.ErrorProb),
		zap.Float64("lossProb", opts.LossProb))
	return nil
}

func (sim *Simulator) launch(ctx context.Context, side string, run func(context.Context) error) {
	sim.wg.Add(1)
	go func() {
		defer sim.wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sim.logger.Warn("protocol stopped with error", zap.String("side", side), zap.Error(err))
		}
	}()
}

// Pause suspends or resumes frame delivery; the protocol goroutines keep
// running but see no new events from the channel.
func (sim *Simulator) Pause(value bool) {
	sim.mutex.Lock()
	ch := sim.channel
	sim.mutex.Unlock()
	if ch != nil {
		ch.Pause(value)
	}
}

// Stop cancels the protocol goroutines and halts the channel. Frames still
// scheduled inside the channel are discarded.
func (sim *Simulator) Stop() {
	sim.mutex.Lock()
	defer sim.mutex.Unlock()
	if !sim.running {
		return
	}
	sim.cancel()
	sim.channel.Stop()
	sim.wg.Wait()
	sim.running = false
	sim.logger.Info("simulation stopped")
}

// Stats returns the channel's per-direction frame counters.
func (sim *Simulator) Stats() map[Direction]ChannelStats {
	sim.mutex.Lock()
	ch := sim.channel
	sim.mutex.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Stats()
}

// injectPayload splits data into packetChunkSize packets and queues them as
// application traffic, repeat times over.
func injectPayload(env *Environment, data []byte, repeat int) {
	for r := 0; r < repeat; r++ {
		for i := 0; i < len(data); i += packetChunkSize {
			end := i + packetChunkSize
			if end > len(data) {
				end = len(data)
			}
			env.PushApplicationPacket(data[i:end])
		}
	}
}
