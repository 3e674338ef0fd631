package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collectFrames polls env's outgoing queue until n frames have been taken or
// the deadline passes.
func collectFrames(t *testing.T, env *Environment, n int, timeout time.Duration) []Frame {
	t.Helper()
	frames := make([]Frame, 0, n)
	deadline := time.Now().Add(timeout)
	for len(frames) < n && time.Now().Before(deadline) {
		if f, ok := env.TakeOutgoingFrame(); ok {
			frames = append(frames, f)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	require.Len(t, frames, n, "timed out collecting outgoing frames")
	return frames
}

// drainFrames takes whatever is currently queued for transmission.
func drainFrames(env *Environment) []Frame {
	var frames []Frame
	for {
		f, ok := env.TakeOutgoingFrame()
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

// waitForBytes accumulates the bytes delivered to env's application until
// they cover want, then asserts they match exactly.
func waitForBytes(t *testing.T, env *Environment, want []byte, timeout time.Duration) {
	t.Helper()
	var got []byte
	deadline := time.Now().Add(timeout)
	for len(got) < len(want) && time.Now().Before(deadline) {
		got = append(got, env.DrainDelivered()...)
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, string(want), string(got), "delivered application bytes")
}

func seqsOf(frames []Frame) []int {
	seqs := make([]int, len(frames))
	for i, f := range frames {
		seqs[i] = f.Seq
	}
	return seqs
}

func countKind(frames []Frame, kind FrameKind) int {
	n := 0
	for _, f := range frames {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
