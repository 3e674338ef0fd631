package main

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommandsTrimsLines(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	defer close(done)
	commands := readCommands(pr, done)

	go pw.Write([]byte("  pause \nstats\n"))
	assert.Equal(t, "pause", <-commands)
	assert.Equal(t, "stats", <-commands)
	pw.Close()

	_, ok := <-commands
	assert.False(t, ok, "channel closes when input is exhausted")
}

func TestReadCommandsStopsOnDone(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	commands := readCommands(pr, done)

	// a line nobody receives must not wedge the goroutine once done closes
	go pw.Write([]byte("quit\n"))
	time.Sleep(20 * time.Millisecond)
	close(done)

	// nobody is receiving, so the only way the channel closes is the reader
	// taking the done branch and returning
	time.Sleep(50 * time.Millisecond)
	select {
	case _, ok := <-commands:
		require.False(t, ok, "no further commands after done")
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after done closed")
	}
	pw.Close()
}
