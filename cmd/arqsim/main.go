package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	protocol "datalink-sim/pkg"
	"datalink-sim/simconfig"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	protoName  string
	maxSeq     int
	errorProb  float64
	lossProb   float64
	minDelayMs int
	maxDelayMs int
	runFor     time.Duration
	quiet      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "arqsim",
		Short:        "Simulate the six classic data-link ARQ protocols over an unreliable duplex channel",
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "scenario YAML file")
	rootCmd.Flags().StringVarP(&protoName, "protocol", "p", "", "protocol: utopia | stop-and-wait | par | sliding-1bit | go-back-n | selective-repeat")
	rootCmd.Flags().IntVar(&maxSeq, "max-seq", 0, "sequence number ceiling")
	rootCmd.Flags().Float64Var(&errorProb, "error-prob", -1, "frame corruption probability [0,1]")
	rootCmd.Flags().Float64Var(&lossProb, "loss-prob", -1, "frame loss probability [0,1]")
	rootCmd.Flags().IntVar(&minDelayMs, "min-delay-ms", -1, "minimum channel delay in ms")
	rootCmd.Flags().IntVar(&maxDelayMs, "max-delay-ms", -1, "maximum channel delay in ms")
	rootCmd.Flags().DurationVar(&runFor, "for", 10*time.Second, "how long to run before stopping")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-frame output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := simconfig.DefaultConfig()
	if configPath != "" {
		parsed, err := simconfig.ParseConfig(configPath)
		if err != nil {
			return err
		}
		cfg = *parsed
	}

	// flag overrides beat the scenario file
	if protoName != "" {
		cfg.Protocol = protoName
	}
	if maxSeq > 0 {
		cfg.MaxSeq = maxSeq
	}
	if errorProb >= 0 {
		cfg.ErrorProb = errorProb
	}
	if lossProb >= 0 {
		cfg.LossProb = lossProb
	}
	if minDelayMs >= 0 {
		cfg.MinDelayMs = minDelayMs
	}
	if maxDelayMs >= 0 {
		cfg.MaxDelayMs = maxDelayMs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	onFrame := func(event protocol.FrameEvent, dir protocol.Direction, f protocol.Frame, detail string) {
		if quiet {
			return
		}
		fmt.Printf("[%s] %-9s %s %s\n", dir, event, f.Kind, detail)
	}

	sim := protocol.NewSimulator(onFrame, logger)
	err = sim.Start(protocol.StartOptions{
		Protocol:   cfg.Protocol,
		MaxSeq:     cfg.MaxSeq,
		ErrorProb:  cfg.ErrorProb,
		LossProb:   cfg.LossProb,
		MinDelay:   time.Duration(cfg.MinDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.TimeoutMs) * time.Millisecond,
		AckTimeout: time.Duration(cfg.AckTimeoutMs) * time.Millisecond,
		PayloadA:   []byte(cfg.PayloadA),
		PayloadB:   []byte(cfg.PayloadB),
		Repeat:     cfg.Repeat,
	})
	if err != nil {
		return err
	}

	// Commands from stdin while the simulation runs
	done := make(chan struct{})
	defer close(done)
	commands := readCommands(os.Stdin, done)

	fmt.Println("Commands: pause | resume | stats | quit")
	deadline := time.After(runFor)
loop:
	for {
		select {
		case <-deadline:
			break loop
		case input, ok := <-commands:
			if !ok {
				break loop
			}
			switch input {
			case "pause":
				sim.Pause(true)
				fmt.Println("paused")
			case "resume":
				sim.Pause(false)
				fmt.Println("resumed")
			case "stats":
				printStats(sim)
			case "quit", "stop", "q":
				break loop
			case "":
			default:
				fmt.Println("unknown command:", input)
			}
		}
	}

	sim.Stop()
	printStats(sim)
	fmt.Printf("host A application received: %q\n", sim.EnvA.DrainDelivered())
	fmt.Printf("host B application received: %q\n", sim.EnvB.DrainDelivered())
	return nil
}

// readCommands feeds trimmed input lines into the returned channel until r is
// exhausted or done closes. Closing done releases the goroutine instead of
// leaving it blocked on a send nobody will receive.
func readCommands(r io.Reader, done <-chan struct{}) <-chan string {
	commands := make(chan string)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case commands <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()
	return commands
}

func printStats(sim *protocol.Simulator) {
	for dir, s := range sim.Stats() {
		fmt.Printf("%s  sent=%d delivered=%d dropped=%d errored=%d\n",
			dir, s.Sent, s.Delivered, s.Dropped, s.Errored)
	}
}
