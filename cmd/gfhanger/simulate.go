package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/simulator"
)

// Simulator flags
var (
	simAddr         string
	simPassword     string
	simMotionDelay  time.Duration
	simHeartbeat    time.Duration
	simLoginCode    int
	simFeedbackCode int
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simAddr, "addr", "127.0.0.1:13015", "Listen address")
	simulateCmd.Flags().StringVar(&simPassword, "password", "", "Accepted password (empty accepts any)")
	simulateCmd.Flags().DurationVar(&simMotionDelay, "motion-delay", 2*time.Second, "Travel time to a resting position")
	simulateCmd.Flags().DurationVar(&simHeartbeat, "heartbeat", 30*time.Second, "Heartbeat interval (0 disables)")
	simulateCmd.Flags().IntVar(&simLoginCode, "login-code", 200, "Result code of onLoginInfoEnd")
	simulateCmd.Flags().IntVar(&simFeedbackCode, "feedback-code", 200, "Result code for remote control commands")
}

// simulateCmd runs a local gateway
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a local gateway simulator",
	Long: `Run a fake gateway with one simulated hanger. Point the other commands
at it with --host and --port.`,
	Example: `  # Terminal 1
  gfhanger simulate --log-level debug

  # Terminal 2
  gfhanger --host 127.0.0.1 --mobile 138 --client-id test devices`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		level = "info"
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	sim := simulator.New(&simulator.Config{
		Addr:              simAddr,
		Mobile:            mobileFlag,
		Password:          simPassword,
		LoginCode:         simLoginCode,
		FeedbackCode:      simFeedbackCode,
		MotionDelay:       simMotionDelay,
		HeartbeatInterval: simHeartbeat,
	})

	fmt.Fprintf(os.Stderr, "Simulating gateway on %s (Ctrl+C to stop)\n", simAddr)
	return sim.Start()
}
