package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/gfhanger/internal/gateway"
	"github.com/muurk/gfhanger/internal/ui"
)

// Command flags
var (
	jsonOutput     bool
	waitForRest    bool
	commandTimeout time.Duration
	plainOutput    bool
)

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(watchCmd)

	devicesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print devices as JSON")

	controlCmd.Flags().BoolVar(&waitForRest, "wait", true, "Wait until the hanger reports a resting position")
	controlCmd.Flags().DurationVar(&commandTimeout, "timeout", 0, "Position feedback timeout per attempt (overrides config)")

	watchCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print events as lines instead of the dashboard")
}

// devicesCmd lists the devices of the account
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List hangers on the account",
	Long: `Log in to the gateway and list every hanger of the account with its
status and current position.`,
	Example: `  # Table output
  gfhanger devices

  # JSON for scripting
  gfhanger devices --json`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}

	client := newGatewayClient(cfg, nil)
	defer shutdownClient(client)

	printer := ui.NewPrinter(nil)
	if err := client.Login(cmd.Context(), creds); err != nil {
		printer.PrintError("Login failed", err)
		return err
	}

	devices := client.Devices()
	if jsonOutput {
		type deviceJSON struct {
			ID           string    `json:"id"`
			Name         string    `json:"name"`
			Status       string    `json:"status"`
			Position     int       `json:"position"`
			PositionName string    `json:"position_name"`
			UpdatedAt    time.Time `json:"updated_at"`
		}
		out := make([]deviceJSON, 0, len(devices))
		for _, d := range devices {
			out = append(out, deviceJSON{d.ID, d.Name, d.Status, int(d.Position), d.Position.String(), d.UpdatedAt})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printer.PrintHeader("Hangers", "gfhanger devices", []ui.Param{
		{Key: "Gateway", Value: client.Addr()},
		{Key: "Account", Value: creds.Mobile},
	})
	printer.PrintDevices(devices)
	return nil
}

// controlCmd sends a motor command
var controlCmd = &cobra.Command{
	Use:   "control <device> <raise|lower|stop>",
	Short: "Raise, lower or stop a hanger",
	Long: `Send a motor command to a hanger, identified by id or name.

By default the command waits until the hanger reports a resting position,
resending on timeout up to gateway.max_retries times.`,
	Example: `  # Lower the hanger named "Balcony"
  gfhanger control Balcony lower

  # Raise by id without waiting
  gfhanger control 5f0c9a7e1d2b3c4d5e6f7a8b raise --wait=false

  # Numeric codes work too: 1 lower, 2 raise, 3 stop
  gfhanger control Balcony 3`,
	Args: cobra.ExactArgs(2),
	RunE: runControl,
}

func runControl(cmd *cobra.Command, args []string) error {
	op, err := gateway.ParseOperation(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	if commandTimeout > 0 {
		cfg.Gateway.CommandTimeout = commandTimeout
	}
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}

	client := newGatewayClient(cfg, nil)
	defer shutdownClient(client)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := ui.NewPrinter(nil)
	if err := client.Login(ctx, creds); err != nil {
		printer.PrintError("Login failed", err)
		return err
	}

	dev, err := resolveDevice(client.Devices(), args[0])
	if err != nil {
		return err
	}

	details := []ui.Param{
		{Key: "Device", Value: dev.Name},
		{Key: "Operation", Value: op.String()},
	}

	if !waitForRest {
		if _, err := client.RemoteControl(ctx, creds, dev.ID, op); err != nil {
			printer.PrintError("Command failed", err)
			return err
		}
		printer.PrintSuccess("Command sent", details)
		return nil
	}

	start := time.Now()
	pos, err := client.RemoteControlAndWait(ctx, creds, dev.ID, op)
	if err != nil {
		printer.PrintError(fmt.Sprintf("%s %s failed", op, dev.Name), err)
		return err
	}

	details = append(details,
		ui.Param{Key: "Position", Value: pos.String()},
		ui.Param{Key: "Took", Value: time.Since(start).Round(100 * time.Millisecond).String()},
	)
	printer.PrintSuccess("Command complete", details)
	return nil
}

// watchCmd follows live device status
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live hanger status",
	Long: `Stay logged in and show every status change.

On a terminal this opens a dashboard where the selected hanger can be
raised (r), lowered (l) or stopped (s). Otherwise, or with --plain, each
event is printed as one line.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}

	client := newGatewayClient(cfg, nil)
	defer shutdownClient(client)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := client.Subscribe(64)
	defer sub.Close()

	if err := client.Login(ctx, creds); err != nil {
		ui.NewPrinter(nil).PrintError("Login failed", err)
		return err
	}
	go keepSession(ctx, client, creds, 15*time.Second)

	if plainOutput || !ui.IsTerminal() {
		return watchPlain(ctx, sub)
	}

	return ui.RunDashboard(ui.DashboardConfig{
		Addr:    client.Addr(),
		Devices: client.Devices(),
		Events:  drain(sub),
		Command: func(ctx context.Context, id string, op gateway.Operation) (gateway.Position, error) {
			return client.RemoteControlAndWait(ctx, creds, id, op)
		},
	})
}

// drain skips the login snapshot already contained in the device list.
func drain(sub *gateway.Subscription) <-chan gateway.StatusEvent {
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return sub.C
			}
		default:
			return sub.C
		}
	}
}

func watchPlain(ctx context.Context, sub *gateway.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			fmt.Println(ui.FormatEvent(ev))
		}
	}
}
