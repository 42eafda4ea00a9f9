package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/device"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <address|label>",
	Short: "Read temperature, humidity and battery level",
	Long: `Connects to a sensor, reads its current measurements and disconnects.

The target is either a MAC address or the text printed on the device label.

Examples:
  mstctl read C3:00:00:12:34:56
  mstctl read "MST03 C3:00:03:AB:CD:EF"
  mstctl read C3:00:00:12:34:56 -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var readFormat string

func init() {
	readCmd.Flags().StringVarP(&readFormat, "format", "f", "", "Output format (table, json)")
}

func runRead(cmd *cobra.Command, args []string) error {
	// Accept a MAC address, label text or peripheral UUID
	address, err := resolveTarget(args[0])
	if err != nil {
		return err
	}

	// Configure logger
	env, err := newCommandEnv(cmd, readFormat)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client := env.client(env.cfg.ClientOptions())
	defer env.closeClient(ctx, client)

	// Setup progress description
	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Reading "+address, "Connecting")
	progress.Start()
	data, err := readSensor(ctx, client, address, progress)
	// Stop progress indicator before printing output
	progress.Stop()
	if err != nil {
		return err
	}

	if env.format == "json" {
		return writeJSON(cmd.OutOrStdout(), data)
	}
	displaySensor(cmd.OutOrStdout(), data)
	return nil
}

// readSensor is ReadOnce with progress phases.
func readSensor(ctx context.Context, client *mstlink.Client, address string, progress *ProgressPrinter) (device.SensorData, error) {
	s, err := client.Connect(ctx, address)
	if err != nil {
		return device.SensorData{}, err
	}
	// Always disconnect, even when interrupted
	defer func() {
		_ = client.Disconnect(context.WithoutCancel(ctx), address)
	}()

	progress.SetPhase("Reading")
	return client.ReadTelemetry(ctx, s)
}

func displaySensor(out io.Writer, data device.SensorData) {
	fmt.Fprintf(out, "Device:       %s\n", data.Name)
	fmt.Fprintf(out, "Type:         %s\n", data.Type)
	fmt.Fprintf(out, "Address:      %s\n", data.MACAddress)
	fmt.Fprintf(out, "Temperature:  %s\n", measurement(data.Temperature))
	fmt.Fprintf(out, "Humidity:     %s\n", measurement(data.Humidity))
	fmt.Fprintf(out, "Battery:      %s\n", measurement(data.BatteryLevel))
}

func measurement(v string) string {
	switch v {
	case device.ReadError:
		return color.RedString(v)
	case device.NotAvailable:
		return color.YellowString(v)
	default:
		return v
	}
}
