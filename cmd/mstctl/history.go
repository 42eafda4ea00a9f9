package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/device"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <address|label>",
	Short: "Retrieve the historical temperature and humidity series",
	Long: `Connects to a sensor and retrieves the measurements recorded between --from and --to.

Times are RFC 3339 ("2024-05-01T12:00:00Z"), dates ("2024-05-01"), epoch seconds,
or a duration meaning "that long ago" ("24h", "90m").

Examples:
  # Last 24 hours
  mstctl history C3:00:00:12:34:56

  # A fixed window as JSON
  mstctl history C3:00:00:12:34:56 --from 2024-05-01 --to 2024-05-02 -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyFrom   string
	historyTo     string
	historyFormat string
)

// now is the reference for relative --from/--to values.
var now = time.Now

func init() {
	historyCmd.Flags().StringVar(&historyFrom, "from", "24h", "Start of the range")
	historyCmd.Flags().StringVar(&historyTo, "to", "0s", "End of the range")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "", "Output format (table, json)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	address, err := resolveTarget(args[0])
	if err != nil {
		return err
	}

	// Resolve the range against a single reference time
	ref := now()
	from, err := parseTimeArg(historyFrom, ref)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseTimeArg(historyTo, ref)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("--to (%s) is before --from (%s)", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	env, err := newCommandEnv(cmd, historyFormat)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client := env.client(env.cfg.ClientOptions())
	defer env.closeClient(ctx, client)

	progress := NewProgressPrinter(cmd.ErrOrStderr(), "History of "+address, "Connecting")
	progress.Start()
	points, err := fetchHistory(ctx, client, address, from, to, progress)
	progress.Stop()

	// partial results are still worth printing when interrupted
	if len(points) > 0 || err == nil {
		var werr error
		if env.format == "json" {
			werr = writeJSON(cmd.OutOrStdout(), points)
		} else {
			werr = displayHistoryTable(cmd.OutOrStdout(), points)
		}
		if err == nil {
			err = werr
		}
	}
	return err
}

func fetchHistory(ctx context.Context, client *mstlink.Client, address string, from, to time.Time, progress *ProgressPrinter) ([]device.HistoricalPoint, error) {
	s, err := client.Connect(ctx, address)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Disconnect(context.WithoutCancel(ctx), address)
	}()

	progress.SetPhase("Downloading")
	points, err := client.FetchHistory(ctx, s, from, to, progress.Percent())
	// A dropped link surfaces as a lost session with the points received so far
	if err != nil && errors.Is(err, device.ErrNotConnected) {
		err = fmt.Errorf("%w after %d points: %w", ErrSessionLost, len(points), err)
	}
	return points, err
}

// parseTimeArg accepts RFC 3339, a date, epoch seconds, or a duration before ref.
func parseTimeArg(v string, ref time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, time.Local); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return ref.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func displayHistoryTable(out io.Writer, points []device.HistoricalPoint) error {
	if len(points) == 0 {
		fmt.Fprintln(out, "No history in range")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTEMPERATURE\tHUMIDITY")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%.2f°C\t%.2f%%\n",
			time.Unix(p.Timestamp, 0).UTC().Format(time.RFC3339), p.Temperature, p.Humidity)
	}
	return w.Flush()
}
