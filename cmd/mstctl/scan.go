package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover nearby MST01/MST03 sensors",
	Long: `Scans for Bluetooth Low Energy advertisements and lists the ones that look like
MST01/MST03 sensors, strongest signal first.

Examples:
  # Scan for the platform default window
  mstctl scan

  # Scan for 5 seconds and print JSON
  mstctl scan -d 5s -f json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default: config scan_window or platform default)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only report these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Never report these addresses")
}

// scanRow is one line of scan output.
type scanRow struct {
	device.SensorData
	RSSI int    `json:"rssi"`
	Rule string `json:"rule"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	// Load config, validate format and configure logger
	env, err := newCommandEnv(cmd, scanFormat)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	// Flags override the config file
	opts := env.cfg.ClientOptions()
	if scanDuration > 0 {
		opts.Scan.Window = scanDuration
	}
	if len(scanAllowList) > 0 {
		opts.Scan.AllowList = scanAllowList
	}
	if len(scanBlockList) > 0 {
		opts.Scan.BlockList = scanBlockList
	}

	// Listen for Ctrl+C to cancel
	ctx, cancel := signalContext(cmd)
	defer cancel()

	client := env.client(opts)
	defer env.closeClient(ctx, client)

	sub, err := client.Scan(ctx)
	if err != nil {
		return err
	}

	// Setup progress printer
	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for sensors", "Scanning", opts.Scan.Window)
	progress.Start()

	// Keep the latest event per sensor for RSSI and rule
	seen := make(map[string]scanner.MatchEvent)
	for ev := range sub.Events() {
		seen[ev.Device.ID] = ev
		progress.SetPhase(fmt.Sprintf("%d found", len(seen)))
	}
	progress.Stop()

	if err := sub.Err(); err != nil {
		return err
	}

	devices := sub.Devices()
	rows := make([]scanRow, 0, len(devices))
	for _, d := range devices {
		ev := seen[d.ID]
		rows = append(rows, scanRow{SensorData: d, RSSI: ev.RSSI, Rule: ev.Rule})
	}
	// Strongest signal first
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RSSI != rows[j].RSSI {
			return rows[i].RSSI > rows[j].RSSI
		}
		return rows[i].ID < rows[j].ID
	})

	if env.format == "json" {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	return displayScanTable(cmd.OutOrStdout(), rows)
}

func displayScanTable(out io.Writer, rows []scanRow) error {
	if len(rows) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No sensors discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tADDRESS\tRSSI\tMATCHED BY")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, r := range rows {
		name := r.Name
		// Truncate long names to keep the table aligned
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d dBm\t%s\n", name, r.Type, r.ID, r.RSSI, r.Rule)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
