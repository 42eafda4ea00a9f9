package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tagCmd represents the tag command
var tagCmd = &cobra.Command{
	Use:   "tag <label text>",
	Short: "Decode the model and MAC address printed on a device label",
	Long: `Extracts the sensor model and MAC address from label or QR code text.

Examples:
  mstctl tag "MST01 C3:00:00:12:34:56"
  mstctl tag MINEW-MST03-c3-00-03-ab-cd-ef -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTag,
}

var tagFormat string

func init() {
	tagCmd.Flags().StringVarP(&tagFormat, "format", "f", "table", "Output format (table, json)")
}

func runTag(cmd *cobra.Command, args []string) error {
	if !validFormat(tagFormat) {
		return fmt.Errorf("invalid format '%s': must be one of %v", tagFormat, validFormats)
	}
	cmd.SilenceUsage = true

	tag, err := resolveTag(args)
	if err != nil {
		return err
	}

	if tagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), tag)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Type:     %s\nAddress:  %s\n", tag.Kind, tag.Address)
	return nil
}
