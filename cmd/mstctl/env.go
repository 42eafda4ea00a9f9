package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/mstlink"
	"github.com/srg/mstlink/pkg/config"
)

// newClient builds the sensor client for a command. Tests swap it for one backed by a fake radio.
var newClient = mstlink.New

var validFormats = []string{"table", "json"}

// commandEnv is what every device command needs before touching the radio.
type commandEnv struct {
	cfg    *config.Config
	logger *logrus.Logger
	format string
}

func newCommandEnv(cmd *cobra.Command, formatFlag string) (*commandEnv, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("require-auth") {
		cfg.RequireAuth, _ = cmd.Flags().GetBool("require-auth")
	}

	format := cfg.OutputFormat
	if formatFlag != "" {
		format = formatFlag
	}
	if !validFormat(format) {
		return nil, fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
	}

	logger, err := configureLogger(cmd, cfg, path != "")
	if err != nil {
		return nil, err
	}

	return &commandEnv{cfg: cfg, logger: logger, format: format}, nil
}

func validFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (e *commandEnv) client(opts mstlink.Options) *mstlink.Client {
	return newClient(opts, e.logger)
}

// closeClient releases the radio, logging failures; the command result is already decided.
func (e *commandEnv) closeClient(ctx context.Context, client *mstlink.Client) {
	if err := client.Close(context.WithoutCancel(ctx)); err != nil {
		e.logger.WithError(err).Warn("Failed to release BLE radio")
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// resolveTag decodes label text that the shell may have split into several arguments.
func resolveTag(args []string) (mstlink.Tag, error) {
	return mstlink.ParseTag(strings.Join(args, " "))
}

// resolveTarget accepts a MAC address, the text printed on a device label, or the
// peripheral UUID that macOS reports in place of a MAC address.
func resolveTarget(arg string) (string, error) {
	tag, err := mstlink.ParseTag(arg)
	if err == nil {
		return tag.Address, nil
	}
	if id := strings.TrimSpace(arg); isPeripheralUUID(id) {
		return id, nil
	}
	return "", err
}

// isPeripheralUUID reports whether id is a CoreBluetooth peripheral identifier.
func isPeripheralUUID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}
