package main

import (
	"errors"
	"fmt"

	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/session"
)

// Command-level errors
var (
	// ErrSessionLost indicates the device link dropped while a command was using it.
	ErrSessionLost = errors.New("session lost")
)

// FormatUserError turns library errors into a one-line hint for the terminal.
// Unknown errors are printed as is.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrNotReady), errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is not available; make sure it is turned on and this program is allowed to use it"
	case errors.Is(err, device.ErrAlreadyScanning):
		return "a scan is already running"
	case errors.Is(err, device.ErrDeviceNotFound):
		return fmt.Sprintf("device not found (%v); run 'mstctl scan' to discover sensors", err)
	case errors.Is(err, device.ErrAuthenticationFailed):
		return "the sensor rejected every authentication key; check auth_keys in the config file"
	case errors.Is(err, mstlink.ErrNoAddress):
		return "no MAC address found in the label text"
	case errors.Is(err, session.ErrConnectAborted):
		return "connection attempt was cancelled"
	case device.IsConnectionState(err, device.DialFailed):
		return fmt.Sprintf("could not connect to the sensor; move closer and retry (%v)", err)
	case device.IsConnectionState(err, device.DiscoveryFailed):
		return fmt.Sprintf("connected, but the sensor services could not be discovered (%v)", err)
	case device.IsConnectionState(err, device.InProgress):
		return "another connection to this sensor is in progress"
	case errors.Is(err, ErrSessionLost), device.IsConnectionState(err, device.NotConnected):
		return "the connection to the sensor was lost"
	default:
		return err.Error()
	}
}
