package goble

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/srg/mstlink/internal/device"
)

// darwinStatePattern extracts the CoreBluetooth manager state from go-ble darwin errors,
// e.g. "central manager has invalid state: have=4 want=5: is Bluetooth turned on?"
var darwinStatePattern = regexp.MustCompile(`have=(\d+)`)

// NormalizeError maps known go-ble error strings to structured sentinel errors.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case device.ContainsIgnoreCase(msg, "have=4 want=5"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case device.ContainsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", device.ErrNotInitialized, err)
	default:
		return err
	}
}

// StateFromError derives the adapter power state implied by a device creation error.
// ok is false when the error says nothing about power state.
func StateFromError(err error) (state device.AdapterState, ok bool) {
	if err == nil {
		return device.StatePoweredOn, true
	}

	msg := err.Error()
	if m := darwinStatePattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		// CBManagerState values
		switch code {
		case 1:
			return device.StateResetting, true
		case 2:
			return device.StateUnsupported, true
		case 3:
			return device.StateUnauthorized, true
		case 4:
			return device.StatePoweredOff, true
		case 5:
			return device.StatePoweredOn, true
		default:
			return device.StateUnknown, true
		}
	}

	switch {
	case device.ContainsIgnoreCase(msg, "bluetooth is turned off"),
		device.ContainsIgnoreCase(msg, "can't init hci"),
		device.ContainsIgnoreCase(msg, "no devices available"):
		return device.StatePoweredOff, true
	case device.ContainsIgnoreCase(msg, "permission denied"),
		device.ContainsIgnoreCase(msg, "operation not permitted"):
		return device.StateUnauthorized, true
	case device.ContainsIgnoreCase(msg, "not supported"):
		return device.StateUnsupported, true
	}
	return device.StateUnknown, false
}
