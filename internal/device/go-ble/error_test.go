package goble

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/mstlink/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expectIs error
	}{
		{"darwin bluetooth off", errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), device.ErrBluetoothOff},
		{"generic bluetooth off", errors.New("bluetooth is turned off"), device.ErrBluetoothOff},
		{"not connected", errors.New("device not connected"), device.ErrNotConnected},
		{"already connected", errors.New("Device already connected"), device.ErrAlreadyConnected},
		{"context canceled passes through", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, NormalizeError(tt.err), tt.expectIs)
		})
	}

	assert.Nil(t, NormalizeError(nil))

	unknown := errors.New("some other error")
	assert.Equal(t, unknown, NormalizeError(unknown), "unknown errors MUST pass through unchanged")
}

func TestStateFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		state  device.AdapterState
		mapped bool
	}{
		{"success", nil, device.StatePoweredOn, true},
		{"darwin resetting", errors.New("central manager has invalid state: have=1 want=5"), device.StateResetting, true},
		{"darwin unsupported", errors.New("central manager has invalid state: have=2 want=5"), device.StateUnsupported, true},
		{"darwin unauthorized", errors.New("central manager has invalid state: have=3 want=5"), device.StateUnauthorized, true},
		{"darwin off", errors.New("central manager has invalid state: have=4 want=5"), device.StatePoweredOff, true},
		{"linux hci down", errors.New("can't init hci: no devices available"), device.StatePoweredOff, true},
		{"linux permission", errors.New("can't create socket: operation not permitted"), device.StateUnauthorized, true},
		{"other platform", errors.New("unsupported: BLE is not supported on plan9"), device.StateUnsupported, true},
		{"unmapped", errors.New("boom"), device.StateUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := StateFromError(tt.err)
			assert.Equal(t, tt.mapped, ok)
			assert.Equal(t, tt.state, state)
		})
	}
}
