package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameUUID(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"short vs full lowercase", "181a", "0000181a-0000-1000-8000-00805f9b34fb", true},
		{"short vs full uppercase", "2A6E", "00002A6E-0000-1000-8000-00805F9B34FB", true},
		{"0x prefix", "0x2a19", "2a19", true},
		{"different characteristics", "2a6e", "2a6f", false},
		{"custom vs short", "6e400001-b5a3-f393-e0a9-e50e24dcca9e", "0001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameUUID(tt.a, tt.b))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	result := NormalizeUUIDs([]string{
		"0000181a-0000-1000-8000-00805f9b34fb",
		"0x180F",
		"6e400001-b5a3-f393-e0a9-e50e24dcca9e",
	})
	assert.Equal(t, []string{"181a", "180f", "6e400001b5a3f393e0a9e50e24dcca9e"}, result)
}

func TestConnectionError_Is(t *testing.T) {
	err := NewConnectionError(DialFailed, ErrTimeout)

	assert.ErrorIs(t, err, ErrDialFailed, "dial failure MUST match its state sentinel")
	assert.ErrorIs(t, err, ErrTimeout, "cause MUST stay in the chain")
	assert.NotErrorIs(t, err, ErrDiscoveryFailed, "other states MUST NOT match")
	assert.True(t, IsConnectionState(err, DialFailed))
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsConnectionError(ErrReadFailure))
}

func TestNotFoundError_Message(t *testing.T) {
	assert.Equal(t, `service "181a" not found`, (&NotFoundError{Resource: "service", UUIDs: []string{"181a"}}).Error())
	assert.Equal(t, `characteristic "2a6e" not found in service "181a"`,
		(&NotFoundError{Resource: "characteristic", UUIDs: []string{"181a", "2a6e"}}).Error())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "powered_on", StatePoweredOn.String())
	assert.Equal(t, "unknown", AdapterState(42).String())
	assert.True(t, StateUnauthorized.Terminal())
	assert.False(t, StatePoweredOff.Terminal())

	assert.Equal(t, "authenticating", SessionAuthenticating.String())
	assert.True(t, SessionDiscovering.InFlight())
	assert.False(t, SessionReady.InFlight())
	assert.False(t, SessionIdle.InFlight())
}
