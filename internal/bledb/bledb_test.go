package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "181a",
			expected: "181a",
		},
		{
			name:     "16-bit upper case with 0x prefix",
			input:    "0x2A6E",
			expected: "2a6e",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "0000181a-0000-1000-8000-00805f9b34fb",
			expected: "181a",
		},
		{
			name:     "Full Bluetooth SIG UUID upper case",
			input:    "00002A6F-0000-1000-8000-00805F9B34FB",
			expected: "2a6f",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000180f00001000800000805f9b34fb",
			expected: "180f",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{00002a19-0000-1000-8000-00805f9b34fb}",
			expected: "2a19",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestLookupNames(t *testing.T) {
	assert.Equal(t, "Environmental Sensing", LookupService("0000181a-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Battery Service", LookupService("180F"))
	assert.Equal(t, "", LookupService("ffff"))

	assert.Equal(t, "Temperature", LookupCharacteristic("2a6e"))
	assert.Equal(t, "Humidity", LookupCharacteristic("00002a6f-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Battery Level", LookupCharacteristic("0x2a19"))
	assert.Equal(t, "", LookupCharacteristic("2aff"))
}
