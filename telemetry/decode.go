package telemetry

import (
	"encoding/binary"
	"fmt"

	"github.com/srg/mstlink/internal/device"
)

// DecodeTemperature decodes a signed 16-bit little-endian value in hundredths of a degree.
func DecodeTemperature(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("%w: temperature payload has %d bytes", device.ErrReadFailure, len(b))
	}
	v := float64(int16(binary.LittleEndian.Uint16(b))) / 100
	return fmt.Sprintf("%.2f°C", v), nil
}

// DecodeHumidity decodes an unsigned 16-bit little-endian value in hundredths of a percent.
func DecodeHumidity(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("%w: humidity payload has %d bytes", device.ErrReadFailure, len(b))
	}
	v := float64(binary.LittleEndian.Uint16(b)) / 100
	return fmt.Sprintf("%.2f%%", v), nil
}

// DecodeBattery decodes a single unsigned byte percentage.
func DecodeBattery(b []byte) (string, error) {
	if len(b) < 1 {
		return "", fmt.Errorf("%w: battery payload is empty", device.ErrReadFailure)
	}
	return fmt.Sprintf("%d%%", b[0]), nil
}
