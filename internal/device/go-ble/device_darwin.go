package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// CoreBluetooth allows one central manager per process; Handle keeps the radio retained across releases.
func newPlatformDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
