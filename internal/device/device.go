package device

import (
	"context"
	"time"
)

// Advertisement is a single discovery packet reported by the radio during a scan.
// It only lives for the duration of the scan callback.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	Connectable() bool

	RSSI() int
	Addr() string
}

// Radio is the process-wide BLE adapter.
type Radio interface {
	// State reports the current power state.
	State() AdapterState
	// OnStateChange registers fn for power state transitions and returns a function removing it.
	OnStateChange(fn func(AdapterState)) (cancel func())
	// Scan blocks until ctx is done or the radio fails, invoking handler per advertisement.
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	// Dial opens a link to the peripheral with the given address.
	Dial(ctx context.Context, address string) (Link, error)
	// Stop releases the underlying platform device.
	Stop() error
}

// Link is a live connection to one peripheral.
type Link interface {
	Address() string
	// DiscoverProfile walks all services and characteristics of the peripheral.
	DiscoverProfile(ctx context.Context) (Connection, error)
	// Disconnected is closed once the peripheral drops the link.
	Disconnected() <-chan struct{}
	CancelConnection() error
}

// Connection represents the discovered GATT tree of a link
type Connection interface {
	Services() []Service
	GetService(uuid string) (Service, error)
	GetCharacteristic(service, uuid string) (Characteristic, error)
}

// Service represents a GATT service interface
type Service interface {
	UUID() string
	KnownName() string
	GetCharacteristics() []Characteristic
}

// CharacteristicReader provides read operations
type CharacteristicReader interface {
	Read(timeout time.Duration) ([]byte, error)
}

// CharacteristicWriter provides write operations
type CharacteristicWriter interface {
	Write(data []byte, withResponse bool, timeout time.Duration) error
}

// Characteristic combines info + operations
type Characteristic interface {
	UUID() string
	KnownName() string
	CharacteristicReader
	CharacteristicWriter
}
