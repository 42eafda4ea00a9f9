//go:build test

package testutils

import (
	"strings"
	"time"

	"github.com/srg/mstlink/internal/device"
)

// RadioBuilder builds a FakeRadio with a fluent API.
//
//	radio := testutils.NewRadioBuilder().
//	    WithState(device.StatePoweredOn).
//	    WithAdvertisements(testutils.CreateMockAdvertisement("MST01-A", "C3:00:00:12:34:56", -60).Build()).
//	    WithPeripheral(testutils.NewPeripheralBuilder("C3:00:00:12:34:56").WithSensorProfile(t, h, b).Build()).
//	    Build()
type RadioBuilder struct {
	state       device.AdapterState
	adverts     []device.Advertisement
	scanErr     error
	peripherals []*FakePeripheral
}

// NewRadioBuilder starts from a powered-on radio with nothing around.
func NewRadioBuilder() *RadioBuilder {
	return &RadioBuilder{state: device.StatePoweredOn}
}

func (b *RadioBuilder) WithState(state device.AdapterState) *RadioBuilder {
	b.state = state
	return b
}

func (b *RadioBuilder) WithAdvertisements(adverts ...device.Advertisement) *RadioBuilder {
	b.adverts = append(b.adverts, adverts...)
	return b
}

// WithScanError makes every scan fail with err after replaying the advertisements.
func (b *RadioBuilder) WithScanError(err error) *RadioBuilder {
	b.scanErr = err
	return b
}

func (b *RadioBuilder) WithPeripheral(peripherals ...*FakePeripheral) *RadioBuilder {
	b.peripherals = append(b.peripherals, peripherals...)
	return b
}

func (b *RadioBuilder) Build() *FakeRadio {
	r := &FakeRadio{
		state:       b.state,
		listeners:   make(map[int]func(device.AdapterState)),
		adverts:     append([]device.Advertisement(nil), b.adverts...),
		feed:        make(chan device.Advertisement, 64),
		scanErr:     b.scanErr,
		peripherals: make(map[string]*FakePeripheral),
	}
	for _, p := range b.peripherals {
		r.peripherals[strings.ToUpper(p.Address)] = p
	}
	return r
}

// PeripheralBuilder builds a FakePeripheral. Characteristics attach to the last added service.
type PeripheralBuilder struct {
	p       *FakePeripheral
	current *device.ProfileService
}

func NewPeripheralBuilder(address string) *PeripheralBuilder {
	return &PeripheralBuilder{p: &FakePeripheral{
		Address:         address,
		profile:         device.NewProfile(),
		characteristics: make(map[string]*FakeCharacteristic),
	}}
}

func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.current = b.p.profile.AddService(uuid)
	return b
}

func (b *PeripheralBuilder) WithCharacteristic(uuid string, value []byte) *PeripheralBuilder {
	if b.current == nil {
		panic("WithCharacteristic: call WithService first")
	}
	c := NewFakeCharacteristic(uuid, value)
	b.current.AddCharacteristic(c)
	b.p.characteristics[c.UUID()] = c
	return b
}

// WithSensorProfile adds the environmental sensing and battery services with the given raw values.
// A nil value leaves the corresponding characteristic out.
func (b *PeripheralBuilder) WithSensorProfile(temperature, humidity, battery []byte) *PeripheralBuilder {
	b.WithService("181a")
	if temperature != nil {
		b.WithCharacteristic("2a6e", temperature)
	}
	if humidity != nil {
		b.WithCharacteristic("2a6f", humidity)
	}
	b.WithService("180f")
	if battery != nil {
		b.WithCharacteristic("2a19", battery)
	}
	return b
}

func (b *PeripheralBuilder) WithDialError(err error) *PeripheralBuilder {
	b.p.dialErr = err
	return b
}

func (b *PeripheralBuilder) WithDialDelay(d time.Duration) *PeripheralBuilder {
	b.p.dialDelay = d
	return b
}

// WithDialGate blocks Dial until gate is closed or the dial context ends.
func (b *PeripheralBuilder) WithDialGate(gate chan struct{}) *PeripheralBuilder {
	b.p.dialGate = gate
	return b
}

func (b *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	b.p.discoverErr = err
	return b
}

func (b *PeripheralBuilder) Build() *FakePeripheral {
	return b.p
}
