//go:build test

package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/srg/mstlink/internal/device"
)

// ----------------------------
// Characteristic
// ----------------------------

// FakeCharacteristic is an in-memory device.Characteristic with programmable failures.
type FakeCharacteristic struct {
	uuid string

	mu        sync.Mutex
	value     []byte
	readErr   error
	writeErr  error
	readDelay time.Duration
	reads     int
	writes    [][]byte
}

func NewFakeCharacteristic(uuid string, value []byte) *FakeCharacteristic {
	return &FakeCharacteristic{uuid: device.NormalizeUUID(uuid), value: value}
}

func (c *FakeCharacteristic) UUID() string      { return c.uuid }
func (c *FakeCharacteristic) KnownName() string { return "" }

// Read returns the current value. A read delay longer than timeout yields device.ErrTimeout.
func (c *FakeCharacteristic) Read(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	delay, value, readErr := c.readDelay, append([]byte(nil), c.value...), c.readErr
	c.reads++
	c.mu.Unlock()

	if delay > 0 {
		if timeout > 0 && delay > timeout {
			time.Sleep(timeout)
			return nil, fmt.Errorf("read characteristic %s: %w", c.uuid, device.ErrTimeout)
		}
		time.Sleep(delay)
	}
	if readErr != nil {
		return nil, readErr
	}
	return value, nil
}

func (c *FakeCharacteristic) Write(data []byte, _ bool, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return c.writeErr
}

func (c *FakeCharacteristic) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *FakeCharacteristic) SetValue(value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

func (c *FakeCharacteristic) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *FakeCharacteristic) SetReadDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDelay = d
}

func (c *FakeCharacteristic) ReadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *FakeCharacteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// ----------------------------
// Peripheral and link
// ----------------------------

// FakePeripheral is a dialable peripheral known to a FakeRadio.
type FakePeripheral struct {
	Address string

	profile         *device.Profile
	characteristics map[string]*FakeCharacteristic

	dialErr     error
	dialDelay   time.Duration
	dialGate    chan struct{}
	discoverErr error
}

// Profile returns the GATT tree the peripheral exposes after discovery.
func (p *FakePeripheral) Profile() *device.Profile {
	return p.profile
}

// Characteristic returns the fake behind uuid for in-test mutation, or nil.
func (p *FakePeripheral) Characteristic(uuid string) *FakeCharacteristic {
	return p.characteristics[device.NormalizeUUID(uuid)]
}

// FakeLink is the device.Link handed out by FakeRadio.Dial.
type FakeLink struct {
	peripheral *FakePeripheral

	mu           sync.Mutex
	disconnected chan struct{}
	down         bool
	cancels      int
}

func newFakeLink(p *FakePeripheral) *FakeLink {
	return &FakeLink{peripheral: p, disconnected: make(chan struct{})}
}

func (l *FakeLink) Address() string { return l.peripheral.Address }

func (l *FakeLink) DiscoverProfile(ctx context.Context) (device.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.peripheral.discoverErr != nil {
		return nil, l.peripheral.discoverErr
	}
	return l.peripheral.profile, nil
}

func (l *FakeLink) Disconnected() <-chan struct{} { return l.disconnected }

func (l *FakeLink) CancelConnection() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels++
	l.closeLocked()
	return nil
}

// Drop simulates the peripheral going away.
func (l *FakeLink) Drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *FakeLink) closeLocked() {
	if !l.down {
		l.down = true
		close(l.disconnected)
	}
}

func (l *FakeLink) CancelCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancels
}

// ----------------------------
// Radio
// ----------------------------

// FakeRadio is a scriptable device.Radio.
type FakeRadio struct {
	mu          sync.Mutex
	state       device.AdapterState
	listeners   map[int]func(device.AdapterState)
	nextID      int
	registered  int
	adverts     []device.Advertisement
	feed        chan device.Advertisement
	scanErr     error
	scans       int
	peripherals map[string]*FakePeripheral
	links       []*FakeLink
	dials       int
	stops       int
}

func (r *FakeRadio) State() device.AdapterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *FakeRadio) OnStateChange(fn func(device.AdapterState)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.registered++
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// SetState changes the state and notifies listeners synchronously.
func (r *FakeRadio) SetState(state device.AdapterState) {
	r.mu.Lock()
	r.state = state
	fns := make([]func(device.AdapterState), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// ListenerCount reports how many state listeners are currently registered.
func (r *FakeRadio) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Registrations reports how many state listeners were ever registered.
func (r *FakeRadio) Registrations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}

// Scan replays the configured advertisements, then delivers anything pushed through
// Advertise until ctx is done. A configured scan error is returned after the replay.
func (r *FakeRadio) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	r.mu.Lock()
	r.scans++
	adverts := append([]device.Advertisement(nil), r.adverts...)
	scanErr := r.scanErr
	r.mu.Unlock()

	for _, adv := range adverts {
		handler(adv)
	}
	if scanErr != nil {
		return scanErr
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case adv := <-r.feed:
			handler(adv)
		}
	}
}

// Advertise delivers adv to the running scan.
func (r *FakeRadio) Advertise(adv device.Advertisement) {
	r.feed <- adv
}

func (r *FakeRadio) Dial(ctx context.Context, address string) (device.Link, error) {
	r.mu.Lock()
	r.dials++
	p, ok := r.peripherals[strings.ToUpper(address)]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no peripheral with address %q", address)
	}

	if p.dialGate != nil {
		select {
		case <-p.dialGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.dialDelay > 0 {
		select {
		case <-time.After(p.dialDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.dialErr != nil {
		return nil, p.dialErr
	}

	link := newFakeLink(p)
	r.mu.Lock()
	r.links = append(r.links, link)
	r.mu.Unlock()
	return link, nil
}

func (r *FakeRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *FakeRadio) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

func (r *FakeRadio) DialCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

func (r *FakeRadio) StopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Links returns every link dialed so far, oldest first.
func (r *FakeRadio) Links() []*FakeLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeLink(nil), r.links...)
}

// LastLink returns the most recent link, or nil.
func (r *FakeRadio) LastLink() *FakeLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.links) == 0 {
		return nil
	}
	return r.links[len(r.links)-1]
}

var (
	_ device.Radio          = (*FakeRadio)(nil)
	_ device.Link           = (*FakeLink)(nil)
	_ device.Characteristic = (*FakeCharacteristic)(nil)
)
