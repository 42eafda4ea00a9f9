package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/groutine"
)

// DefaultProbeInterval is how often a radio that is not powered on retries device creation.
const DefaultProbeInterval = time.Second

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// Radio implements device.Radio on top of a go-ble platform device.
//
// go-ble does not publish power state changes, so the state is derived from device
// creation: a successful creation means powered on, a failure is mapped through
// StateFromError and a background prober retries creation until it succeeds.
type Radio struct {
	logger        *logrus.Logger
	probeInterval time.Duration

	mu        sync.Mutex
	dev       ble.Device
	state     device.AdapterState
	listeners map[uint64]func(device.AdapterState)
	nextID    uint64
	probing   bool
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRadio creates the platform radio. It fails only when device creation fails for a reason
// that does not map to a power state; a switched-off or resetting adapter yields a radio in
// that state which keeps probing in the background.
func NewRadio(logger *logrus.Logger, probeInterval time.Duration) (*Radio, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}

	r := &Radio{
		logger:        logger,
		probeInterval: probeInterval,
		listeners:     make(map[uint64]func(device.AdapterState)),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	dev, err := DeviceFactory()
	if err == nil {
		r.dev = dev
		r.state = device.StatePoweredOn
		logger.Debug("BLE radio created and powered on")
		return r, nil
	}

	state, ok := StateFromError(err)
	if !ok {
		r.cancel()
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}

	r.state = state
	logger.WithFields(logrus.Fields{
		"state": state,
		"error": err,
	}).Info("BLE radio not powered on")

	if !state.Terminal() {
		r.startProbe()
	}
	return r, nil
}

func (r *Radio) State() device.AdapterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnStateChange registers fn for state transitions. fn is called outside the radio lock.
func (r *Radio) OnStateChange(fn func(device.AdapterState)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// setState must be called without holding r.mu
func (r *Radio) setState(state device.AdapterState) {
	r.mu.Lock()
	if r.state == state {
		r.mu.Unlock()
		return
	}
	prev := r.state
	r.state = state
	listeners := make([]func(device.AdapterState), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"from": prev,
		"to":   state,
	}).Info("BLE radio state changed")

	for _, fn := range listeners {
		fn(state)
	}
}

// startProbe launches the creation prober unless one is already running.
func (r *Radio) startProbe() {
	r.mu.Lock()
	if r.probing || r.stopped {
		r.mu.Unlock()
		return
	}
	r.probing = true
	r.mu.Unlock()

	groutine.Go(r.ctx, "ble-radio-prober", r.logger, func(ctx context.Context) {
		defer func() {
			r.mu.Lock()
			r.probing = false
			r.mu.Unlock()
		}()

		ticker := time.NewTicker(r.probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			dev, err := DeviceFactory()
			if err != nil {
				if state, ok := StateFromError(err); ok {
					r.setState(state)
					if state.Terminal() {
						return
					}
				}
				continue
			}

			r.mu.Lock()
			if r.stopped {
				r.mu.Unlock()
				_ = dev.Stop()
				return
			}
			r.dev = dev
			r.mu.Unlock()
			r.setState(device.StatePoweredOn)
			return
		}
	})
}

// markPoweredOff drops the platform device after the stack reported the adapter off.
func (r *Radio) markPoweredOff() {
	r.mu.Lock()
	dev := r.dev
	r.dev = nil
	r.mu.Unlock()

	if dev != nil {
		if err := dev.Stop(); err != nil {
			r.logger.WithField("error", err).Debug("Stopping BLE device after power loss failed")
		}
	}
	r.setState(device.StatePoweredOff)
	r.startProbe()
}

func (r *Radio) platformDevice() (ble.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, device.ErrNotInitialized
	}
	if r.dev == nil {
		return nil, fmt.Errorf("%w: adapter state %s", device.ErrNotReady, r.state)
	}
	return r.dev, nil
}

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement to the device.Advertisement
func (r *Radio) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := r.platformDevice()
	if err != nil {
		return err
	}

	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}

	err = NormalizeError(dev.Scan(ctx, allowDup, bleHandler))
	if errors.Is(err, device.ErrBluetoothOff) {
		r.markPoweredOff()
	}
	return err
}

// Dial connects to the peripheral at address
func (r *Radio) Dial(ctx context.Context, address string) (device.Link, error) {
	dev, err := r.platformDevice()
	if err != nil {
		return nil, err
	}

	r.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		err = NormalizeError(err)
		if errors.Is(err, device.ErrBluetoothOff) {
			r.markPoweredOff()
		}
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, err)
	}
	return newLink(client, address, r.logger), nil
}

// Stop cancels probing and stops the platform device. Safe to call more than once.
func (r *Radio) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	dev := r.dev
	r.dev = nil
	r.mu.Unlock()

	r.cancel()
	if dev == nil {
		return nil
	}
	return NormalizeError(dev.Stop())
}

var _ device.Radio = (*Radio)(nil)
