// Package adapter owns the process-wide BLE radio and tracks its power state.
package adapter

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
)

// RadioFactory creates the platform radio.
type RadioFactory func() (device.Radio, error)

// DefaultRetain reports whether the platform radio should outlive its last user.
// CoreBluetooth allows a single central manager per process.
func DefaultRetain() bool {
	return runtime.GOOS == "darwin"
}

// Handle is the ownership token for the process-wide radio. It is created once and shared by
// every Manager; the radio is created on the first Acquire and reference counted afterwards.
type Handle struct {
	factory RadioFactory
	retain  bool
	logger  *logrus.Logger

	mu    sync.Mutex
	radio device.Radio
	refs  int
}

// NewHandle creates a handle. With retain set, the radio is kept when the last reference is
// released so the next Acquire reuses it.
func NewHandle(factory RadioFactory, retain bool, logger *logrus.Logger) *Handle {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handle{
		factory: factory,
		retain:  retain,
		logger:  logger,
	}
}

// Acquire returns the shared radio, creating it if needed, and takes a reference.
func (h *Handle) Acquire() (device.Radio, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.radio == nil {
		radio, err := h.factory()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire BLE radio: %w", err)
		}
		h.radio = radio
		h.logger.WithField("state", radio.State()).Debug("BLE radio created")
	}
	h.refs++
	h.logger.WithField("refs", h.refs).Debug("BLE radio acquired")
	return h.radio, nil
}

// Release drops a reference. The radio is stopped when the count reaches zero unless the
// handle retains it. Releasing without a reference is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.refs == 0 {
		h.mu.Unlock()
		return nil
	}
	h.refs--
	h.logger.WithField("refs", h.refs).Debug("BLE radio released")

	if h.refs > 0 || h.retain || h.radio == nil {
		h.mu.Unlock()
		return nil
	}
	radio := h.radio
	h.radio = nil
	h.mu.Unlock()

	h.logger.Debug("Stopping BLE radio")
	return radio.Stop()
}

// Refs returns the number of outstanding references.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Close stops the radio regardless of references or retain policy.
func (h *Handle) Close() error {
	h.mu.Lock()
	radio := h.radio
	h.radio = nil
	h.refs = 0
	h.mu.Unlock()

	if radio == nil {
		return nil
	}
	return radio.Stop()
}
