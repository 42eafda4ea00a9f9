package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/groutine"
)

// DefaultReadyTimeout bounds how long EnsureReady waits for the radio to power on.
const DefaultReadyTimeout = 5 * time.Second

// readyWait is the single in-flight EnsureReady wait shared by concurrent callers.
type readyWait struct {
	done  chan struct{}
	ready bool
}

// Manager tracks the adapter state for one user of the shared radio and owns the
// teardown hooks of the components built on top of it.
type Manager struct {
	handle       *Handle
	logger       *logrus.Logger
	readyTimeout time.Duration

	mu          sync.Mutex
	radio       device.Radio
	initialized bool
	wait        *readyWait
	waitCancel  context.CancelFunc
	hooks       []func(context.Context) error
}

// NewManager creates a manager on top of handle. The radio is acquired lazily.
func NewManager(handle *Handle, readyTimeout time.Duration, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &Manager{
		handle:       handle,
		logger:       logger,
		readyTimeout: readyTimeout,
	}
}

// Radio returns the shared radio, acquiring a handle reference on first use.
func (m *Manager) Radio() (device.Radio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioLocked()
}

func (m *Manager) radioLocked() (device.Radio, error) {
	if m.radio != nil {
		return m.radio, nil
	}
	radio, err := m.handle.Acquire()
	if err != nil {
		return nil, err
	}
	m.radio = radio
	return radio, nil
}

// State returns the current adapter state, or StateUnknown when the radio was never acquired.
func (m *Manager) State() device.AdapterState {
	m.mu.Lock()
	radio := m.radio
	m.mu.Unlock()
	if radio == nil {
		return device.StateUnknown
	}
	return radio.State()
}

// EnsureReady reports whether the radio is powered on, waiting up to timeout for it to power on.
//
// When the radio is already on it returns immediately without registering a listener. After
// the first wait ends the manager is initialized and later calls report the current state
// without waiting again. Concurrent callers share one wait. A zero timeout uses the manager
// default. The only errors are radio acquisition failures and ctx cancellation.
func (m *Manager) EnsureReady(ctx context.Context, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	radio, err := m.radioLocked()
	if err != nil {
		m.mu.Unlock()
		return false, err
	}

	state := radio.State()
	switch {
	case state == device.StatePoweredOn:
		m.initialized = true
		m.mu.Unlock()
		return true, nil
	case state.Terminal():
		m.initialized = true
		m.mu.Unlock()
		m.logger.WithField("state", state).Warn("BLE adapter cannot be powered on")
		return false, nil
	case m.initialized:
		m.mu.Unlock()
		return false, nil
	}

	w := m.wait
	if w == nil {
		if timeout <= 0 {
			timeout = m.readyTimeout
		}
		w = &readyWait{done: make(chan struct{})}
		m.wait = w
		var waitCtx context.Context
		waitCtx, m.waitCancel = context.WithCancel(context.Background())
		groutine.Go(waitCtx, "adapter-ready-wait", m.logger, func(ctx context.Context) {
			m.awaitPoweredOn(ctx, radio, w, timeout)
		})
	}
	m.mu.Unlock()

	select {
	case <-w.done:
		return w.ready, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Manager) awaitPoweredOn(ctx context.Context, radio device.Radio, w *readyWait, timeout time.Duration) {
	changed := make(chan device.AdapterState, 1)
	cancel := radio.OnStateChange(func(state device.AdapterState) {
		if state == device.StatePoweredOn || state.Terminal() {
			select {
			case changed <- state:
			default:
			}
		}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	logger := m.logger.WithField("timeout", timeout)
	logger.Debug("Waiting for BLE adapter to power on")

	ready := radio.State() == device.StatePoweredOn
	if !ready {
		select {
		case state := <-changed:
			ready = state == device.StatePoweredOn
		case <-timer.C:
			logger.WithField("state", radio.State()).Warn("BLE adapter did not power on in time")
		case <-ctx.Done():
		}
	}
	cancel()

	m.mu.Lock()
	w.ready = ready
	if ctx.Err() == nil {
		m.initialized = true
	}
	if m.wait == w {
		m.wait = nil
		m.waitCancel = nil
	}
	m.mu.Unlock()
	close(w.done)
}

// OnRelease registers fn to run on Release. Hooks run in reverse registration order.
func (m *Manager) OnRelease(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Release runs the teardown hooks, gives the radio reference back and resets the initialized
// flag. Hooks stay registered and run on every Release; the radio reference is only given back
// when one was acquired since the previous Release.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	hooks := append([]func(context.Context) error(nil), m.hooks...)
	radio := m.radio
	m.radio = nil
	m.initialized = false
	if m.waitCancel != nil {
		m.waitCancel()
	}
	m.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			m.logger.WithField("error", err).Warn("Adapter release hook failed")
			errs = append(errs, err)
		}
	}

	if radio != nil {
		if err := m.handle.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
