package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/adapter"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/groutine"
)

// ErrConnectAborted is returned by Connect when the session was disconnected mid-pipeline.
var ErrConnectAborted = errors.New("connect aborted")

// Options configures the session pipeline
type Options struct {
	ConnectTimeout   time.Duration `default:"10s"`
	DiscoveryTimeout time.Duration `default:"10s"`
	AuthRoundTimeout time.Duration `default:"2s"`
	Keys             []string
	// RequireAuthentication fails the session when every key is rejected. By default the
	// session still becomes ready and reads proceed.
	RequireAuthentication bool
	EventBuffer           int    `default:"16"`
	JournalSize           uint32 `default:"32"`
}

// DefaultOptions returns default session options
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	opts.Keys = append([]string(nil), DefaultKeys...)
	return opts
}

// Manager owns every session. At most one non-terminal session exists per device id.
type Manager struct {
	adapter   *adapter.Manager
	opts      Options
	exchanger Exchanger
	logger    *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A nil opts uses DefaultOptions and a nil exchanger
// uses SettleExchanger. All sessions are disconnected when the adapter is released.
func NewManager(adapterManager *adapter.Manager, opts *Options, exchanger Exchanger, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Keys == nil {
		o.Keys = append([]string(nil), DefaultKeys...)
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 16
	}
	if o.JournalSize == 0 {
		o.JournalSize = 32
	}
	if exchanger == nil {
		exchanger = SettleExchanger{}
	}

	m := &Manager{
		adapter:   adapterManager,
		opts:      o,
		exchanger: exchanger,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
	adapterManager.OnRelease(m.DisconnectAll)
	return m
}

func sessionKey(deviceID string) string {
	return strings.ToUpper(deviceID)
}

// Connect returns a ready session for deviceID.
//
// A Ready session is reused. While another Connect for the same device is still in flight
// it fails with ErrConnectInProgress. Otherwise a new session runs
// Connecting -> Connected -> Discovering -> Authenticating -> Ready; transitions are
// delivered on Session.Events.
func (m *Manager) Connect(ctx context.Context, deviceID string) (*Session, error) {
	key := sessionKey(deviceID)

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		state := existing.State()
		switch {
		case state == device.SessionReady:
			m.mu.Unlock()
			m.logger.WithField("device_id", deviceID).Debug("Reusing ready session")
			return existing, nil
		case state == device.SessionIdle || state.InFlight():
			m.mu.Unlock()
			return nil, device.NewConnectionError(device.InProgress, fmt.Errorf("device %s", deviceID))
		}
	}
	s := newSession(deviceID, &m.opts, m.logger)
	m.sessions[key] = s
	m.mu.Unlock()

	if err := m.run(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// run drives a new session to Ready.
func (m *Manager) run(ctx context.Context, s *Session) error {
	opCtx, cancelOp := context.WithCancel(ctx)
	defer cancelOp()
	stop := context.AfterFunc(s.ctx, cancelOp)
	defer stop()

	if err := s.transition(device.SessionConnecting, "", nil); err != nil {
		return m.abort(s, err)
	}

	ready, err := m.adapter.EnsureReady(opCtx, 0)
	if err != nil {
		if s.ctx.Err() != nil {
			return m.abort(s, err)
		}
		return m.fail(s, device.NewConnectionError(device.DialFailed, err))
	}
	if !ready {
		return m.fail(s, fmt.Errorf("%w: adapter state %s", device.ErrNotReady, m.adapter.State()))
	}
	radio, err := m.adapter.Radio()
	if err != nil {
		return m.fail(s, device.NewConnectionError(device.DialFailed, err))
	}

	dialCtx, cancelDial := context.WithTimeout(opCtx, m.opts.ConnectTimeout)
	link, err := radio.Dial(dialCtx, s.id)
	cancelDial()
	if err != nil {
		if s.ctx.Err() != nil {
			return m.abort(s, err)
		}
		return m.fail(s, device.NewConnectionError(device.DialFailed, err))
	}
	s.setLink(link)

	if err := s.transition(device.SessionConnected, "", nil); err != nil {
		return m.abort(s, err)
	}
	m.monitor(s, link)

	if err := s.transition(device.SessionDiscovering, "", nil); err != nil {
		return m.abort(s, err)
	}
	discoverCtx, cancelDiscover := context.WithTimeout(opCtx, m.opts.DiscoveryTimeout)
	conn, err := link.DiscoverProfile(discoverCtx)
	cancelDiscover()
	if err != nil {
		if s.ctx.Err() != nil {
			return m.abort(s, err)
		}
		return m.fail(s, device.NewConnectionError(device.DiscoveryFailed, err))
	}

	if err := s.transition(device.SessionAuthenticating, "", nil); err != nil {
		return m.abort(s, err)
	}
	authenticated := m.authenticate(opCtx, s, conn)
	if s.ctx.Err() != nil {
		return m.abort(s, s.ctx.Err())
	}

	detail := DetailAuthenticated
	if !authenticated {
		detail = DetailAuthenticationFailed
		if m.opts.RequireAuthentication {
			return m.failWithDetail(s, detail, fmt.Errorf("%w: device %s", device.ErrAuthenticationFailed, s.id))
		}
	}

	s.setConnection(conn, authenticated)
	if err := s.transition(device.SessionReady, detail, nil); err != nil {
		return m.abort(s, err)
	}
	s.logger.WithField("authenticated", authenticated).Info("Session ready")
	return nil
}

// monitor moves the session to Idle when the peripheral drops the link.
func (m *Manager) monitor(s *Session, link device.Link) {
	groutine.Go(s.ctx, "link-monitor", m.logger, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-link.Disconnected():
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Link lost")
			m.forget(s)
			_ = s.transition(device.SessionIdle, DetailLinkLost, device.ErrNotConnected)
		}
	})
}

// forget removes s from the registry if it is still the registered session for its device.
func (m *Manager) forget(s *Session) {
	key := sessionKey(s.id)
	m.mu.Lock()
	if m.sessions[key] == s {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
}

func (m *Manager) fail(s *Session, err error) error {
	return m.failWithDetail(s, "", err)
}

func (m *Manager) failWithDetail(s *Session, detail string, err error) error {
	m.forget(s)
	// stop the link monitor before tearing the link down
	s.cancel()
	if link := s.Link(); link != nil {
		if cerr := link.CancelConnection(); cerr != nil {
			s.logger.WithField("error", cerr).Debug("Cancel after failure failed")
		}
	}
	_ = s.transition(device.SessionFailed, detail, err)
	return err
}

// abort ends a pipeline interrupted by Disconnect; the session is already Idle.
func (m *Manager) abort(s *Session, cause error) error {
	m.forget(s)
	s.cancel()
	if link := s.Link(); link != nil {
		_ = link.CancelConnection()
	}
	s.logger.WithField("error", cause).Debug("Connect aborted")
	return fmt.Errorf("%w: device %s: %w", ErrConnectAborted, s.id, cause)
}

// Disconnect ends the session of deviceID. It never fails: an unknown device is a no-op,
// an already dropped link is not cancelled again and cancellation errors are only logged.
// An in-flight Connect for the device is aborted.
func (m *Manager) Disconnect(ctx context.Context, deviceID string) error {
	key := sessionKey(deviceID)

	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if !ok {
		m.logger.WithField("device_id", deviceID).Debug("Disconnect: no session")
		return nil
	}

	// ends the monitor and any in-flight pipeline step
	s.cancel()

	if s.closeUnstarted() {
		s.logger.Debug("Disconnected before the connect started")
		return nil
	}

	if link := s.Link(); link != nil {
		select {
		case <-link.Disconnected():
			s.logger.Debug("Link already down")
		default:
			m.cancelLink(ctx, s, link)
		}
	}

	_ = s.transition(device.SessionIdle, DetailDisconnected, nil)
	return nil
}

func (m *Manager) cancelLink(ctx context.Context, s *Session, link device.Link) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- link.CancelConnection()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.WithField("error", err).Warn("Cancel connection failed")
		}
	case <-ctx.Done():
		s.logger.WithField("error", ctx.Err()).Warn("Cancel connection did not finish")
	}
}

// DisconnectAll disconnects every session.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for _, s := range m.sessions {
		ids = append(ids, s.id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Disconnect(ctx, id)
	}
	return nil
}

// Session looks up the live session of deviceID.
func (m *Manager) Session(deviceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(deviceID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, deviceID)
	}
	return s, nil
}

// State returns the session state of deviceID, SessionIdle when there is no session.
func (m *Manager) State(deviceID string) device.SessionState {
	s, err := m.Session(deviceID)
	if err != nil {
		return device.SessionIdle
	}
	return s.State()
}
