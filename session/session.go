// Package session owns the connection pipeline of each sensor: dial, GATT discovery,
// authentication and teardown, with at most one live session per device.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
)

// Session is the connected relationship with one sensor. It is created by Manager.Connect
// and ends on disconnect, link loss or failure; a new Connect creates a new Session.
type Session struct {
	id     string
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         device.SessionState
	link          device.Link
	conn          device.Connection
	authenticated bool
	closed        bool
	events        chan Transition
	done          chan struct{}

	journal *journal
}

func newSession(id string, opts *Options, logger *logrus.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      id,
		logger:  logger.WithField("device_id", id),
		ctx:     ctx,
		cancel:  cancel,
		state:   device.SessionIdle,
		events:  make(chan Transition, opts.EventBuffer),
		done:    make(chan struct{}),
		journal: newJournal(opts.JournalSize),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() device.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticated reports whether a key exchange succeeded.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Events delivers every transition of the session in order. It is closed when the session
// reaches Idle or Failed.
func (s *Session) Events() <-chan Transition {
	return s.events
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Journal returns the most recent transitions, oldest first.
func (s *Session) Journal() []Transition {
	return s.journal.snapshot()
}

// JournalDropped returns how many transitions the journal overwrote to stay within its size.
func (s *Session) JournalDropped() uint32 {
	return s.journal.droppedCount()
}

// Connection returns the discovered GATT tree of a Ready session.
func (s *Session) Connection() (device.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != device.SessionReady || s.conn == nil {
		return nil, fmt.Errorf("%w: session %s is %s", device.ErrNotConnected, s.id, s.state)
	}
	return s.conn, nil
}

func (s *Session) Link() device.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

func (s *Session) setLink(link device.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link = link
}

func (s *Session) setConnection(conn device.Connection, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.authenticated = authenticated
}

// closeUnstarted ends a session that never left Idle. It reports false once the pipeline
// has started or the session already ended.
func (s *Session) closeUnstarted() bool {
	s.mu.Lock()
	if s.closed || s.state != device.SessionIdle {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	close(s.events)
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	return true
}

// transition moves the session to state `to`, publishing the change. It fails when the
// session already ended or the change is not in the transition table.
func (s *Session) transition(to device.SessionState, detail string, cause error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s already ended", ErrInvalidTransition, s.id)
	}
	from := s.state
	if !allowed(from, to) {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Warn("Rejected session transition")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	s.state = to
	t := Transition{
		DeviceID: s.id,
		From:     from,
		To:       to,
		Detail:   detail,
		Err:      cause,
		At:       time.Now(),
	}
	if err := s.journal.record(t); err != nil {
		s.logger.WithField("error", err).Debug("Failed to journal transition")
	}

	select {
	case s.events <- t:
	default:
		s.logger.WithField("state", to).Warn("Session event buffer full, transition not delivered")
	}

	if terminal(to) {
		s.closed = true
		close(s.events)
		close(s.done)
	}
	s.mu.Unlock()

	if terminal(to) {
		s.cancel()
	}

	entry := s.logger.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	})
	if detail != "" {
		entry = entry.WithField("detail", detail)
	}
	if cause != nil {
		entry.WithField("error", cause).Info("Session state changed")
	} else {
		entry.Debug("Session state changed")
	}
	return nil
}
