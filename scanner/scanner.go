// Package scanner runs bounded BLE discovery and reports MST sensors as they are found.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/adapter"
	"github.com/srg/mstlink/internal/classifier"
	"github.com/srg/mstlink/internal/device"
)

// EventType marks if the sensor was newly discovered or updated
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

func (t EventType) String() string {
	if t == EventUpdated {
		return "updated"
	}
	return "new"
}

// MatchEvent is published for every advertisement classified as an MST sensor.
type MatchEvent struct {
	Type   EventType
	Device device.SensorData
	RSSI   int
	Rule   string
}

// Options configures scanning behavior
type Options struct {
	// Window is how long a scan runs before stopping by itself. Zero uses DefaultWindow.
	Window          time.Duration
	ReadyTimeout    time.Duration `default:"5s"`
	AllowDuplicates bool          `default:"true"`
	EventBuffer     int           `default:"100"`
	AllowList       []string
	BlockList       []string
	// OnMatch, when set, is called synchronously for every match before it is published.
	OnMatch func(MatchEvent)
}

// DefaultWindow is the scan window for the current platform.
func DefaultWindow() time.Duration {
	if runtime.GOOS == "darwin" {
		return 10 * time.Second
	}
	return 30 * time.Second
}

// DefaultOptions returns default scanning options
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	opts.Window = DefaultWindow()
	return opts
}

// Scanner runs at most one scan at a time on the shared radio.
type Scanner struct {
	adapter *adapter.Manager
	opts    Options
	rules   []classifier.Rule
	logger  *logrus.Logger

	mu          sync.Mutex
	starting    bool
	startCancel context.CancelFunc
	active      *Subscription
}

// New creates a scanner. A nil opts uses DefaultOptions. The scan is stopped when the
// adapter is released.
func New(adapterManager *adapter.Manager, opts *Options, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Window <= 0 {
		o.Window = DefaultWindow()
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 100
	}

	s := &Scanner{
		adapter: adapterManager,
		opts:    o,
		rules:   classifier.DefaultRules,
		logger:  logger,
	}
	adapterManager.OnRelease(func(context.Context) error {
		s.Stop()
		return nil
	})
	return s
}

// Start begins a scan that ends after the configured window, on Stop, or when ctx is done.
//
// It returns ErrNotReady when the adapter does not power on within the ready timeout.
// When a scan is already running it returns that scan's subscription together with
// ErrAlreadyScanning. A Stop while Start is still waiting for the adapter makes Start
// return context.Canceled without scanning.
func (s *Scanner) Start(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	if s.starting || s.active != nil {
		active := s.active
		s.mu.Unlock()
		s.logger.Info("Scan already in progress")
		return active, device.ErrAlreadyScanning
	}
	startCtx, startCancel := context.WithCancel(ctx)
	s.starting = true
	s.startCancel = startCancel
	s.mu.Unlock()

	sub, err := s.start(startCtx, startCancel)

	s.mu.Lock()
	s.starting = false
	s.startCancel = nil
	if err == nil && startCtx.Err() != nil {
		sub.cancel()
		err = startCtx.Err()
	}
	if err == nil {
		s.active = sub
	}
	s.mu.Unlock()

	if err != nil {
		startCancel()
		return nil, err
	}
	sub.run()
	return sub, nil
}

func (s *Scanner) start(ctx context.Context, stop context.CancelFunc) (*Subscription, error) {
	ready, err := s.adapter.EnsureReady(ctx, s.opts.ReadyTimeout)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, fmt.Errorf("%w: adapter state %s", device.ErrNotReady, s.adapter.State())
	}

	radio, err := s.adapter.Radio()
	if err != nil {
		return nil, err
	}

	s.logger.WithField("window", s.opts.Window).Info("Starting BLE scan...")

	scanCtx, cancel := context.WithTimeout(ctx, s.opts.Window)
	return newSubscription(scanCtx, func() { cancel(); stop() }, s, radio), nil
}

// Stop ends the running scan, or cancels a Start still waiting for the adapter.
// Safe to call when not scanning and from OnMatch.
func (s *Scanner) Stop() {
	s.mu.Lock()
	sub := s.active
	s.active = nil
	if s.startCancel != nil {
		s.startCancel()
	}
	s.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
}

// Scanning reports whether a scan is running.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starting || s.active != nil
}

// Active returns the running subscription or nil.
func (s *Scanner) Active() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Scanner) finished(sub *Subscription) {
	s.mu.Lock()
	if s.active == sub {
		s.active = nil
	}
	s.mu.Unlock()
}

// included applies the allow and block lists.
func (s *Scanner) included(id string) bool {
	for _, blocked := range s.opts.BlockList {
		if strings.EqualFold(id, blocked) {
			return false
		}
	}
	if len(s.opts.AllowList) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowList {
		if strings.EqualFold(id, allowed) {
			return true
		}
	}
	return false
}

// isStopError reports whether err only says the scan was stopped or timed out.
func isStopError(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
