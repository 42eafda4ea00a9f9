// Package mstlink discovers MST01/MST03 environmental sensors over BLE, reads their current
// measurements and retrieves historical series.
//
//	client := mstlink.New(mstlink.Options{}, logger)
//	defer client.Close(ctx)
//
//	sub, err := client.Scan(ctx)
//	for ev := range sub.Events() {
//	    fmt.Println(ev.Device.Name)
//	}
//	data, err := client.ReadOnce(ctx, "C3:00:00:12:34:56")
package mstlink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/adapter"
	"github.com/srg/mstlink/internal/classifier"
	"github.com/srg/mstlink/internal/device"
	goble "github.com/srg/mstlink/internal/device/go-ble"
	"github.com/srg/mstlink/scanner"
	"github.com/srg/mstlink/session"
	"github.com/srg/mstlink/telemetry"
)

// Options wires the client. Zero values select the defaults of each component.
type Options struct {
	// Handle shares an existing radio token; when nil the client creates and owns one.
	Handle       *adapter.Handle
	RadioFactory adapter.RadioFactory
	RetainRadio  bool

	ReadyTimeout time.Duration
	ReadTimeout  time.Duration

	Scan    *scanner.Options
	Session *session.Options
	History *telemetry.HistoryOptions

	Exchanger     session.Exchanger
	HistorySource telemetry.Source
}

// Client is the entry point for sensor discovery, sessions and reads.
type Client struct {
	logger     *logrus.Logger
	handle     *adapter.Handle
	ownsHandle bool

	adapter   *adapter.Manager
	scanner   *scanner.Scanner
	sessions  *session.Manager
	reader    *telemetry.Reader
	retriever *telemetry.Retriever

	registry *hashmap.Map[string, device.SensorData]
}

// New builds a client. The radio is not touched until the first scan or connect.
func New(opts Options, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	c := &Client{
		logger:   logger,
		handle:   opts.Handle,
		registry: hashmap.New[string, device.SensorData](),
	}

	if c.handle == nil {
		factory := opts.RadioFactory
		if factory == nil {
			factory = func() (device.Radio, error) {
				return goble.NewRadio(logger, goble.DefaultProbeInterval)
			}
		}
		c.handle = adapter.NewHandle(factory, opts.RetainRadio, logger)
		c.ownsHandle = true
	}

	c.adapter = adapter.NewManager(c.handle, opts.ReadyTimeout, logger)

	scanOpts := scanner.DefaultOptions()
	if opts.Scan != nil {
		o := *opts.Scan
		scanOpts = &o
	}
	if scanOpts.ReadyTimeout <= 0 {
		scanOpts.ReadyTimeout = opts.ReadyTimeout
	}
	userOnMatch := scanOpts.OnMatch
	scanOpts.OnMatch = func(ev scanner.MatchEvent) {
		c.remember(ev.Device)
		if userOnMatch != nil {
			userOnMatch(ev)
		}
	}

	c.scanner = scanner.New(c.adapter, scanOpts, logger)
	c.sessions = session.NewManager(c.adapter, opts.Session, opts.Exchanger, logger)
	c.reader = telemetry.NewReader(opts.ReadTimeout, logger)
	c.retriever = telemetry.NewRetriever(opts.History, opts.HistorySource, logger)
	return c
}

func registryKey(id string) string {
	return strings.ToUpper(id)
}

// remember records a scan match, keeping measurements already read for the device.
func (c *Client) remember(data device.SensorData) {
	key := registryKey(data.ID)
	if prev, ok := c.registry.Get(key); ok {
		data.BatteryLevel = prev.BatteryLevel
		data.Temperature = prev.Temperature
		data.Humidity = prev.Humidity
	}
	c.registry.Set(key, data)
}

// AdapterState returns the radio power state.
func (c *Client) AdapterState() device.AdapterState {
	return c.adapter.State()
}

// EnsureReady waits up to timeout for the radio to power on.
func (c *Client) EnsureReady(ctx context.Context, timeout time.Duration) (bool, error) {
	return c.adapter.EnsureReady(ctx, timeout)
}

// Scan starts discovery, or returns the running scan when one is already active.
func (c *Client) Scan(ctx context.Context) (*scanner.Subscription, error) {
	sub, err := c.scanner.Start(ctx)
	if errors.Is(err, device.ErrAlreadyScanning) && sub != nil {
		return sub, nil
	}
	return sub, err
}

// StopScan ends the running scan. Safe to call when not scanning.
func (c *Client) StopScan() {
	c.scanner.Stop()
}

// Connect returns a ready session for the device.
func (c *Client) Connect(ctx context.Context, deviceID string) (*session.Session, error) {
	return c.sessions.Connect(ctx, deviceID)
}

// Disconnect ends the device session. Unknown devices are a no-op.
func (c *Client) Disconnect(ctx context.Context, deviceID string) error {
	return c.sessions.Disconnect(ctx, deviceID)
}

// Session looks up the live session of a device.
func (c *Client) Session(deviceID string) (*session.Session, error) {
	return c.sessions.Session(deviceID)
}

// SessionState returns the session state of a device, SessionIdle when not connected.
func (c *Client) SessionState(deviceID string) device.SessionState {
	return c.sessions.State(deviceID)
}

// ReadTelemetry reads the current measurements and refreshes the registry entry in place.
func (c *Client) ReadTelemetry(ctx context.Context, s *session.Session) (device.SensorData, error) {
	data, err := c.reader.ReadAll(ctx, s)
	if err != nil {
		return data, err
	}

	key := registryKey(data.ID)
	if known, ok := c.registry.Get(key); ok {
		data.Name = known.Name
		data.Type = known.Type
	}
	c.registry.Set(key, data)
	return data, nil
}

// FetchHistory retrieves the series between start and end.
func (c *Client) FetchHistory(ctx context.Context, s *session.Session, start, end time.Time, onProgress func(int)) ([]device.HistoricalPoint, error) {
	return c.retriever.FetchRange(ctx, s, start.Unix(), end.Unix(), onProgress)
}

// ReadOnce connects, reads the measurements and disconnects.
func (c *Client) ReadOnce(ctx context.Context, deviceID string) (device.SensorData, error) {
	s, err := c.Connect(ctx, deviceID)
	if err != nil {
		return device.SensorData{}, err
	}
	defer func() {
		_ = c.Disconnect(context.WithoutCancel(ctx), deviceID)
	}()

	return c.ReadTelemetry(ctx, s)
}

// Device returns the latest known data of a device seen by a scan or read.
func (c *Client) Device(deviceID string) (device.SensorData, error) {
	data, ok := c.registry.Get(registryKey(deviceID))
	if !ok {
		return device.SensorData{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, deviceID)
	}
	return data, nil
}

// Devices returns every known device ordered by id.
func (c *Client) Devices() []device.SensorData {
	result := make([]device.SensorData, 0, c.registry.Len())
	c.registry.Range(func(_ string, data device.SensorData) bool {
		result = append(result, data)
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Tag is a decoded device label.
type Tag = classifier.Tag

// ErrNoAddress is returned by ParseTag for labels without a MAC address.
var ErrNoAddress = classifier.ErrNoAddress

// ParseTag decodes a printed device label into its model and address.
func ParseTag(code string) (Tag, error) {
	return classifier.ParseTag(code)
}

// Close stops scanning, disconnects every session and releases the radio.
func (c *Client) Close(ctx context.Context) error {
	err := c.adapter.Release(ctx)
	if c.ownsHandle {
		err = errors.Join(err, c.handle.Close())
	}
	return err
}
