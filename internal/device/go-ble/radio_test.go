//go:build test

package goble_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
	goble "github.com/srg/mstlink/internal/device/go-ble"
	"github.com/stretchr/testify/suite"
)

// fakeDevice overrides the parts of ble.Device the radio uses; other methods panic via the nil embed.
type fakeDevice struct {
	ble.Device
	scanErr  error
	adverts  []ble.Advertisement
	stopped  bool
	stopLock sync.Mutex
}

func (d *fakeDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	for _, a := range d.adverts {
		h(a)
	}
	if d.scanErr != nil {
		return d.scanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Stop() error {
	d.stopLock.Lock()
	defer d.stopLock.Unlock()
	d.stopped = true
	return nil
}

type fakeAdvertisement struct {
	ble.Advertisement
	name string
	addr string
	rssi int
	mfg  []byte
}

func (a *fakeAdvertisement) LocalName() string        { return a.name }
func (a *fakeAdvertisement) Addr() ble.Addr           { return ble.NewAddr(a.addr) }
func (a *fakeAdvertisement) RSSI() int                { return a.rssi }
func (a *fakeAdvertisement) ManufacturerData() []byte { return a.mfg }
func (a *fakeAdvertisement) Connectable() bool        { return true }
func (a *fakeAdvertisement) Services() []ble.UUID     { return []ble.UUID{ble.UUID16(0x181a)} }

type RadioTestSuite struct {
	suite.Suite
	originalFactory func() (ble.Device, error)
	logger          *logrus.Logger

	mu         sync.Mutex
	factoryErr error
	dev        *fakeDevice
}

func (s *RadioTestSuite) SetupSuite() {
	s.originalFactory = goble.DeviceFactory
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
}

func (s *RadioTestSuite) TearDownSuite() {
	goble.DeviceFactory = s.originalFactory
}

func (s *RadioTestSuite) SetupTest() {
	s.setFactory(&fakeDevice{}, nil)
	goble.DeviceFactory = func() (ble.Device, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.factoryErr != nil {
			return nil, s.factoryErr
		}
		return s.dev, nil
	}
}

func (s *RadioTestSuite) setFactory(dev *fakeDevice, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = dev
	s.factoryErr = err
}

func (s *RadioTestSuite) TestNewRadio_PoweredOn() {
	r, err := goble.NewRadio(s.logger, 10*time.Millisecond)
	s.Require().NoError(err, "radio creation MUST succeed")
	defer r.Stop()

	s.Equal(device.StatePoweredOn, r.State())
}

func (s *RadioTestSuite) TestNewRadio_PoweredOffThenProbedOn() {
	s.setFactory(nil, fmt.Errorf("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"))

	r, err := goble.NewRadio(s.logger, 10*time.Millisecond)
	s.Require().NoError(err, "a switched-off adapter MUST NOT be a creation error")
	defer r.Stop()
	s.Equal(device.StatePoweredOff, r.State())

	states := make(chan device.AdapterState, 4)
	cancel := r.OnStateChange(func(st device.AdapterState) { states <- st })
	defer cancel()

	s.setFactory(&fakeDevice{}, nil)

	select {
	case st := <-states:
		s.Equal(device.StatePoweredOn, st, "prober MUST publish powered on")
	case <-time.After(2 * time.Second):
		s.Fail("prober MUST publish a state change")
	}
	s.Equal(device.StatePoweredOn, r.State())
}

func (s *RadioTestSuite) TestNewRadio_UnauthorizedDoesNotProbe() {
	s.setFactory(nil, fmt.Errorf("central manager has invalid state: have=3 want=5"))

	r, err := goble.NewRadio(s.logger, 10*time.Millisecond)
	s.Require().NoError(err)
	defer r.Stop()

	s.Equal(device.StateUnauthorized, r.State())
}

func (s *RadioTestSuite) TestNewRadio_UnknownErrorFails() {
	s.setFactory(nil, errors.New("something exploded"))

	r, err := goble.NewRadio(s.logger, 10*time.Millisecond)
	s.Error(err, "unmapped creation errors MUST surface")
	s.Nil(r)
}

func (s *RadioTestSuite) TestScan_ConvertsAdvertisements() {
	dev := &fakeDevice{
		adverts: []ble.Advertisement{
			&fakeAdvertisement{name: "MST01-A", addr: "c3:00:00:12:34:56", rssi: -60, mfg: []byte("MINEW")},
		},
	}
	s.setFactory(dev, nil)

	r, err := goble.NewRadio(s.logger, 10*time.Millisecond)
	s.Require().NoError(err)
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got []device.Advertisement
	err = r.Scan(ctx, false, func(a device.Advertisement) { got = append(got, a) })
	s.ErrorIs(err, context.DeadlineExceeded)

	s.Require().Len(got, 1)
	s.Equal("MST01-A", got[0].LocalName())
	s.Equal(-60, got[0].RSSI())
	s.Equal([]byte("MINEW"), got[0].ManufacturerData())
	s.Equal([]string{"181a"}, got[0].Services(), "service UUIDs MUST be normalized")
	s.Contains([]string{"c3:00:00:12:34:56", "C3:00:00:12:34:56"}, got[0].Addr())
}

func (s *RadioTestSuite) TestScan_BluetoothOffMarksPoweredOff() {
	s.setFactory(&fakeDevice{scanErr: errors.New("bluetooth is turned off")}, nil)

	r, err := goble.NewRadio(s.logger, time.Hour)
	s.Require().NoError(err)
	defer r.Stop()

	err = r.Scan(context.Background(), false, func(device.Advertisement) {})
	s.ErrorIs(err, device.ErrBluetoothOff, "scan error MUST be normalized")
	s.Equal(device.StatePoweredOff, r.State(), "radio MUST report powered off after the stack says so")

	err = r.Scan(context.Background(), false, func(device.Advertisement) {})
	s.ErrorIs(err, device.ErrNotReady, "scanning without a device MUST fail as not ready")
}

func (s *RadioTestSuite) TestStop_Idempotent() {
	dev := &fakeDevice{}
	s.setFactory(dev, nil)

	r, err := goble.NewRadio(s.logger, time.Hour)
	s.Require().NoError(err)

	s.NoError(r.Stop())
	s.NoError(r.Stop())
	s.True(dev.stopped)

	_, err = r.Dial(context.Background(), "c3:00:00:12:34:56")
	s.ErrorIs(err, device.ErrNotInitialized)
}

func TestRadioTestSuite(t *testing.T) {
	suite.Run(t, new(RadioTestSuite))
}
