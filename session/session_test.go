//go:build test

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srg/mstlink/internal/adapter"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/testutils"
	"github.com/srg/mstlink/session"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const sensorAddr = "C3:00:00:12:34:56"

type SessionTestSuite struct {
	suite.Suite
	helper     *testutils.TestHelper
	radio      *testutils.FakeRadio
	adapter    *adapter.Manager
	exchanger  *testutils.MockExchanger
	opts       *session.Options
	peripheral *testutils.PeripheralBuilder
}

func (s *SessionTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.exchanger = &testutils.MockExchanger{}
	s.opts = session.DefaultOptions()
	s.opts.ConnectTimeout = time.Second
	s.opts.AuthRoundTimeout = 100 * time.Millisecond
	s.peripheral = testutils.NewPeripheralBuilder(sensorAddr).
		WithSensorProfile([]byte{0xE8, 0x03}, []byte{0x88, 0x13}, []byte{0x5A})
}

func (s *SessionTestSuite) TearDownTest() {
	if s.adapter != nil {
		s.NoError(s.adapter.Release(context.Background()))
		s.adapter = nil
	}
}

func (s *SessionTestSuite) newManager() *session.Manager {
	return s.newManagerWith(s.exchanger)
}

func (s *SessionTestSuite) newManagerWith(exchanger session.Exchanger) *session.Manager {
	s.radio = testutils.NewRadioBuilder().WithPeripheral(s.peripheral.Build()).Build()
	radio := s.radio
	handle := adapter.NewHandle(func() (device.Radio, error) { return radio, nil }, false, s.helper.Logger)
	s.adapter = adapter.NewManager(handle, 50*time.Millisecond, s.helper.Logger)
	return session.NewManager(s.adapter, s.opts, exchanger, s.helper.Logger)
}

func drain(events <-chan session.Transition) []session.Transition {
	var out []session.Transition
	for t := range events {
		out = append(out, t)
	}
	return out
}

func states(ts []session.Transition) []device.SessionState {
	out := make([]device.SessionState, len(ts))
	for i, t := range ts {
		out[i] = t.To
	}
	return out
}

func (s *SessionTestSuite) TestConnect_ReachesReadyInOrder() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, "minewtech1234567").Return(nil).Once()
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.Equal(device.SessionReady, sess.State())
	s.True(sess.Authenticated())

	conn, err := sess.Connection()
	s.Require().NoError(err)
	_, err = conn.GetCharacteristic("181A", "2A6E")
	s.NoError(err, "discovered tree MUST be reachable from the session")

	s.Require().NoError(m.Disconnect(context.Background(), sensorAddr))

	ts := drain(sess.Events())
	s.Equal([]device.SessionState{
		device.SessionConnecting,
		device.SessionConnected,
		device.SessionDiscovering,
		device.SessionAuthenticating,
		device.SessionReady,
		device.SessionIdle,
	}, states(ts), "transitions MUST be delivered in order exactly once")
	s.Equal(session.DetailAuthenticated, ts[4].Detail)
	s.Equal(device.SessionIdle, ts[0].From)
	s.Equal(sensorAddr, ts[0].DeviceID)

	s.Len(sess.Journal(), 6, "journal MUST retain recent transitions")
	s.Len(sess.Journal(), 6, "journal snapshot MUST NOT consume entries")
	s.exchanger.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestConnect_AuthSoftFail() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("rejected")).Twice()
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err, "rejected keys MUST NOT gate readiness by default")
	s.Equal(device.SessionReady, sess.State())
	s.False(sess.Authenticated())

	_ = m.Disconnect(context.Background(), sensorAddr)
	ts := drain(sess.Events())
	s.Equal(session.DetailAuthenticationFailed, ts[4].Detail)
	s.exchanger.AssertNumberOfCalls(s.T(), "Exchange", 2)
}

func (s *SessionTestSuite) TestConnect_SecondKeyWins() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, "minewtech1234567").Return(errors.New("rejected")).Once()
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, "3141592653589793").Return(nil).Once()
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.True(sess.Authenticated())
	s.exchanger.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestConnect_RequireAuthentication() {
	s.opts.RequireAuthentication = true
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("rejected"))
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.ErrorIs(err, device.ErrAuthenticationFailed)
	s.Nil(sess)
	s.Equal(device.SessionIdle, m.State(sensorAddr), "failed session MUST be cleared")
	s.Equal(1, s.radio.LastLink().CancelCount(), "link MUST be torn down")
}

func (s *SessionTestSuite) TestConnect_AuthRoundTimeout() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)
	m := s.newManager()

	start := time.Now()
	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.False(sess.Authenticated())
	s.Less(time.Since(start), time.Second, "each key round MUST be bounded")
}

func (s *SessionTestSuite) TestConnect_CharacteristicExchangerWritesKey() {
	peripheral := s.peripheral.WithService("fff0").WithCharacteristic("fff1", nil).Build()
	m := s.newManagerWith(session.CharacteristicExchanger{Service: "FFF0", Characteristic: "FFF1", WithResponse: true})

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.True(sess.Authenticated())
	s.Equal([][]byte{[]byte("minewtech1234567")}, peripheral.Characteristic("fff1").Writes(),
		"the first accepted key MUST be the only write")
}

func (s *SessionTestSuite) TestConnect_CharacteristicExchangerWriteRejected() {
	peripheral := s.peripheral.WithService("fff0").WithCharacteristic("fff1", nil).Build()
	peripheral.Characteristic("fff1").SetWriteError(errors.New("write not permitted"))
	m := s.newManagerWith(session.CharacteristicExchanger{Service: "fff0", Characteristic: "fff1"})

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.False(sess.Authenticated())
	s.Len(peripheral.Characteristic("fff1").Writes(), len(session.DefaultKeys), "every key MUST be tried")
}

func (s *SessionTestSuite) TestConnect_CharacteristicExchangerMissingCharacteristic() {
	s.opts.RequireAuthentication = true
	m := s.newManagerWith(session.CharacteristicExchanger{Service: "fff0", Characteristic: "fff1"})

	_, err := m.Connect(context.Background(), sensorAddr)
	s.ErrorIs(err, device.ErrAuthenticationFailed)
}

func (s *SessionTestSuite) TestJournalCountsOverwrittenTransitions() {
	s.opts.JournalSize = 4
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	s.Require().NoError(m.Disconnect(context.Background(), sensorAddr))
	drain(sess.Events())

	s.Positive(sess.JournalDropped(), "a full journal MUST count overwritten transitions")
	s.LessOrEqual(len(sess.Journal()), 4)
	s.Equal(device.SessionIdle, sess.Journal()[len(sess.Journal())-1].To, "newest transition MUST be kept")
}

func (s *SessionTestSuite) TestConnect_DialFailure() {
	s.peripheral.WithDialError(errors.New("connection refused"))
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Nil(sess)
	s.ErrorIs(err, device.ErrDialFailed)
	s.True(device.IsConnectionError(err))
	s.Equal(device.SessionIdle, m.State(sensorAddr))
}

func (s *SessionTestSuite) TestConnect_DiscoveryFailure() {
	s.peripheral.WithDiscoverError(errors.New("att timeout"))
	m := s.newManager()

	_, err := m.Connect(context.Background(), sensorAddr)
	s.ErrorIs(err, device.ErrDiscoveryFailed)
	s.Equal(1, s.radio.LastLink().CancelCount(), "link MUST be torn down after discovery failure")
}

func (s *SessionTestSuite) TestConnect_AdapterNotReady() {
	m := s.newManager()
	s.radio.SetState(device.StatePoweredOff)

	_, err := m.Connect(context.Background(), sensorAddr)
	s.ErrorIs(err, device.ErrNotReady)
	s.Equal(0, s.radio.DialCount())
}

func (s *SessionTestSuite) TestConnect_ReusesReadySession() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m := s.newManager()

	first, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	second, err := m.Connect(context.Background(), "c3:00:00:12:34:56")
	s.Require().NoError(err)

	s.Same(first, second, "ready session MUST be reused")
	s.Equal(1, s.radio.DialCount())
}

func (s *SessionTestSuite) TestConnect_ConcurrentConnectsYieldOneSession() {
	gate := make(chan struct{})
	s.peripheral.WithDialGate(gate)
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m := s.newManager()

	const callers = 4
	var wg sync.WaitGroup
	results := make(chan error, callers)
	sessions := make(chan *session.Session, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := m.Connect(context.Background(), sensorAddr)
			results <- err
			if sess != nil {
				sessions <- sess
			}
		}()
	}

	s.Eventually(func() bool { return m.State(sensorAddr) == device.SessionConnecting }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)
	close(sessions)

	var ok, inProgress int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, device.ErrConnectInProgress):
			inProgress++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok, "exactly one connect MUST win")
	s.Equal(callers-1, inProgress)
	s.Equal(1, s.radio.DialCount(), "only one dial MUST happen")
	s.Len(sessions, 1)
}

func (s *SessionTestSuite) TestDisconnect_UnknownDeviceIsNoop() {
	m := s.newManager()

	s.NotPanics(func() {
		s.NoError(m.Disconnect(context.Background(), "AA:BB:CC:DD:EE:FF"))
	})
	s.Equal(device.SessionIdle, m.State("AA:BB:CC:DD:EE:FF"))

	_, err := m.Session("AA:BB:CC:DD:EE:FF")
	s.ErrorIs(err, device.ErrDeviceNotFound)
}

func (s *SessionTestSuite) TestDisconnect_SkipsDroppedLink() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)
	link := s.radio.LastLink()

	link.Drop()
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		s.FailNow("link loss MUST end the session")
	}

	s.NoError(m.Disconnect(context.Background(), sensorAddr))
	s.Equal(0, link.CancelCount(), "dropped link MUST NOT be cancelled again")

	ts := drain(sess.Events())
	last := ts[len(ts)-1]
	s.Equal(device.SessionIdle, last.To)
	s.Equal(session.DetailLinkLost, last.Detail)
	s.ErrorIs(last.Err, device.ErrNotConnected)
}

func (s *SessionTestSuite) TestDisconnect_AbortsInFlightConnect() {
	gate := make(chan struct{})
	defer close(gate)
	s.peripheral.WithDialGate(gate)
	m := s.newManager()

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), sensorAddr)
		errCh <- err
	}()

	s.Eventually(func() bool { return m.State(sensorAddr) == device.SessionConnecting }, time.Second, 5*time.Millisecond)
	sess, err := m.Session(sensorAddr)
	s.Require().NoError(err)

	s.NoError(m.Disconnect(context.Background(), sensorAddr))

	select {
	case err := <-errCh:
		s.ErrorIs(err, session.ErrConnectAborted)
	case <-time.After(time.Second):
		s.FailNow("disconnect MUST abort the in-flight connect")
	}

	s.Equal([]device.SessionState{device.SessionConnecting, device.SessionIdle}, states(drain(sess.Events())))
	s.Equal(device.SessionIdle, m.State(sensorAddr))
}

func (s *SessionTestSuite) TestAdapterReleaseDisconnectsAll() {
	s.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m := s.newManager()

	sess, err := m.Connect(context.Background(), sensorAddr)
	s.Require().NoError(err)

	s.Require().NoError(s.adapter.Release(context.Background()))
	s.adapter = nil

	s.Equal(device.SessionIdle, sess.State())
	s.Equal(1, s.radio.StopCount(), "radio MUST be stopped with the last reference")
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func TestSettleExchanger(t *testing.T) {
	ex := session.SettleExchanger{Delay: 10 * time.Millisecond}
	if err := ex.Exchange(context.Background(), nil, "k"); err != nil {
		t.Fatalf("settle exchange MUST accept: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (session.SettleExchanger{Delay: time.Hour}).Exchange(ctx, nil, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled exchange MUST return ctx error, got %v", err)
	}
}
