//go:build test

package main

import (
	"errors"
	"testing"

	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ReadTestSuite struct {
	CommandTestSuite
}

func (s *ReadTestSuite) TestReadTable() {
	stdout, _, err := s.ExecuteCommand("read", "c3:00:00:12:34:56")
	s.Require().NoError(err, "read MUST succeed")

	testutils.NewTextAsserter(s.T()).Assert(stdout, `
Device:       Minew Sensor
Type:         MST01
Address:      C3:00:00:12:34:56
Temperature:  10.00°C
Humidity:     50.00%
Battery:      90%
`)
	s.Equal(1, s.Radio.LastLink().CancelCount(), "read MUST disconnect")
}

func (s *ReadTestSuite) TestReadByLabelJSON() {
	stdout, _, err := s.ExecuteCommand("read", "MINEW MST03 C3-00-03-AB-CD-EF", "-f", "json")
	s.Require().NoError(err, "read MUST succeed")

	testutils.NewJSONAsserter(s.T()).Assert(stdout, `{
		"id": "C3:00:03:AB:CD:EF",
		"type": "MST03",
		"temperature": "21.00°C",
		"humidity": "N/A",
		"battery_level": "100%"
	}`)
}

func (s *ReadTestSuite) TestReadWithoutAddress() {
	_, _, err := s.ExecuteCommand("read", "MST01")
	s.Require().Error(err)
	s.Equal("no MAC address found in the label text", FormatUserError(err))
	s.Zero(s.Radio.DialCount())
}

func (s *ReadTestSuite) TestReadByPeripheralUUID() {
	const peripheralID = "5D3E7C0A-1B2F-4C8D-9E6A-0F1B2C3D4E5F"
	s.Radio = testutils.NewRadioBuilder().
		WithPeripheral(testutils.NewPeripheralBuilder(peripheralID).
			WithSensorProfile([]byte{0xE8, 0x03}, []byte{0x88, 0x13}, []byte{0x5A}).
			Build()).
		Build()

	stdout, _, err := s.ExecuteCommand("read", peripheralID)
	s.Require().NoError(err, "a peripheral UUID MUST be accepted as the device id")
	s.Contains(stdout, "Temperature:  10.00°C")
	s.Equal(1, s.Radio.DialCount())
}

func (s *ReadTestSuite) TestReadDialFailure() {
	s.Radio = testutils.NewRadioBuilder().
		WithPeripheral(testutils.NewPeripheralBuilder(TestMST01Address).
			WithDialError(errors.New("page timeout")).
			Build()).
		Build()

	_, _, err := s.ExecuteCommand("read", TestMST01Address)
	s.Require().Error(err)
	s.True(device.IsConnectionState(err, device.DialFailed), "dial errors MUST surface as dial_failed")
}

func (s *ReadTestSuite) TestReadAdapterOff() {
	s.Radio = s.DefaultRadio().WithState(device.StateUnauthorized).Build()

	_, _, err := s.ExecuteCommand("read", TestMST01Address)
	s.Require().ErrorIs(err, device.ErrNotReady)
}

func (s *ReadTestSuite) TestRequireAuthFlag() {
	s.Exchanger = &testutils.MockExchanger{}
	s.Exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("rejected"))

	stdout, _, err := s.ExecuteCommand("read", TestMST01Address)
	s.Require().NoError(err, "rejected keys MUST NOT fail without --require-auth")
	s.Contains(stdout, "10.00°C")

	resetFlags(rootCmd)
	_, _, err = s.ExecuteCommand("read", TestMST01Address, "--require-auth")
	s.Require().ErrorIs(err, device.ErrAuthenticationFailed)
}

func TestReadTestSuite(t *testing.T) {
	suite.Run(t, new(ReadTestSuite))
}
