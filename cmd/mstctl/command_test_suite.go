//go:build test

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Test device addresses
const (
	TestMST01Address = "C3:00:00:12:34:56"
	TestMST03Address = "C3:00:03:AB:CD:EF"
)

// CommandTestSuite runs mstctl commands against a fake radio.
// All cmd/mstctl test suites embed it.
type CommandTestSuite struct {
	suite.Suite
	Helper    *testutils.TestHelper
	Radio     *testutils.FakeRadio
	Exchanger *testutils.MockExchanger

	origNewClient func(mstlink.Options, *logrus.Logger) *mstlink.Client
	origNow       func() time.Time
	origNoColor   bool
}

func (s *CommandTestSuite) SetupTest() {
	s.Helper = testutils.NewTestHelper(s.T())
	s.Exchanger = &testutils.MockExchanger{}
	s.Exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.Radio = s.DefaultRadio().Build()

	s.origNewClient = newClient
	s.origNow = now
	s.origNoColor = color.NoColor
	color.NoColor = true

	newClient = func(opts mstlink.Options, _ *logrus.Logger) *mstlink.Client {
		radio := s.Radio
		opts.Handle = nil
		opts.RadioFactory = func() (device.Radio, error) { return radio, nil }
		opts.Exchanger = s.Exchanger
		opts.History.StepDelay = time.Millisecond
		return mstlink.New(opts, s.Helper.Logger)
	}
}

func (s *CommandTestSuite) TearDownTest() {
	newClient = s.origNewClient
	now = s.origNow
	color.NoColor = s.origNoColor
	resetFlags(rootCmd)
}

// DefaultRadio advertises one sensor of each kind plus an unrelated device; both sensors
// accept connections.
func (s *CommandTestSuite) DefaultRadio() *testutils.RadioBuilder {
	return testutils.NewRadioBuilder().
		WithAdvertisements(
			testutils.CreateMockAdvertisement("MST01-7F21", TestMST01Address, -60).Build(),
			testutils.CreateMockAdvertisement("", TestMST03Address, -70).Build(),
			testutils.CreateMockAdvertisement("Headphones", "AA:BB:CC:DD:EE:FF", -40).Build(),
		).
		WithPeripheral(
			testutils.NewPeripheralBuilder(TestMST01Address).
				WithSensorProfile([]byte{0xE8, 0x03}, []byte{0x88, 0x13}, []byte{0x5A}).
				Build(),
			testutils.NewPeripheralBuilder(TestMST03Address).
				WithSensorProfile([]byte{0x34, 0x08}, nil, []byte{0x64}).
				Build(),
		)
}

// WriteConfig stores a config file for --config and returns its path.
func (s *CommandTestSuite) WriteConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "mstctl.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600), "config write MUST succeed")
	return path
}

// ExecuteCommand runs mstctl with args and returns stdout, stderr and the command error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
