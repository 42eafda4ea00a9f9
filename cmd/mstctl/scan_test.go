//go:build test

package main

import (
	"strings"
	"testing"

	"github.com/srg/mstlink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ScanTestSuite struct {
	CommandTestSuite
}

func (s *ScanTestSuite) TestScanTable() {
	// GOAL: Only sensors are listed, strongest signal first, with the rule that matched them

	stdout, _, err := s.ExecuteCommand("scan", "-d", "100ms")
	s.Require().NoError(err, "scan MUST succeed")

	testutils.NewTextAsserter(s.T()).Assert(stdout, `
NAME              TYPE   ADDRESS            RSSI     MATCHED BY
`+strings.Repeat("-", 72)+`
MST01-7F21        MST01  C3:00:00:12:34:56  -60 dBm  name-keyword
MST03 - AB:CD:EF  MST03  C3:00:03:AB:CD:EF  -70 dBm  address-prefix
`)
}

func (s *ScanTestSuite) TestScanJSON() {
	stdout, _, err := s.ExecuteCommand("scan", "-d", "100ms", "-f", "json")
	s.Require().NoError(err, "scan MUST succeed")

	testutils.NewJSONAsserter(s.T()).Assert(stdout, `[
		{"id": "C3:00:00:12:34:56", "name": "MST01-7F21", "type": "MST01", "rssi": -60, "rule": "name-keyword", "temperature": "N/A"},
		{"id": "C3:00:03:AB:CD:EF", "name": "MST03 - AB:CD:EF", "type": "MST03", "rssi": -70, "rule": "address-prefix"}
	]`)
}

func (s *ScanTestSuite) TestScanBlockList() {
	stdout, _, err := s.ExecuteCommand("scan", "-d", "100ms", "-f", "json", "--block", TestMST03Address)
	s.Require().NoError(err, "scan MUST succeed")

	testutils.NewJSONAsserter(s.T()).Assert(stdout, `[{"id": "C3:00:00:12:34:56"}]`)
}

func (s *ScanTestSuite) TestScanNothingFound() {
	s.Radio = testutils.NewRadioBuilder().Build()

	stdout, _, err := s.ExecuteCommand("scan", "-d", "50ms")
	s.Require().NoError(err, "an empty scan MUST NOT fail")
	s.Equal("No sensors discovered\n", stdout)
}

func (s *ScanTestSuite) TestScanFormatFromConfig() {
	path := s.WriteConfig("output_format: json\n")

	stdout, _, err := s.ExecuteCommand("scan", "-d", "50ms", "--config", path)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(strings.TrimSpace(stdout), "["), "config output_format MUST select JSON")
}

func (s *ScanTestSuite) TestScanInvalidFormat() {
	_, _, err := s.ExecuteCommand("scan", "-f", "xml")
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid format 'xml'")
	s.Zero(s.Radio.ScanCount(), "radio MUST NOT be touched on invalid input")
}

func (s *ScanTestSuite) TestScanReleasesRadio() {
	_, _, err := s.ExecuteCommand("scan", "-d", "50ms")
	s.Require().NoError(err)
	s.Equal(1, s.Radio.StopCount(), "radio MUST be released when the command ends")
}

func TestScanTestSuite(t *testing.T) {
	suite.Run(t, new(ScanTestSuite))
}
