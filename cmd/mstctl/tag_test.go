//go:build test

package main

import (
	"testing"

	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type TagTestSuite struct {
	CommandTestSuite
}

func (s *TagTestSuite) TestTagTable() {
	stdout, _, err := s.ExecuteCommand("tag", "MINEW:MST01:C3:00:00:12:34:56")
	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).Assert(stdout, `
Type:     MST01
Address:  C3:00:00:12:34:56
`)
}

func (s *TagTestSuite) TestTagSplitArgsJSON() {
	stdout, _, err := s.ExecuteCommand("tag", "MST03", "c3-00-03-ab-cd-ef", "-f", "json")
	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(stdout, `{"type": "MST03", "address": "C3:00:03:AB:CD:EF"}`)
}

func (s *TagTestSuite) TestTagWithoutAddress() {
	_, _, err := s.ExecuteCommand("tag", "MST03")
	s.Require().ErrorIs(err, mstlink.ErrNoAddress)
}

func (s *TagTestSuite) TestTagNeverTouchesRadio() {
	_, _, err := s.ExecuteCommand("tag", "C3:00:00:12:34:56")
	s.Require().NoError(err)
	s.Zero(s.Radio.ScanCount())
	s.Zero(s.Radio.DialCount())
}

func TestTagTestSuite(t *testing.T) {
	suite.Run(t, new(TagTestSuite))
}
