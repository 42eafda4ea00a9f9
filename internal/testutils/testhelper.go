//go:build test

package testutils

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper whose logger is silent unless MSTLINK_TEST_LOG is set.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{
		T:      t,
		Logger: NewTestLogger(),
	}
}

// NewTestLogger returns a debug-level logger, discarded unless MSTLINK_TEST_LOG is set.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	if os.Getenv("MSTLINK_TEST_LOG") == "" {
		logger.SetOutput(io.Discard)
	}
	return logger
}
