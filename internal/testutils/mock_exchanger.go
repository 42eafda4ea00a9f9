//go:build test

package testutils

import (
	"context"

	"github.com/srg/mstlink/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockExchanger is a testify mock for the session key exchanger.
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Exchange(ctx context.Context, conn device.Connection, key string) error {
	args := m.Called(ctx, conn, key)
	return args.Error(0)
}
