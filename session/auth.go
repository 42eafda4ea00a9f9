package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
)

// DefaultKeys are the pre-shared keys tried in order.
var DefaultKeys = []string{"minewtech1234567", "3141592653589793"}

// Exchanger runs one key-exchange round against a connected sensor. A nil error means the
// sensor accepted the key.
type Exchanger interface {
	Exchange(ctx context.Context, conn device.Connection, key string) error
}

const (
	// DefaultSettleDelay is how long SettleExchanger waits for the sensor to accept a key.
	DefaultSettleDelay = 500 * time.Millisecond
	// DefaultAuthRoundTimeout bounds a key write when the round carries no deadline.
	DefaultAuthRoundTimeout = 2 * time.Second
)

// SettleExchanger accepts every key after a settle delay. The sensors accept reads without a
// handshake, so the round only gives the firmware time to finish its post-connect setup.
type SettleExchanger struct {
	Delay time.Duration
}

func (e SettleExchanger) Exchange(ctx context.Context, _ device.Connection, _ string) error {
	delay := e.Delay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CharacteristicExchanger writes the key to a GATT characteristic. The key counts as
// accepted when the write succeeds; the write is bounded by the round deadline.
type CharacteristicExchanger struct {
	Service        string
	Characteristic string
	WithResponse   bool
}

func (e CharacteristicExchanger) Exchange(ctx context.Context, conn device.Connection, key string) error {
	char, err := conn.GetCharacteristic(e.Service, e.Characteristic)
	if err != nil {
		return fmt.Errorf("auth characteristic: %w", err)
	}

	timeout := DefaultAuthRoundTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	return char.Write([]byte(key), e.WithResponse, timeout)
}

// authenticate tries each key in order, each round bounded by the round timeout, and stops
// at the first accepted key.
func (m *Manager) authenticate(ctx context.Context, s *Session, conn device.Connection) bool {
	for i, key := range m.opts.Keys {
		roundCtx, cancel := context.WithTimeout(ctx, m.opts.AuthRoundTimeout)
		err := m.exchanger.Exchange(roundCtx, conn, key)
		cancel()

		entry := s.logger.WithField("key_index", i)
		if err == nil {
			entry.Debug("Key accepted")
			return true
		}
		entry.WithField("error", err).Debug("Key rejected")

		if ctx.Err() != nil {
			return false
		}
	}

	s.logger.WithFields(logrus.Fields{
		"keys": len(m.opts.Keys),
	}).Warn("Authentication failed with every key")
	return false
}
