package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
)

// Link is a live go-ble client connection to one peripheral
type Link struct {
	client  ble.Client
	address string
	logger  *logrus.Logger

	connMutex sync.RWMutex
	opMutex   sync.Mutex
	closed    bool
}

func newLink(client ble.Client, address string, logger *logrus.Logger) *Link {
	return &Link{
		client:  client,
		address: address,
		logger:  logger,
	}
}

func (l *Link) Address() string {
	return l.address
}

// Disconnected is closed by go-ble when the peripheral drops the link.
func (l *Link) Disconnected() <-chan struct{} {
	return l.client.Disconnected()
}

// activeClient returns the client while the link has not been cancelled locally.
func (l *Link) activeClient() (ble.Client, error) {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()
	if l.closed {
		return nil, device.ErrNotConnected
	}
	return l.client, nil
}

// DiscoverProfile discovers every service and characteristic and returns them as a device.Connection.
func (l *Link) DiscoverProfile(ctx context.Context) (device.Connection, error) {
	client, err := l.activeClient()
	if err != nil {
		return nil, err
	}

	type discoverResult struct {
		profile *ble.Profile
		err     error
	}
	resultCh := make(chan discoverResult, 1)

	go func() {
		l.opMutex.Lock()
		defer l.opMutex.Unlock()
		p, err := client.DiscoverProfile(true)
		resultCh <- discoverResult{profile: p, err: err}
	}()

	var bleProfile *ble.Profile
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(res.err))
		}
		bleProfile = res.profile
	case <-ctx.Done():
		return nil, fmt.Errorf("profile discovery interrupted: %w", ctx.Err())
	}

	profile := device.NewProfile()
	if bleProfile == nil {
		return profile, nil
	}

	for _, bleSvc := range bleProfile.Services {
		svc := profile.AddService(bleSvc.UUID.String())
		l.logger.WithFields(logrus.Fields{
			"address":      l.address,
			"service_uuid": svc.UUID(),
		}).Debug("Found service UUID")

		for _, bleChar := range bleSvc.Characteristics {
			svc.AddCharacteristic(newCharacteristic(bleChar, l))
		}
	}

	l.logger.WithFields(logrus.Fields{
		"address":         l.address,
		"services":        len(profile.Services()),
		"characteristics": profile.CharacteristicCount(),
	}).Debug("Profile discovered successfully")

	return profile, nil
}

// CancelConnection tears the link down. Safe to call more than once.
func (l *Link) CancelConnection() error {
	l.connMutex.Lock()
	if l.closed {
		l.connMutex.Unlock()
		return nil
	}
	l.closed = true
	l.connMutex.Unlock()

	return NormalizeError(l.client.CancelConnection())
}

var _ device.Link = (*Link)(nil)
