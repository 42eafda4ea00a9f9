package goble

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/mstlink/internal/bledb"
	"github.com/srg/mstlink/internal/device"
)

const (
	// DefaultReadTimeout is the default timeout for characteristic read operations.
	// This prevents indefinite blocking if a device becomes unresponsive during a read.
	DefaultReadTimeout = 5 * time.Second

	// DefaultBLEWriteChunkSize is the maximum number of bytes to write in a single BLE operation.
	// BLE 4.0/4.1 spec defines ATT_MTU of 23 bytes (20 bytes payload after ATT header overhead).
	DefaultBLEWriteChunkSize = 20

	// DefaultBLEWriteDelay is the delay between consecutive write chunks.
	DefaultBLEWriteDelay = 10 * time.Millisecond
)

// BLECharacteristic is a discovered characteristic bound to the link it was found on.
type BLECharacteristic struct {
	uuid      string
	knownName string
	BLEChar   *ble.Characteristic
	link      *Link
}

func newCharacteristic(c *ble.Characteristic, link *Link) *BLECharacteristic {
	rawUUID := c.UUID.String()
	return &BLECharacteristic{
		uuid:      device.NormalizeUUID(rawUUID),
		knownName: bledb.LookupCharacteristic(rawUUID),
		BLEChar:   c,
		link:      link,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

// Read reads the current value of the characteristic from the device with the specified timeout.
// A non-positive timeout falls back to DefaultReadTimeout.
func (c *BLECharacteristic) Read(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	client, err := c.link.activeClient()
	if err != nil {
		return nil, fmt.Errorf("characteristic %s: %w", c.uuid, err)
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		// The radio is half-duplex: one ATT request in flight per link
		c.link.opMutex.Lock()
		defer c.link.opMutex.Unlock()
		data, err := client.ReadCharacteristic(c.BLEChar)
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(result.err))
		}
		return result.data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("reading characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

// Write writes data in ATT-sized chunks; the whole write is bounded by timeout.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	client, err := c.link.activeClient()
	if err != nil {
		return fmt.Errorf("characteristic %s: %w", c.uuid, err)
	}

	payload := append([]byte(nil), data...)
	errCh := make(chan error, 1)

	go func() {
		c.link.opMutex.Lock()
		defer c.link.opMutex.Unlock()
		for len(payload) > 0 {
			n := len(payload)
			if n > DefaultBLEWriteChunkSize {
				n = DefaultBLEWriteChunkSize
			}
			if err := client.WriteCharacteristic(c.BLEChar, payload[:n], !withResponse); err != nil {
				errCh <- NormalizeError(err)
				return
			}
			payload = payload[n:]
			if len(payload) > 0 {
				time.Sleep(DefaultBLEWriteDelay)
			}
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s: %w", c.uuid, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("writing characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

var _ device.Characteristic = (*BLECharacteristic)(nil)
