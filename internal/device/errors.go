package device

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
	DialFailed       ConnectionState = "dial_failed"
	DiscoveryFailed  ConnectionState = "discovery_failed"
	InProgress       ConnectionState = "connect_in_progress"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected      = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected  = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized    = &ConnectionError{State: NotInitialized}
	ErrDialFailed        = &ConnectionError{State: DialFailed}
	ErrDiscoveryFailed   = &ConnectionError{State: DiscoveryFailed}
	ErrConnectInProgress = &ConnectionError{State: InProgress}
)

// Operation errors
var (
	ErrNotReady             = errors.New("bluetooth adapter is not powered on")
	ErrAlreadyScanning      = errors.New("scan already in progress")
	ErrScanFailure          = errors.New("scan failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrReadFailure          = errors.New("read failed")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrBluetoothOff         = errors.New("bluetooth is turned off")
	ErrTimeout              = errors.New("timeout")
	ErrUnsupported          = errors.New("unsupported")
)

// NewConnectionError wraps cause under the connection sentinel for state.
func NewConnectionError(state ConnectionState, cause error) error {
	if cause == nil {
		return &ConnectionError{State: state}
	}
	return fmt.Errorf("%w: %w", &ConnectionError{State: state}, cause)
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// IsConnectionError reports whether err carries any ConnectionError
func IsConnectionError(err error) bool {
	var cerr *ConnectionError
	return errors.As(err, &cerr)
}

// ContainsIgnoreCase checks substring case-insensitively
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
