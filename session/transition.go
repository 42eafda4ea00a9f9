package session

import (
	"errors"
	"time"

	"github.com/srg/mstlink/internal/device"
)

// ErrInvalidTransition is returned when a state change is not in the transition table.
var ErrInvalidTransition = errors.New("invalid session transition")

// Transition is one state change of a session.
type Transition struct {
	DeviceID string              `json:"device_id"`
	From     device.SessionState `json:"-"`
	To       device.SessionState `json:"-"`
	Detail   string              `json:"detail,omitempty"`
	Err      error               `json:"-"`
	At       time.Time           `json:"at"`
}

// Details carried by transitions
const (
	DetailAuthenticated        = "authenticated"
	DetailAuthenticationFailed = "authentication_failed"
	DetailDisconnected         = "disconnected"
	DetailLinkLost             = "link_lost"
)

var transitions = map[device.SessionState][]device.SessionState{
	device.SessionIdle:           {device.SessionConnecting},
	device.SessionConnecting:     {device.SessionConnected, device.SessionFailed, device.SessionIdle},
	device.SessionConnected:      {device.SessionDiscovering, device.SessionFailed, device.SessionIdle},
	device.SessionDiscovering:    {device.SessionAuthenticating, device.SessionFailed, device.SessionIdle},
	device.SessionAuthenticating: {device.SessionReady, device.SessionFailed, device.SessionIdle},
	device.SessionReady:          {device.SessionIdle},
}

// allowed reports whether from -> to is in the transition table.
func allowed(from, to device.SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// terminal reports whether reaching state ends the session.
func terminal(state device.SessionState) bool {
	return state == device.SessionIdle || state == device.SessionFailed
}
