package device

// AdapterState is the power state of the BLE radio as pushed by the platform stack.
type AdapterState int

const (
	StateUnknown AdapterState = iota
	StatePoweredOff
	StatePoweredOn
	StateResetting
	StateUnsupported
	StateUnauthorized
)

func (s AdapterState) String() string {
	switch s {
	case StatePoweredOff:
		return "powered_off"
	case StatePoweredOn:
		return "powered_on"
	case StateResetting:
		return "resetting"
	case StateUnsupported:
		return "unsupported"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Terminal reports whether the radio can never reach StatePoweredOn without user action
// outside the process (missing hardware, denied permission).
func (s AdapterState) Terminal() bool {
	return s == StateUnsupported || s == StateUnauthorized
}

// SessionState is the position of a device session in the connect pipeline.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionConnecting
	SessionConnected
	SessionDiscovering
	SessionAuthenticating
	SessionReady
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionDiscovering:
		return "discovering"
	case SessionAuthenticating:
		return "authenticating"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	default:
		return "idle"
	}
}

// InFlight reports whether the session is on its way to SessionReady.
func (s SessionState) InFlight() bool {
	switch s {
	case SessionConnecting, SessionConnected, SessionDiscovering, SessionAuthenticating:
		return true
	}
	return false
}
