package device

// Kind identifies the sensor model.
type Kind int

const (
	KindNone Kind = iota
	KindMST01
	KindMST03
)

func (k Kind) String() string {
	switch k {
	case KindMST01:
		return "MST01"
	case KindMST03:
		return "MST03"
	default:
		return "none"
	}
}

// MarshalText lets Kind render as its model name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinel measurement values
const (
	NotAvailable = "N/A"
	ReadError    = "Error"
)

// SensorData is the caller-facing view of one sensor. Identity is ID; the measurement
// fields hold either a formatted value or one of the sentinels.
type SensorData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         Kind   `json:"type"`
	MACAddress   string `json:"mac_address"`
	BatteryLevel string `json:"battery_level"`
	Temperature  string `json:"temperature"`
	Humidity     string `json:"humidity"`
}

// NewSensorData returns a SensorData with every measurement set to NotAvailable.
func NewSensorData(id, name string, kind Kind) SensorData {
	return SensorData{
		ID:           id,
		Name:         name,
		Type:         kind,
		MACAddress:   id,
		BatteryLevel: NotAvailable,
		Temperature:  NotAvailable,
		Humidity:     NotAvailable,
	}
}

// HistoricalPoint is one sample of a historical series.
type HistoricalPoint struct {
	Timestamp   int64   `json:"timestamp"` // epoch seconds
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}
