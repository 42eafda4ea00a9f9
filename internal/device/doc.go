// Package device defines the radio, link and GATT abstractions the MST session
// stack is built on, together with the shared sensor data model and error taxonomy.
//
// The package is transport agnostic:
//   - Radio owns power state, discovery scans and dialing
//   - Link is one live connection to a peripheral
//   - Connection is the discovered GATT service tree of a link
//   - SensorData and HistoricalPoint are the values handed to callers
//
// The go-ble backed implementation lives in the go-ble subpackage.
package device
