// Package telemetry reads current measurements and historical series from a connected sensor.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/classifier"
	"github.com/srg/mstlink/internal/device"
)

// GATT identifiers of the measurements
const (
	EnvironmentalSensingService = "181a"
	TemperatureCharacteristic   = "2a6e"
	HumidityCharacteristic      = "2a6f"
	BatteryService              = "180f"
	BatteryLevelCharacteristic  = "2a19"
)

// DefaultName is used for sensors read without a known display name.
const DefaultName = "Minew Sensor"

// DefaultReadTimeout bounds a single characteristic read.
const DefaultReadTimeout = 5 * time.Second

// ConnectedDevice is a session the reader can pull measurements from.
type ConnectedDevice interface {
	ID() string
	Connection() (device.Connection, error)
}

// Reader reads temperature, humidity and battery level.
type Reader struct {
	readTimeout time.Duration
	logger      *logrus.Logger
}

func NewReader(readTimeout time.Duration, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Reader{readTimeout: readTimeout, logger: logger}
}

type measurement struct {
	name    string
	service string
	char    string
	decode  func([]byte) (string, error)
	field   func(*device.SensorData) *string
}

var measurements = []measurement{
	{"temperature", EnvironmentalSensingService, TemperatureCharacteristic, DecodeTemperature,
		func(d *device.SensorData) *string { return &d.Temperature }},
	{"humidity", EnvironmentalSensingService, HumidityCharacteristic, DecodeHumidity,
		func(d *device.SensorData) *string { return &d.Humidity }},
	{"battery", BatteryService, BatteryLevelCharacteristic, DecodeBattery,
		func(d *device.SensorData) *string { return &d.BatteryLevel }},
}

// ReadAll reads every measurement independently. A failed read sets its field to
// device.ReadError and a characteristic the sensor does not expose leaves it at
// device.NotAvailable. The only error is a session without a connection.
func (r *Reader) ReadAll(ctx context.Context, dev ConnectedDevice) (device.SensorData, error) {
	id := dev.ID()
	kind := classifier.Classify(classifier.Advertisement{ID: id}).Kind
	if kind == device.KindNone {
		kind = device.KindMST01
	}
	data := device.NewSensorData(id, DefaultName, kind)

	conn, err := dev.Connection()
	if err != nil {
		return data, err
	}

	for _, m := range measurements {
		field := m.field(&data)
		value, err := r.read(ctx, conn, m)
		switch {
		case err == nil:
			*field = value
		case isNotFound(err):
			r.logger.WithFields(logrus.Fields{
				"device_id":   id,
				"measurement": m.name,
			}).Debug("Characteristic not exposed")
		default:
			*field = device.ReadError
			r.logger.WithFields(logrus.Fields{
				"device_id":   id,
				"measurement": m.name,
				"error":       err,
			}).Warn("Failed to read measurement")
		}
	}
	return data, nil
}

func (r *Reader) read(ctx context.Context, conn device.Connection, m measurement) (string, error) {
	char, err := conn.GetCharacteristic(m.service, m.char)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", device.ErrReadFailure, err)
	}

	raw, err := char.Read(r.readTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", device.ErrReadFailure, m.name, err)
	}
	return m.decode(raw)
}

func isNotFound(err error) bool {
	var nf *device.NotFoundError
	return errors.As(err, &nf)
}
