package telemetry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/device"
)

// Source produces the measurement recorded at timestamp ts.
type Source interface {
	Point(ctx context.Context, deviceID string, ts int64) (temperature, humidity float64, err error)
}

// SyntheticSource generates plausible indoor values: 20-25 °C and 40-60 %RH.
type SyntheticSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource creates a source. Equal seeds give equal series.
func NewSyntheticSource(seed uint64) *SyntheticSource {
	return &SyntheticSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SyntheticSource) Point(_ context.Context, _ string, _ int64) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 20 + s.rng.Float64()*5, 40 + s.rng.Float64()*20, nil
}

// HistoryOptions configures the retriever
type HistoryOptions struct {
	Steps     int           `default:"100"`
	StepDelay time.Duration `default:"50ms"`
}

func DefaultHistoryOptions() *HistoryOptions {
	opts := &HistoryOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// HistoryDevice is a session the retriever can fetch a series from.
type HistoryDevice interface {
	ID() string
	Done() <-chan struct{}
}

// Retriever fetches evenly spaced historical points.
type Retriever struct {
	steps  int
	delay  time.Duration
	source Source
	logger *logrus.Logger
}

// NewRetriever creates a retriever. A nil source uses a time-seeded SyntheticSource.
func NewRetriever(opts *HistoryOptions, source Source, logger *logrus.Logger) *Retriever {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultHistoryOptions()
	}
	if source == nil {
		source = NewSyntheticSource(uint64(time.Now().UnixNano()))
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = 100
	}
	return &Retriever{
		steps:  steps,
		delay:  opts.StepDelay,
		source: source,
		logger: logger,
	}
}

// FetchRange returns one point per step across [start, end] (epoch seconds), ascending.
//
// onProgress, when set, gets floor(i*100/steps) before step i and 100 after the last step.
// Cancellation of ctx or the end of the session stops the fetch between steps; the points
// gathered so far are returned with the cause and no further progress is reported.
func (r *Retriever) FetchRange(ctx context.Context, dev HistoryDevice, start, end int64, onProgress func(int)) ([]device.HistoricalPoint, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end %d is before start %d", end, start)
	}
	if onProgress == nil {
		onProgress = func(int) {}
	}

	logger := r.logger.WithFields(logrus.Fields{
		"device_id": dev.ID(),
		"start":     start,
		"end":       end,
		"steps":     r.steps,
	})
	logger.Debug("Fetching historical data")

	span := end - start
	points := make([]device.HistoricalPoint, 0, r.steps)

	for i := 0; i < r.steps; i++ {
		if err := r.interrupted(ctx, dev); err != nil {
			logger.WithField("points", len(points)).Info("Historical fetch interrupted")
			return points, err
		}

		onProgress(i * 100 / r.steps)

		if r.delay > 0 {
			if err := r.wait(ctx, dev); err != nil {
				logger.WithField("points", len(points)).Info("Historical fetch interrupted")
				return points, err
			}
		}

		ts := start + span*int64(i)/int64(r.steps)
		temperature, humidity, err := r.source.Point(ctx, dev.ID(), ts)
		if err != nil {
			return points, fmt.Errorf("%w: historical point %d: %w", device.ErrReadFailure, i, err)
		}
		points = append(points, device.HistoricalPoint{
			Timestamp:   ts,
			Temperature: temperature,
			Humidity:    humidity,
		})
	}

	onProgress(100)
	logger.WithField("points", len(points)).Debug("Historical data fetched")
	return points, nil
}

func (r *Retriever) interrupted(ctx context.Context, dev HistoryDevice) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-dev.Done():
		return fmt.Errorf("%w: session %s ended", device.ErrNotConnected, dev.ID())
	default:
		return nil
	}
}

func (r *Retriever) wait(ctx context.Context, dev HistoryDevice) error {
	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-dev.Done():
		return fmt.Errorf("%w: session %s ended", device.ErrNotConnected, dev.ID())
	}
}
