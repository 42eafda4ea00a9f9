package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink/internal/classifier"
	"github.com/srg/mstlink/internal/device"
	"github.com/srg/mstlink/internal/groutine"
	"github.com/srg/mstlink/internal/ringchan"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Subscription is one running scan. Events are delivered until the scan ends, after which
// the events channel is closed and Done is closed.
type Subscription struct {
	scanner *Scanner
	radio   device.Radio
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logrus.Logger

	events *ringchan.RingChannel[MatchEvent]
	done   chan struct{}
	// inCallback counts OnMatch calls in flight; Stop must not wait on the runner from there.
	inCallback atomic.Int32

	mu      sync.Mutex
	devices *orderedmap.OrderedMap[string, device.SensorData]
	err     error
}

func newSubscription(ctx context.Context, cancel context.CancelFunc, s *Scanner, radio device.Radio) *Subscription {
	return &Subscription{
		scanner: s,
		radio:   radio,
		ctx:     ctx,
		cancel:  cancel,
		logger:  s.logger,
		events:  ringchan.New[MatchEvent](s.opts.EventBuffer),
		done:    make(chan struct{}),
		devices: orderedmap.New[string, device.SensorData](),
	}
}

func (sub *Subscription) run() {
	groutine.Go(sub.ctx, "scan-runner", sub.logger, func(ctx context.Context) {
		err := sub.radio.Scan(ctx, sub.scanner.opts.AllowDuplicates, sub.handleAdvertisement)
		sub.finish(err)
	})
}

func (sub *Subscription) finish(err error) {
	sub.cancel()

	sub.mu.Lock()
	if !isStopError(err) {
		sub.err = fmt.Errorf("%w: %w", device.ErrScanFailure, err)
	}
	count := sub.devices.Len()
	sub.mu.Unlock()

	if isStopError(err) {
		sub.logger.WithField("device_count", count).Info("BLE scan completed")
	} else {
		sub.logger.WithFields(logrus.Fields{
			"device_count": count,
			"error":        err,
		}).Error("BLE scan failed")
	}

	sub.scanner.finished(sub)
	sub.events.Close()
	close(sub.done)
}

// handleAdvertisement classifies adv and records matches. A panic is contained to the
// advertisement that caused it.
func (sub *Subscription) handleAdvertisement(adv device.Advertisement) {
	defer func() {
		if r := recover(); r != nil {
			sub.logger.WithField("panic", r).Error("Failed to process advertisement")
		}
	}()

	if adv == nil || adv.Addr() == "" {
		return
	}

	ca := classifier.FromDevice(adv)
	if !sub.scanner.included(ca.ID) {
		return
	}

	res := classifier.ClassifyWith(sub.scanner.rules, ca)
	if res.WeakHit != "" {
		sub.logger.WithFields(logrus.Fields{
			"address": ca.ID,
			"rssi":    ca.RSSI,
			"rule":    res.WeakHit,
		}).Debug("Possible sensor rejected by weak rule")
	}
	if !res.Target() {
		return
	}

	data := device.NewSensorData(ca.ID, classifier.DisplayName(ca, res.Kind), res.Kind)

	sub.mu.Lock()
	_, existed := sub.devices.Set(ca.ID, data)
	sub.mu.Unlock()

	event := MatchEvent{Type: EventNew, Device: data, RSSI: ca.RSSI, Rule: res.Rule}
	if existed {
		event.Type = EventUpdated
	} else {
		sub.logger.WithFields(logrus.Fields{
			"device":  data.Name,
			"address": data.ID,
			"type":    data.Type,
			"rssi":    ca.RSSI,
			"rule":    res.Rule,
		}).Info("Discovered sensor")
	}

	if onMatch := sub.scanner.opts.OnMatch; onMatch != nil {
		sub.inCallback.Add(1)
		defer sub.inCallback.Add(-1)
		onMatch(event)
	}
	sub.events.Send(event)
}

// Events returns match events. The channel is closed when the scan ends; a slow reader
// loses the oldest events first.
func (sub *Subscription) Events() <-chan MatchEvent {
	return sub.events.C()
}

// Done is closed when the scan has ended.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Err returns the radio failure that ended the scan, wrapped in ErrScanFailure.
// It is nil while running and after a stop or deadline.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// Devices returns the matched sensors in discovery order, each with its latest data.
func (sub *Subscription) Devices() []device.SensorData {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	result := make([]device.SensorData, 0, sub.devices.Len())
	for pair := sub.devices.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// Stop cancels the scan and waits for it to end. Safe to call more than once.
// Called while an OnMatch callback runs, it only cancels; Done closes once the callback returns.
func (sub *Subscription) Stop() {
	sub.cancel()
	if sub.inCallback.Load() > 0 {
		return
	}
	<-sub.done
}
