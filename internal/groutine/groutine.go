// Package groutine starts named background goroutines for the BLE stack.
package groutine

import (
	"context"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a goroutine carrying a pprof "goroutine_name" label, so radio probers,
// scan runners and link monitors are identifiable in goroutine dumps.
//
//	groutine.Go(ctx, "scan-runner", logger, func(ctx context.Context) {
//	    // work
//	})
//
// A panic inside fn is recovered and logged when logger is non-nil; with a nil logger it propagates.
// If parent is nil, context.Background() is used.
func Go(parent context.Context, name string, logger *logrus.Logger, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		if logger != nil {
			defer func() {
				if r := recover(); r != nil {
					logger.WithFields(logrus.Fields{
						"goroutine": name,
						"panic":     r,
						"stack":     string(debug.Stack()),
					}).Error("Background goroutine panicked")
				}
			}()
		}
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
}

// Name retrieves the goroutine name from the context.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(goroutineNameKey).(string); ok {
		return s
	}
	return ""
}
