package groutine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NamesContext(t *testing.T) {
	got := make(chan string, 1)
	Go(nil, "radio-prober", nil, func(ctx context.Context) {
		got <- Name(ctx)
	})

	select {
	case name := <-got:
		assert.Equal(t, "radio-prober", name)
	case <-time.After(time.Second):
		t.Fatal("goroutine MUST run")
	}
}

func TestGo_RecoversPanicWithLogger(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	done := make(chan struct{})
	Go(context.Background(), "panicky", logger, func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "goroutine MUST run")
	}
}

func TestName_Empty(t *testing.T) {
	assert.Equal(t, "", Name(context.Background()))
	assert.Equal(t, "", Name(nil)) //nolint:staticcheck // nil context is handled explicitly
}
