package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingChannel_OverwritesOldest(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}

	assert.Equal(t, []int{7, 8, 9}, got, "only the newest values MUST survive")
	assert.Equal(t, Stats{Sent: 10, Dropped: 7}, rc.Stats())
}

func TestRingChannel_SendReportsOverwrite(t *testing.T) {
	rc := New[string](1)
	assert.False(t, rc.Send("a"))
	assert.True(t, rc.Send("b"), "second send into a full buffer MUST overwrite")
	assert.Equal(t, 1, rc.Len())
	assert.Equal(t, 1, rc.Cap())
}

func TestRingChannel_CloseIsIdempotentAndDropsLateSends(t *testing.T) {
	rc := New[int](2)
	rc.Send(1)
	rc.Close()
	rc.Close()

	assert.True(t, rc.Closed())
	assert.False(t, rc.Send(2), "send after close MUST be ignored")

	v, ok := <-rc.C()
	require.True(t, ok, "buffered value MUST remain readable after close")
	assert.Equal(t, 1, v)

	_, ok = <-rc.C()
	assert.False(t, ok)
}

func TestRingChannel_ConcurrentSendAndClose(t *testing.T) {
	rc := New[int](4)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rc.Send(i)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range rc.C() {
		}
	}()

	wg.Wait()
	rc.Close()
	<-done

	stats := rc.Stats()
	assert.Equal(t, int64(4000), stats.Sent)
	assert.LessOrEqual(t, stats.Dropped, stats.Sent)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
