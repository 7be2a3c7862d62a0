package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStopReleasesBackgroundWorkers(t *testing.T) {
	m := &Manager{
		queue:  NewQueue(1),
		stopCh: make(chan struct{}),
	}
	m.running = true
	m.counterFlushTicker = time.NewTicker(time.Hour)
	m.wg.Add(1)
	go m.counterFlushWorker()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return, counter flush worker never saw the stop signal")
	}

	require.False(t, m.IsRunning())
	// Workers re-read stopCh each iteration; it must stay a closed channel,
	// not become nil, so a late select returns instead of parking forever.
	assert.NotNil(t, m.stopCh)
	select {
	case <-m.stopCh:
	default:
		t.Fatal("stop channel is not closed after Stop")
	}
}
