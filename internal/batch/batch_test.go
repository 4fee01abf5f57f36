package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_KeepsOrderAndBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	results := Run(context.Background(), 3, 20, func(_ context.Context, i int) int {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return i * i
	}, func(int, error) int { return -1 })

	for i, got := range results {
		assert.Equal(t, i*i, got)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_SkipsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, 2, 3, func(context.Context, int) error {
		return nil
	}, func(_ int, err error) error { return err })

	for _, err := range results {
		assert.True(t, errors.Is(err, context.Canceled))
	}
}
