package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestStartPurgeSweeperRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &countingPurger{err: errors.New("write failed")}
	StartPurgeSweeper(ctx, p, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(30 * time.Millisecond)
	settled := p.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, p.calls.Load())
}
