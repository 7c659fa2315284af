package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReadyRetriesUntilUp(t *testing.T) {
	p := &flakyPinger{failures: 2}
	err := WaitReady(context.Background(), p, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestWaitReadyGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 1000}
	err := WaitReady(context.Background(), p, 50*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Greater(t, p.calls, 1)
}
