package database

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

func (f *flakyPinger) PingContext(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetryRecovers(t *testing.T) {
	p := &flakyPinger{failures: 1}
	require.NoError(t, pingWithRetry(context.Background(), p, 3))
	assert.Equal(t, 2, p.calls)
}

func TestPingWithRetryGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 10}
	require.Error(t, pingWithRetry(context.Background(), p, 1))
	assert.Equal(t, 1, p.calls)
}

func TestPingWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p := &flakyPinger{failures: 10}
	err := pingWithRetry(ctx, p, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.calls)
}
