package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerWaitHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Lock(context.Background(), lockBundleGraph)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, lockBundleGraph)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// other keys are independent
	releaseOther, err := l.Lock(context.Background(), lockCollectionGraph)
	require.NoError(t, err)
	releaseOther()

	release()
	release()

	again, err := l.Lock(context.Background(), lockBundleGraph)
	require.NoError(t, err)
	again()
}

func TestLocalLockerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalLocker().Lock(ctx, lockBundleGraph)
	assert.True(t, errors.Is(err, context.Canceled))
}
