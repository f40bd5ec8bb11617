package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/registry"
)

type countingUpdater struct {
	calls atomic.Int32
	done  chan struct{}
}

func (u *countingUpdater) UpdateAll(context.Context, bool) (registry.UpdateReport, error) {
	if u.calls.Add(1) == 1 {
		close(u.done)
	}
	return registry.UpdateReport{}, nil
}

func TestScheduler_RunsOnStart(t *testing.T) {
	u := &countingUpdater{done: make(chan struct{})}

	s, err := New(context.Background(), u, time.Hour, true)
	require.NoError(t, err)
	s.Start()
	defer func() { assert.NoError(t, s.Shutdown()) }()

	select {
	case <-u.done:
	case <-time.After(5 * time.Second):
		t.Fatal("update did not run on start")
	}
}

func TestScheduler_WaitsForInterval(t *testing.T) {
	u := &countingUpdater{done: make(chan struct{})}

	s, err := New(context.Background(), u, time.Hour, false)
	require.NoError(t, err)
	s.Start()

	var next time.Time
	require.Eventually(t, func() bool {
		n, err := s.NextRun()
		next = n
		return err == nil && !n.IsZero()
	}, 5*time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)

	require.NoError(t, s.Shutdown())
	assert.Zero(t, u.calls.Load())
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	_, err := New(context.Background(), &countingUpdater{}, 0, true)
	assert.Error(t, err)
}
