package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
)

type listerFunc func(ctx context.Context, projectID int) ([]model.Task, error)

func (f listerFunc) ListTasks(ctx context.Context, projectID int) ([]model.Task, error) {
	return f(ctx, projectID)
}

func TestRefresher_RefreshDeliversBoard(t *testing.T) {
	want := []model.Task{task(1, model.StatusTodo, 0)}
	r := NewRefresher(listerFunc(func(_ context.Context, projectID int) ([]model.Task, error) {
		assert.Equal(t, 3, projectID)
		return want, nil
	}), 3, time.Hour, quietLogger())

	wait := r.Start()
	require.NotNil(t, wait)
	defer r.Stop()

	assert.Nil(t, r.Start())

	r.Refresh()
	msg, ok := wait().(BoardLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, 3, msg.ProjectID)
	assert.Equal(t, want, msg.Tasks)
	assert.NoError(t, msg.Error)

	assert.Eventually(t, func() bool {
		return r.Status().State == RefreshIdle && !r.Status().LastLoad.IsZero()
	}, time.Second, 10*time.Millisecond)
}

func TestRefresher_StampsBeforeFetch(t *testing.T) {
	var issued atomic.Uint64
	issued.Store(5)
	r := NewRefresher(listerFunc(func(context.Context, int) ([]model.Task, error) {
		// A mutation issued while the request is on the wire.
		issued.Add(1)
		return nil, nil
	}), 1, time.Hour, quietLogger())
	r.SetStamp(issued.Load)

	wait := r.Start()
	defer r.Stop()

	r.Refresh()
	msg, ok := wait().(BoardLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, uint64(5), msg.Since)
	assert.Equal(t, uint64(6), issued.Load())
}

func TestRefresher_ReportsErrors(t *testing.T) {
	r := NewRefresher(listerFunc(func(context.Context, int) ([]model.Task, error) {
		return nil, fmt.Errorf("listing tasks: %w", session.ErrReauthenticate)
	}), 1, time.Hour, quietLogger())

	wait := r.Start()
	defer r.Stop()

	r.Refresh()
	_, ok := wait().(ReauthMsg)
	assert.True(t, ok)
	assert.Equal(t, RefreshError, r.Status().State)
}

func TestRefresher_StopReleasesWaiters(t *testing.T) {
	r := NewRefresher(listerFunc(func(context.Context, int) ([]model.Task, error) {
		return nil, nil
	}), 1, time.Hour, quietLogger())

	wait := r.Start()
	r.Stop()
	assert.Nil(t, wait())
}
