package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civic-reporting-api/internal/features"
)

type fakeJobs struct {
	calls     atomic.Int32
	lastLimit atomic.Int32
	processed int
	failed    int
	err       error
	panicMsg  string
}

func (f *fakeJobs) ProcessPending(_ context.Context, limit int) (int, int, error) {
	f.calls.Add(1)
	f.lastLimit.Store(int32(limit))
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.processed, f.failed, f.err
}

func enabledFlags() *features.Manager {
	return features.NewDefaultManager(features.Defaults{JobWorker: true})
}

func TestRunOnce_ProcessesBatch(t *testing.T) {
	jobs := &fakeJobs{processed: 3, failed: 1}
	w := New(jobs, enabledFlags(), Config{Interval: time.Second, BatchSize: 5})

	processed, failed, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, int32(5), jobs.lastLimit.Load())
}

func TestRunOnce_FlagDisabled(t *testing.T) {
	jobs := &fakeJobs{}
	w := New(jobs, features.NewDefaultManager(features.Defaults{}), Config{})

	_, _, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(0), jobs.calls.Load())
}

func TestRunOnce_Error(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("store unavailable")}
	w := New(jobs, enabledFlags(), Config{})

	_, _, err := w.RunOnce(context.Background())

	assert.EqualError(t, err, "store unavailable")
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	jobs := &fakeJobs{panicMsg: "boom"}
	w := New(jobs, enabledFlags(), Config{})

	var err error
	assert.NotPanics(t, func() {
		_, _, err = w.RunOnce(context.Background())
	})
	assert.ErrorContains(t, err, "boom")
}

func TestNew_Defaults(t *testing.T) {
	w := New(&fakeJobs{}, nil, Config{})

	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, 10, w.batchSize)
}

func TestStart_StopsOnCancel(t *testing.T) {
	jobs := &fakeJobs{}
	w := New(jobs, enabledFlags(), Config{Interval: 10 * time.Millisecond, BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return jobs.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
