package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/services"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                      { return j.name }
func (j funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }

func TestRegister(t *testing.T) {
	s := New(time.UTC)
	noop := funcJob{name: "noop", fn: func(context.Context) error { return nil }}

	require.NoError(t, s.Register("@every 30m", noop))

	err := s.Register("@every 1h", noop)
	assert.ErrorContains(t, err, "already registered")

	err = s.Register("every half hour", funcJob{name: "bad", fn: noop.fn})
	assert.Error(t, err)

	next, err := s.NextRun("noop")
	require.NoError(t, err)
	assert.True(t, next.IsZero(), "next run is computed on Start")

	_, err = s.NextRun("missing")
	assert.Error(t, err)
}

func TestWrap_SkipsOverlappingRuns(t *testing.T) {
	s := New(time.UTC)
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int32

	wrapped := s.wrap(funcJob{name: "slow", fn: func(context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		wrapped.Run()
	}()
	<-started

	// returns immediately while the first run holds the slot
	wrapped.Run()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	wrapped.Run()
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestWrap_RecoversPanics(t *testing.T) {
	s := New(time.UTC)
	wrapped := s.wrap(funcJob{name: "panicky", fn: func(context.Context) error { panic("boom") }})

	assert.NotPanics(t, wrapped.Run)
}

func TestWrap_JobContextEndsOnStop(t *testing.T) {
	s := New(time.UTC, WithJobTimeout(time.Minute))
	var sawCancel atomic.Bool
	started := make(chan struct{})

	wrapped := s.wrap(funcJob{name: "waits", fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(errors.Is(ctx.Err(), context.Canceled))
		return ctx.Err()
	}})

	done := make(chan struct{})
	go func() {
		wrapped.Run()
		close(done)
	}()
	<-started
	s.cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
	assert.True(t, sawCancel.Load())
}

func TestStartStop(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register("@every 1h", funcJob{name: "hourly", fn: func(context.Context) error { return nil }}))

	s.Start()
	s.Start()

	next, err := s.NextRun("hourly")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
	assert.False(t, s.running)
}

type fakePricing struct {
	refreshFn func(ctx context.Context) (*services.RefreshResult, error)
}

func (f *fakePricing) RefreshPrices(ctx context.Context) (*services.RefreshResult, error) {
	return f.refreshFn(ctx)
}

func (f *fakePricing) ImportHistory(context.Context, int, time.Duration) (*services.ImportResult, error) {
	return &services.ImportResult{}, nil
}

func (f *fakePricing) Quote(context.Context, string) (*quote.Result, error) {
	return nil, apperrors.ErrQuoteNotConfigured
}

func (f *fakePricing) TestConnection(context.Context) (*quote.Result, error) {
	return nil, apperrors.ErrQuoteNotConfigured
}

func (f *fakePricing) RecordPrices([]services.PriceInput) (int, error) { return 0, nil }

var _ services.PricingServicer = (*fakePricing)(nil)

func TestPriceRefreshJob(t *testing.T) {
	t.Run("records the last successful cycle", func(t *testing.T) {
		pricing := &fakePricing{refreshFn: func(context.Context) (*services.RefreshResult, error) {
			return &services.RefreshResult{
				Requested: 3,
				Updated:   2,
				Failed:    map[string]string{"GD35": "HTTP 500"},
				Summary:   "GD35: HTTP 500",
			}, nil
		}}
		job := NewPriceRefreshJob(pricing)

		at, last := job.LastRun()
		assert.True(t, at.IsZero())
		assert.Nil(t, last)

		require.NoError(t, job.Execute(context.Background()))

		at, last = job.LastRun()
		assert.False(t, at.IsZero())
		require.NotNil(t, last)
		assert.Equal(t, 2, last.Updated)
		assert.Equal(t, PriceRefreshJobName, job.Name())
	})

	t.Run("returns provider errors and keeps the previous result", func(t *testing.T) {
		pricing := &fakePricing{refreshFn: func(context.Context) (*services.RefreshResult, error) {
			return nil, apperrors.Wrap(apperrors.ErrQuoteAuthFailed, quote.ErrAuthFailed)
		}}
		job := NewPriceRefreshJob(pricing)

		err := job.Execute(context.Background())

		assert.ErrorIs(t, err, quote.ErrAuthFailed)
		_, last := job.LastRun()
		assert.Nil(t, last)
	})
}
