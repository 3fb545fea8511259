package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newHostBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	require.NoError(t, b.allow())
	b.record(false)
	assert.Equal(t, breakerClosed, b.current())
	b.record(false)
	assert.Equal(t, breakerOpen, b.current())
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen)

	now = now.Add(time.Minute)
	require.NoError(t, b.allow(), "probe allowed after cooldown")
	assert.Equal(t, breakerHalfOpen, b.current())
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen, "only one probe in flight")

	b.record(false)
	assert.Equal(t, breakerOpen, b.current(), "failed probe reopens")

	now = now.Add(time.Minute)
	require.NoError(t, b.allow())
	b.record(true)
	assert.Equal(t, breakerClosed, b.current())
	require.NoError(t, b.allow())
}

func TestHostBreaker_SuccessResetsFailures(t *testing.T) {
	b := newHostBreaker(2, time.Minute)
	b.record(false)
	b.record(true)
	b.record(false)
	assert.Equal(t, breakerClosed, b.current())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", breakerClosed.String())
	assert.Equal(t, "open", breakerOpen.String())
	assert.Equal(t, "half-open", breakerHalfOpen.String())
	assert.Equal(t, "unknown", breakerState(9).String())
}

func TestDownload_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries:       1,
		RatePerSec:       100,
		BackoffBase:      time.Millisecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
	})

	for _i := 0; _i < 2; _i++ {
		_, err := f.Download(context.Background(), srv.URL)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}

	_, err := f.Download(context.Background(), srv.URL+"/other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), hits.Load(), "no request while open")
}

func TestDownload_NotFoundDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{RatePerSec: 100, BreakerThreshold: 1})
	for _i := 0; _i < 3; _i++ {
		_, err := f.Download(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 404")
	}
}
