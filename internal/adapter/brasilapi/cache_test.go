package brasilapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
)

type countingFallback struct {
	addr  *domain.FallbackAddress
	err   error
	calls int
}

func (f *countingFallback) Lookup(_ context.Context, _ string) (*domain.FallbackAddress, error) {
	f.calls++
	return f.addr, f.err
}

func locatedAddr() *domain.FallbackAddress {
	return &domain.FallbackAddress{City: "Campinas", State: "SP", Lat: -22.9, Lon: -47.06}
}

func TestCachedFallback_HitAvoidsInnerCall(t *testing.T) {
	inner := &countingFallback{addr: locatedAddr()}
	cached := NewCachedFallback(inner, 10, observability.NewMetricsForTesting())

	first, err := cached.Lookup(context.Background(), "13010000")
	require.NoError(t, err)
	second, err := cached.Lookup(context.Background(), "13010000")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Same(t, first, second)
}

func TestCachedFallback_NotFoundNotCached(t *testing.T) {
	inner := &countingFallback{addr: nil}
	cached := NewCachedFallback(inner, 10, observability.NewMetricsForTesting())

	for i := 0; i < 3; i++ {
		addr, err := cached.Lookup(context.Background(), "99999999")
		require.NoError(t, err)
		assert.Nil(t, addr)
	}
	assert.Equal(t, 3, inner.calls, "transient not-found responses must stay retryable")
}

func TestCachedFallback_CoordinatelessNotCached(t *testing.T) {
	inner := &countingFallback{addr: &domain.FallbackAddress{City: "Rio Branco", State: "AC"}}
	cached := NewCachedFallback(inner, 10, observability.NewMetricsForTesting())

	cached.Lookup(context.Background(), "69900000") //nolint:errcheck
	cached.Lookup(context.Background(), "69900000") //nolint:errcheck
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFallback_ErrorNotCached(t *testing.T) {
	inner := &countingFallback{err: errors.New("upstream down")}
	cached := NewCachedFallback(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Lookup(context.Background(), "13010000")
	assert.Error(t, err)
	_, err = cached.Lookup(context.Background(), "13010000")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFallback_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingFallback{addr: locatedAddr()}
	cached := NewCachedFallback(inner, 2, observability.NewMetricsForTesting())

	ceps := []string{"01000001", "02000002", "03000003"}
	for _, cep := range ceps {
		_, err := cached.Lookup(context.Background(), cep)
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// The oldest entry was evicted; the two newest are still cached.
	for _, cep := range []string{"02000002", "03000003"} {
		_, err := cached.Lookup(context.Background(), cep)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)

	_, err := cached.Lookup(context.Background(), "01000001")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedFallback_GetRefreshesRecency(t *testing.T) {
	inner := &countingFallback{addr: locatedAddr()}
	cached := NewCachedFallback(inner, 2, observability.NewMetricsForTesting())

	mustLookup := func(cep string) {
		_, err := cached.Lookup(context.Background(), cep)
		require.NoError(t, err, fmt.Sprintf("cep %s", cep))
	}

	mustLookup("01000001")
	mustLookup("02000002")
	mustLookup("01000001") // refresh
	mustLookup("03000003") // evicts 02000002

	calls := inner.calls
	mustLookup("01000001")
	assert.Equal(t, calls, inner.calls, "refreshed entry must survive the eviction")

	mustLookup("02000002")
	assert.Equal(t, calls+1, inner.calls)
}
