package future_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobject/internal/future"
)

func TestDeferredSettlesOnce(t *testing.T) {
	d := future.NewDeferred()
	var calls []any
	d.Future().OnSettle(func(v any, err error) { calls = append(calls, v) })

	require.True(t, d.Resolve(1))
	assert.False(t, d.Resolve(2))
	assert.False(t, d.Reject(errors.New("late")))

	assert.Equal(t, []any{1}, calls)
	v, err := d.Future().Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, future.StatusResolved, d.Future().Status())
}

func TestOnSettleAfterSettlementRunsImmediately(t *testing.T) {
	f := future.Rejected(errors.New("boom"))
	var got error
	f.OnSettle(func(_ any, err error) { got = err })
	assert.EqualError(t, got, "boom")
}

func TestRejectNilUsesSentinel(t *testing.T) {
	d := future.NewDeferred()
	d.Reject(nil)
	_, err := d.Future().Result()
	assert.ErrorIs(t, err, future.ErrRejected)
}

func TestResolveAdoptsFuture(t *testing.T) {
	inner := future.NewDeferred()
	outer := future.NewDeferred()
	outer.Resolve(inner.Future())
	assert.Equal(t, future.StatusPending, outer.Future().Status())

	inner.Reject(errors.New("inner failed"))
	_, err := outer.Future().Result()
	assert.EqualError(t, err, "inner failed")
}

func TestAdoptingDeferredRefusesLaterSettlement(t *testing.T) {
	inner := future.NewDeferred()
	outer := future.NewDeferred()
	require.True(t, outer.Resolve(inner.Future()))

	assert.False(t, outer.Resolve("direct"))
	assert.False(t, outer.Reject(errors.New("direct")))
	assert.False(t, outer.Resolve(future.Resolved("other")))
	assert.Equal(t, future.StatusPending, outer.Future().Status())

	inner.Resolve("adopted")
	v, err := outer.Future().Result()
	require.NoError(t, err)
	assert.Equal(t, "adopted", v)
}

func TestWaitHonoursContext(t *testing.T) {
	d := future.NewDeferred()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.Future().Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go d.Resolve("late")
	v, err := d.Future().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestAllWaitsForEveryInput(t *testing.T) {
	a := future.NewDeferred()
	b := future.NewDeferred()
	all := future.All(a.Future(), b.Future())

	b.Reject(errors.New("b failed"))
	assert.Equal(t, future.StatusPending, all.Status())

	a.Resolve("a")
	v, err := all.Result()
	require.NoError(t, err)
	outcomes := v.([]future.Outcome)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "a", outcomes[0].Value)
	assert.EqualError(t, outcomes[1].Err, "b failed")
}

func TestAllEmpty(t *testing.T) {
	assert.Equal(t, future.StatusResolved, future.All().Status())
}
