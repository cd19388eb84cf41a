package watchreg

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestWatchUnwatchRoundTrip(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	reg := New(rdc)
	ctx := context.Background()

	// watch then unwatch returns the set to its prior state
	mock.ExpectSIsMember("auc_watch:a1", "u1").SetVal(false)
	mock.ExpectSAdd("auc_watch:a1", "u1").SetVal(1)
	mock.ExpectSIsMember("auc_watch:a1", "u1").SetVal(true)
	mock.ExpectSRem("auc_watch:a1", "u1").SetVal(1)
	mock.ExpectSIsMember("auc_watch:a1", "u1").SetVal(false)

	before, err := reg.IsWatching(ctx, "a1", "u1")
	require.NoError(t, err)
	require.False(t, before)

	require.NoError(t, reg.Watch(ctx, "a1", "u1"))

	during, err := reg.IsWatching(ctx, "a1", "u1")
	require.NoError(t, err)
	require.True(t, during)

	require.NoError(t, reg.Unwatch(ctx, "a1", "u1"))

	after, err := reg.IsWatching(ctx, "a1", "u1")
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchIdempotent(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	reg := New(rdc)
	ctx := context.Background()

	mock.ExpectSAdd("auc_watch:a1", "u1").SetVal(1)
	mock.ExpectSAdd("auc_watch:a1", "u1").SetVal(0) // already a member

	require.NoError(t, reg.Watch(ctx, "a1", "u1"))
	require.NoError(t, reg.Watch(ctx, "a1", "u1"))
}

func TestUnwatchNeverWatched(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	reg := New(rdc)

	mock.ExpectSRem("auc_watch:a1", "stranger").SetVal(0)
	require.NoError(t, reg.Unwatch(context.Background(), "a1", "stranger"))
}

func TestWatchersAndCount(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	reg := New(rdc)
	ctx := context.Background()

	mock.ExpectSMembers("auc_watch:a1").SetVal([]string{"u1", "u2"})
	mock.ExpectSCard("auc_watch:a1").SetVal(2)

	members, err := reg.Watchers(ctx, "a1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2"}, members)

	n, err := reg.Count(ctx, "a1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
