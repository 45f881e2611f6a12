package sessionstore

import (
	"context"
	"testing"
	"time"

	"milesfare-backend/internal/components/chrono"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	store, err := Open(ctx, ":memory:", time.Hour, clock)
	require.Nil(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "award")
	require.Nil(t, err)
	require.False(t, ok)

	err = store.Save(ctx, "award", Profile{ContextID: "ctx-1", SessionID: "sess-1"})
	require.Nil(t, err)

	profile, ok, err := store.Get(ctx, "award")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "ctx-1", profile.ContextID)
	require.Equal(t, "sess-1", profile.SessionID)

	err = store.Save(ctx, "award", Profile{ContextID: "ctx-1", SessionID: "sess-2"})
	require.Nil(t, err)
	profile, _, err = store.Get(ctx, "award")
	require.Nil(t, err)
	require.Equal(t, "sess-2", profile.SessionID)

	clock.Advance(2 * time.Hour)
	profile, ok, err = store.Get(ctx, "award")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "ctx-1", profile.ContextID)
	require.Equal(t, "", profile.SessionID)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	store, err := Open(ctx, ":memory:", 0, clock)
	require.Nil(t, err)
	defer store.Close()

	require.Nil(t, store.Save(ctx, "cash", Profile{ContextID: "ctx-9", SessionID: "sess-9"}))
	require.Nil(t, store.ClearSession(ctx, "cash"))

	profile, ok, err := store.Get(ctx, "cash")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "ctx-9", profile.ContextID)
	require.Equal(t, "", profile.SessionID)
}
