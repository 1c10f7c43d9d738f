package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iagents/core/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.StoreConfig{Dialect: "sqlite", Database: ":memory:", PoolSize: 5}
	cfg.SetDefaults()
	s, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedChat(t *testing.T, s *Store, sender, receiver, message string) {
	t.Helper()
	require.NoError(t, s.InsertChat(context.Background(), sender, receiver, message, ""))
}

func TestCurrentPairHistory_OldestFirstAndScopedToPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedChat(t, s, "Alice", "Bob", "hi bob")
	seedChat(t, s, "Bob", "Alice", "hi alice")
	seedChat(t, s, "Alice", "Carol", "unrelated")

	rows, err := s.CurrentPairHistory(ctx, "Alice", "Bob", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "hi bob", rows[0].Message)
	require.Equal(t, "hi alice", rows[1].Message)
}

func TestCrossContactHistory_ExcludesAgentEndpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedChat(t, s, "Bob", "Carol", "I love Dune")
	seedChat(t, s, "Bob's Agent", "Carol's Agent", "agent chatter")

	rows, err := s.CrossContactHistory(ctx, "Bob", "Alice", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "I love Dune", rows[0].Message)
}

func TestFriendsOfMaster_Empty(t *testing.T) {
	s := newTestStore(t)
	friends, err := s.FriendsOfMaster(context.Background(), "Alice")
	require.NoError(t, err)
	require.Empty(t, friends)
}
