package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/dedupwindow"
)

func TestDedupWindow_SuppressesWithinTTL(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	window := dedupwindow.New(infra.RedisClient, 5*time.Second, dedupwindow.OnErrorDeny)

	seen, err := window.Seen(ctx, "update_wiki_page", "req-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = window.Seen(ctx, "update_wiki_page", "req-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDedupWindow_ForgetsAfterTTL(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	window := dedupwindow.New(infra.RedisClient, 1*time.Second, dedupwindow.OnErrorDeny)

	seen, err := window.Seen(ctx, "update_wiki_page", "req-2")
	require.NoError(t, err)
	assert.False(t, seen)

	time.Sleep(2 * time.Second)

	seen, err = window.Seen(ctx, "update_wiki_page", "req-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDedupWindow_DistinctRulesDoNotCollide(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	window := dedupwindow.New(infra.RedisClient, 5*time.Second, dedupwindow.OnErrorDeny)

	seen, err := window.Seen(ctx, "rule_a", "req-3")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = window.Seen(ctx, "rule_b", "req-3")
	require.NoError(t, err)
	assert.False(t, seen, "distinct rules must not share a dedup window key")
}

func TestDedupWindow_Size(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	window := dedupwindow.New(infra.RedisClient, 5*time.Second, dedupwindow.OnErrorDeny)

	for _, id := range []string{"req-4", "req-5", "req-6"} {
		_, err := window.Seen(ctx, "update_wiki_page", id)
		require.NoError(t, err)
	}

	size, err := window.Size(ctx, "update_wiki_page")
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}
