package projectmodule

import (
	"context"
	"testing"
	"time"

	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	project := &Project{
		ID:               "p1",
		Prompt:           "a circle",
		Code:             "class A(Scene): pass",
		Scenes:           []string{"A"},
		IndividualScenes: []types.SceneVideo{{Scene: "A", VideoURL: "/videos/x_A.mp4"}},
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, store.Save(ctx, project))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, project.Code, got.Code)
	assert.Equal(t, []string{"A"}, got.Scenes)

	// stored values are copies
	got.Code = "changed"
	again, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, project.Code, again.Code)

	require.NoError(t, store.Delete(ctx, "p1"))
	assert.ErrorIs(t, store.Delete(ctx, "p1"), ErrNotFound)
}

func TestRedisStoreKey(t *testing.T) {
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "manimforge:", time.Hour)
	t.Cleanup(func() { store.Close() })
	assert.Equal(t, "manimforge:project:abc", store.Key("abc"))
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisStore(client, "", 0)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	_, err := store.Get(ctx, "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, &Project{ID: "p1"}))
	assert.Error(t, store.Ping(ctx))
}
