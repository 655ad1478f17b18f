package assistant

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() Session {
	return Session{
		ID:      "sess-1",
		OwnerID: 10,
		State:   StateAskingTime,
		Draft:   Draft{ServiceType: "Vaccination", Date: "2025-06-10"},
		History: []Message{
			{Role: RoleUser, Content: "book a vaccination tomorrow"},
			{Role: RoleAssistant, Content: "What time on 2025-06-10 works for you?"},
		},
		UpdatedAt: time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC),
	}
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client, 30*time.Minute)
	ctx := t.Context()

	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, 30*time.Minute, mr.TTL("chat_session:sess-1"))

	got, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	mr.FastForward(31 * time.Minute)
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	assert.False(t, mr.Exists("chat_session:sess-1"))
}

func TestRedisSessionStoreCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("chat_session:bad", "not json"))

	_, err := NewRedisSessionStore(client, 0).Load(t.Context(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreRequiresClient(t *testing.T) {
	assert.Panics(t, func() { NewRedisSessionStore(nil, time.Minute) })
}

func TestMemorySessionStoreExpires(t *testing.T) {
	now := time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Hour)
	store.now = func() time.Time { return now }
	ctx := t.Context()

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))

	now = now.Add(59 * time.Minute)
	got, err := store.Load(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving slides the expiry forward.
	require.NoError(t, store.Save(ctx, want))
	now = now.Add(59 * time.Minute)
	_, err = store.Load(ctx, want.ID)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = store.Load(ctx, want.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore(0)
	ctx := t.Context()
	sess := sampleSession()
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	loaded.History[0].Content = "changed"

	again, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "book a vaccination tomorrow", again.History[0].Content)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
