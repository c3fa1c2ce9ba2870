package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/rgadiag/internal/semtracker"
)

// Needs a live server: RGADIAG_TEST_REDIS_URL=redis://localhost:6379/0
func dialTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("RGADIAG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RGADIAG_TEST_REDIS_URL not set")
	}
	s, err := Dial(context.Background(), url, WithPrefix("rgadiag-test:"+uuid.NewString()+":"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSet(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, semtracker.HistoryKey)
	assert.ErrorIs(t, err, semtracker.ErrNotFound)

	require.NoError(t, s.Set(ctx, semtracker.HistoryKey, "[]"))
	v, err := s.Get(ctx, semtracker.HistoryKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
	require.NoError(t, s.client.Del(ctx, s.prefix+semtracker.HistoryKey).Err())
}

func TestDialInvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url")
	assert.Error(t, err)
}
