package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndResolve(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()

	token, err := manager.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, token, 36, "uuid string")

	username, ok, err := manager.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	_, ok, err = manager.Resolve(ctx, "not-a-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_IssueRejectsEmptyUsername(t *testing.T) {
	_, err := NewManager(nil).Issue(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestManager_MultipleTokensPerUser(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()

	first, err := manager.Issue(ctx, "alice")
	require.NoError(t, err)
	second, err := manager.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// the earlier login stays valid
	username, ok, err := manager.Resolve(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	count, err := manager.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestManager_ConcurrentIssue(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := manager.Issue(ctx, "bob")
			if assert.NoError(t, err) {
				_, ok, _ := manager.Resolve(ctx, token)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()

	count, err := manager.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, count)
}

func TestManager_Close(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()

	token, err := manager.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, manager.Close())

	_, _, err = manager.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = manager.Issue(ctx, "alice")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

// failingStore always errors on Resolve
type failingStore struct{ *Manager }

func (f *failingStore) Resolve(ctx context.Context, token string) (string, bool, error) {
	return "", false, errors.New("backend down")
}

func TestGate_Authorize(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()
	token, err := manager.Issue(ctx, "alice")
	require.NoError(t, err)

	gate := NewGate(manager)

	username, err := gate.Authorize(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = gate.Authorize(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = gate.Authorize(ctx, "forged-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGate_StoreFailure(t *testing.T) {
	gate := NewGate(&failingStore{Manager: NewManager(nil)})

	_, err := gate.Authorize(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "backend down")
}
