package main

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"screenshot-service/internal/apikey"
	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKeys struct {
	mu   sync.Mutex
	keys []store.APIKey
}

func (m *memoryKeys) CreateAPIKey(_ context.Context, key *store.APIKey) (*store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *key
	created.ID = int64(len(m.keys) + 1)
	created.IsActive = true
	m.keys = append(m.keys, created)
	return &created, nil
}

func (m *memoryKeys) ListAPIKeys(_ context.Context, includeInactive bool) ([]store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []store.APIKey
	for _, k := range m.keys {
		if includeInactive || k.IsActive {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memoryKeys) ListActiveAPIKeys(ctx context.Context) ([]store.APIKey, error) {
	return m.ListAPIKeys(ctx, false)
}

func (m *memoryKeys) SetAPIKeyActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.keys {
		if m.keys[i].ID == id {
			m.keys[i].IsActive = active
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memoryKeys) TouchAPIKey(context.Context, int64, time.Time) error {
	return nil
}

func (m *memoryKeys) GetAPIKey(_ context.Context, id int64) (*store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ID == id {
			return &k, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryKeys) DeleteAPIKey(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range m.keys {
		if k.ID == id {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func execute(t *testing.T, repository *memoryKeys, args ...string) (string, error) {
	t.Helper()

	open := func(context.Context, string, logr.Logger) (apikey.Repository, func(), error) {
		return repository, func() {}, nil
	}
	cmd := newRootCmd(open, logr.Discard())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--bcrypt-cost", "4"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreate(t *testing.T) {
	repository := &memoryKeys{}

	out, err := execute(t, repository, "create", "ci", "--description", "pipeline", "--prefix", "sk_test_", "--expires-in", "1h")
	require.NoError(t, err)

	var created struct {
		Key    string       `json:"key"`
		APIKey store.APIKey `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.True(t, len(created.Key) > len("sk_test_"))
	assert.Equal(t, "sk_test_", created.Key[:len("sk_test_")])
	assert.Equal(t, "ci", created.APIKey.Name)
	require.NotNil(t, created.APIKey.ExpiresAt)
	assert.Len(t, repository.keys, 1)
}

func TestRevokeAndList(t *testing.T) {
	repository := &memoryKeys{}
	_, err := execute(t, repository, "create", "first")
	require.NoError(t, err)
	_, err = execute(t, repository, "create", "second")
	require.NoError(t, err)

	out, err := execute(t, repository, "revoke", "1")
	require.NoError(t, err)
	assert.Equal(t, "revoked 1\n", out)

	out, err = execute(t, repository, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "second")

	out, err = execute(t, repository, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "first")

	out, err = execute(t, repository, "reactivate", "1")
	require.NoError(t, err)
	assert.Equal(t, "reactivated 1\n", out)
}

func TestShowAndDelete(t *testing.T) {
	repository := &memoryKeys{}
	_, err := execute(t, repository, "create", "ci")
	require.NoError(t, err)

	out, err := execute(t, repository, "show", "1")
	require.NoError(t, err)
	var shown store.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "ci", shown.Name)
	assert.True(t, shown.IsActive)

	out, err = execute(t, repository, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1\n", out)
	assert.Empty(t, repository.keys)

	_, err = execute(t, repository, "show", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeErrors(t *testing.T) {
	repository := &memoryKeys{}

	_, err := execute(t, repository, "revoke", "abc")
	assert.Error(t, err)

	_, err = execute(t, repository, "revoke", "7")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
