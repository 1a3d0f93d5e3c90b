package envstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-onboarding/internal/onboarding/variables"
)

func newMiniredis(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "onboarding:env:", ttl), mr
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, mr := newMiniredis(t, 0)
	ctx := context.Background()

	doc := variables.New()
	doc.ID = "wf_1"
	doc.Name = "onboarding-wf_1"
	doc.Set("workflow_id", "wf_1")
	doc.Set("contact_email", "owner@acme.test")
	doc.Put(variables.Variable{Key: "disabled", Value: "x", Enabled: false})

	require.NoError(t, store.Save(ctx, "wf_1", doc))
	assert.True(t, mr.Exists("onboarding:env:wf_1"))
	assert.Equal(t, time.Duration(0), mr.TTL("onboarding:env:wf_1"))

	loaded, err := store.Load(ctx, "wf_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, doc.Variables(), loaded.Variables())
	assert.Equal(t, "onboarding-wf_1", loaded.Name)
}

func TestSave_ReplacesWholeDocument(t *testing.T) {
	store, _ := newMiniredis(t, 0)
	ctx := context.Background()

	first := variables.New()
	first.Set("a", "1")
	first.Set("b", "2")
	require.NoError(t, store.Save(ctx, "wf_1", first))

	second := variables.New()
	second.Set("a", "3")
	require.NoError(t, store.Save(ctx, "wf_1", second))

	loaded, err := store.Load(ctx, "wf_1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, loaded.Context())
}

func TestSave_AppliesTTL(t *testing.T) {
	store, mr := newMiniredis(t, time.Hour)
	require.NoError(t, store.Save(context.Background(), "wf_1", variables.New()))
	assert.Equal(t, time.Hour, mr.TTL("onboarding:env:wf_1"))

	mr.FastForward(2 * time.Hour)
	loaded, err := store.Load(context.Background(), "wf_1")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoad_Missing(t *testing.T) {
	store, _ := newMiniredis(t, 0)

	loaded, err := store.Load(context.Background(), "wf_none")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoad_CorruptDocument(t *testing.T) {
	store, mr := newMiniredis(t, 0)
	require.NoError(t, mr.Set("onboarding:env:wf_1", "not json"))

	_, err := store.Load(context.Background(), "wf_1")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	store, mr := newMiniredis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "wf_1", variables.New()))
	require.NoError(t, store.Delete(ctx, "wf_1"))
	assert.False(t, mr.Exists("onboarding:env:wf_1"))

	assert.NoError(t, store.Delete(ctx, "wf_1"), "deleting twice is fine")
}

// ==========================
// Redis failures
// ==========================

func TestRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, "env:", 0)
	ctx := context.Background()

	mock.ExpectGet("env:wf_1").SetErr(errors.New("connection reset"))
	_, err := store.Load(ctx, "wf_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	mock.ExpectDel("env:wf_1").SetErr(errors.New("READONLY"))
	assert.Error(t, store.Delete(ctx, "wf_1"))

	mock.ExpectPing().SetErr(errors.New("dial tcp: refused"))
	assert.Error(t, store.Health(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth(t *testing.T) {
	store, _ := newMiniredis(t, 0)
	assert.NoError(t, store.Health(context.Background()))
}

// ==========================
// Update
// ==========================

func TestUpdate_RetriesOnConcurrentWrite(t *testing.T) {
	store, mr := newMiniredis(t, time.Hour)
	other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "onboarding:env:", time.Hour)
	ctx := context.Background()

	base := variables.New()
	base.Set("workflow_id", "wf_1")
	require.NoError(t, store.Save(ctx, "wf_1", base))

	calls := 0
	err := store.Update(ctx, "wf_1", func(current *variables.Store) (*variables.Store, error) {
		calls++
		if calls == 1 {
			concurrent := current.Clone()
			concurrent.Set("approver2_decision", "APPROVED")
			require.NoError(t, other.Save(ctx, "wf_1", concurrent))
		}
		current.Set("approver1_decision", "REJECTED")
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	loaded, err := store.Load(ctx, "wf_1")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", loaded.Value("approver2_decision"))
	assert.Equal(t, "REJECTED", loaded.Value("approver1_decision"))
	assert.Equal(t, time.Hour, mr.TTL("onboarding:env:wf_1"))
}

func TestUpdate_MissingDocument(t *testing.T) {
	store, _ := newMiniredis(t, 0)
	ctx := context.Background()

	err := store.Update(ctx, "wf_2", func(current *variables.Store) (*variables.Store, error) {
		assert.Nil(t, current)
		doc := variables.New()
		doc.Set("workflow_id", "wf_2")
		return doc, nil
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "wf_2")
	require.NoError(t, err)
	assert.Equal(t, "wf_2", loaded.Value("workflow_id"))
}

func TestUpdate_GivesUpUnderContention(t *testing.T) {
	store, mr := newMiniredis(t, 0)
	other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "onboarding:env:", 0)
	ctx := context.Background()

	err := store.Update(ctx, "wf_3", func(current *variables.Store) (*variables.Store, error) {
		require.NoError(t, other.Save(ctx, "wf_3", variables.New()))
		return variables.New(), nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContention))
}

func TestUpdate_CallbackError(t *testing.T) {
	store, mr := newMiniredis(t, 0)
	err := store.Update(context.Background(), "wf_4", func(*variables.Store) (*variables.Store, error) {
		return nil, errors.New("refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.False(t, mr.Exists("onboarding:env:wf_4"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc := variables.New()
	doc.Set("workflow_id", "wf_1")
	require.NoError(t, m.Save(ctx, "wf_1", doc))
	doc.Set("workflow_id", "mutated")

	loaded, err := m.Load(ctx, "wf_1")
	require.NoError(t, err)
	assert.Equal(t, "wf_1", loaded.Value("workflow_id"))

	require.NoError(t, m.Update(ctx, "wf_1", func(current *variables.Store) (*variables.Store, error) {
		current.Set("approver1_decision", "APPROVED")
		return current, nil
	}))
	loaded, _ = m.Load(ctx, "wf_1")
	assert.Equal(t, "APPROVED", loaded.Value("approver1_decision"))

	require.NoError(t, m.Delete(ctx, "wf_1"))
	loaded, err = m.Load(ctx, "wf_1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, m.Health(ctx))
}
