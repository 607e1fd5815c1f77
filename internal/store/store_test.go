package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "board_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "board_a", []byte(`{"zoom":1}`)))
	require.NoError(t, s.Put(ctx, "board_a", []byte(`{"zoom":2}`)))
	data, err := s.Get(ctx, "board_a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"zoom":2}`, string(data))

	require.NoError(t, s.Delete(ctx, "board_a"))
	_, err = s.Get(ctx, "board_a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "board_a"), ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "../escape", nil), ErrInvalidKey)
	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testStoreContract(t, s)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "k", buf))
	buf[0] = 'x'
	data, _ := s.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(data))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("board_01h2xcejqtf2nbrexx3vqjhp41"))
	assert.NoError(t, ValidateKey("team-standup"))
	for _, bad := range []string{"", ".hidden", "a/b", `a\b`, "c:d", "tab\there"} {
		assert.ErrorIs(t, ValidateKey(bad), ErrInvalidKey, bad)
	}
}

type countingStore struct {
	*MemoryStore
	puts atomic.Int32
}

func (c *countingStore) Put(ctx context.Context, key string, data []byte) error {
	c.puts.Add(1)
	return c.MemoryStore.Put(ctx, key, data)
}

func TestAutosaverCoalesces(t *testing.T) {
	s := &countingStore{MemoryStore: NewMemoryStore()}
	a := NewAutosaver(s, 20*time.Millisecond)

	var mu sync.Mutex
	version := 0
	snapshot := func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		return []byte{byte('0' + version)}, nil
	}

	for i := 1; i <= 5; i++ {
		mu.Lock()
		version = i
		mu.Unlock()
		a.Schedule("k", snapshot)
	}

	require.Eventually(t, func() bool { return s.puts.Load() == 1 }, time.Second, 5*time.Millisecond)
	data, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "5", string(data))
	assert.False(t, a.Dirty("k"))
}

func TestAutosaverFlush(t *testing.T) {
	s := &countingStore{MemoryStore: NewMemoryStore()}
	a := NewAutosaver(s, time.Hour)

	a.Schedule("a", func() ([]byte, error) { return []byte("A"), nil })
	a.Schedule("b", func() ([]byte, error) { return []byte("B"), nil })
	require.True(t, a.Dirty("a"))

	require.NoError(t, a.Flush(context.Background()))
	assert.EqualValues(t, 2, s.puts.Load())
	assert.False(t, a.Dirty("a"))

	require.NoError(t, a.Flush(context.Background()))
	assert.EqualValues(t, 2, s.puts.Load(), "clean keys are not saved again")
}

func TestAutosaverForget(t *testing.T) {
	s := &countingStore{MemoryStore: NewMemoryStore()}
	a := NewAutosaver(s, time.Hour)
	a.Schedule("a", func() ([]byte, error) { return []byte("A"), nil })
	a.Forget("a")
	require.NoError(t, a.Flush(context.Background()))
	assert.Zero(t, s.puts.Load())
}

func TestAutosaverKeepsDirtyOnFailure(t *testing.T) {
	a := NewAutosaver(NewMemoryStore(), time.Hour)
	a.Schedule("../bad", func() ([]byte, error) { return []byte("x"), nil })
	assert.ErrorIs(t, a.Flush(context.Background()), ErrInvalidKey)
	assert.True(t, a.Dirty("../bad"))
}
