package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varsilias/carmatch/pkg/types"
)

func TestMemoryStoreAppendGet(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append("a", types.ChatMessage{Role: types.RoleUser, Content: "hi"}))
	require.NoError(t, s.Append("a", types.ChatMessage{Role: types.RoleAssistant, Content: "hello"}))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []types.ChatMessage{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
	}, got)

	// callers get a copy
	got[0].Content = "changed"
	again, _ := s.Get("a")
	assert.Equal(t, "hi", again[0].Content)

	empty, err := s.Get("missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Append("", types.ChatMessage{Role: types.RoleUser}), ErrEmptySessionID)
}

func TestMemoryStoreListAndTouch(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append("old", types.ChatMessage{Role: types.RoleUser, Content: "二十万预算买什么车比较好，家用为主，偶尔自驾游"}))
	time.Sleep(2 * time.Millisecond)
	s.Touch("new")

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "", list[0].Title)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, "二十万预算买什么车比较好，家用为…", list[1].Title)
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append("c", types.ChatMessage{Role: types.RoleUser, Content: "x"})
		}()
	}
	wg.Wait()
	got, _ := s.Get("c")
	assert.Len(t, got, 50)
}
