package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartConversation(t *testing.T) {
	store := NewStore(30)

	id1 := store.StartConversation("alice")
	id2 := store.StartConversation("alice")

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2, "conversation ids must be unique")
	assert.True(t, store.ConversationExists("alice", id1))
	assert.True(t, store.ConversationExists("alice", id2))
}

func TestConversationExists_Scoping(t *testing.T) {
	store := NewStore(30)

	id := store.StartConversation("alice")

	assert.True(t, store.ConversationExists("alice", id))
	assert.False(t, store.ConversationExists("bob", id), "conversations are per-user")
	assert.False(t, store.ConversationExists("alice", "unknown"))
}

func TestAddMessage_CapEvictsOldestFirst(t *testing.T) {
	store := NewStore(30)
	id := store.StartConversation("alice")

	for i := 0; i < 31; i++ {
		store.AddMessage("alice", id, RoleUser, fmt.Sprintf("msg-%d", i))
	}

	require.Equal(t, 30, store.MessageCount("alice", id))

	msgs := store.RecentMessages("alice", id, 30)
	require.Len(t, msgs, 30)
	assert.Equal(t, "msg-1", msgs[0].Content, "appending a 31st message evicts the oldest")
	assert.Equal(t, "msg-30", msgs[29].Content)
}

func TestRecentMessages_OrderAndLimit(t *testing.T) {
	store := NewStore(30)
	id := store.StartConversation("alice")

	for i := 0; i < 5; i++ {
		store.AddMessage("alice", id, RoleUser, fmt.Sprintf("msg-%d", i))
	}

	// Fewer messages than the limit: all of them, oldest first.
	msgs := store.RecentMessages("alice", id, 10)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
	}

	// More messages than the limit: the most recent ones.
	for i := 5; i < 40; i++ {
		store.AddMessage("alice", id, RoleAssistant, fmt.Sprintf("msg-%d", i))
	}
	msgs = store.RecentMessages("alice", id, 10)
	require.Len(t, msgs, 10)
	assert.Equal(t, "msg-30", msgs[0].Content)
	assert.Equal(t, "msg-39", msgs[9].Content)
}

func TestRecentMessages_UnknownConversation(t *testing.T) {
	store := NewStore(30)

	msgs := store.RecentMessages("nobody", "nothing", 10)
	assert.Empty(t, msgs)
}

func TestRecentMessages_Shape(t *testing.T) {
	store := NewStore(30)
	id := store.StartConversation("alice")

	store.AddMessage("alice", id, RoleUser, "hello")
	store.AddMessage("alice", id, RoleAssistant, "hi there")

	msgs := store.RecentMessages("alice", id, 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
}

func TestAddMessage_ImplicitConversation(t *testing.T) {
	store := NewStore(30)

	store.AddMessage("alice", "external-id", RoleUser, "hello")

	assert.True(t, store.ConversationExists("alice", "external-id"))
	assert.Equal(t, 1, store.MessageCount("alice", "external-id"))
}

func TestConcurrentAppends(t *testing.T) {
	store := NewStore(100)
	id := store.StartConversation("alice")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.AddMessage("alice", id, RoleUser, fmt.Sprintf("msg-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.MessageCount("alice", id))
}
