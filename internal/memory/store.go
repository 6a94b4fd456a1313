// Package memory holds the in-process conversation store.
//
// The store lives for the lifetime of the process; nothing is
// persisted. Conversations are scoped per user and capped at a fixed
// number of messages with FIFO eviction.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Immutable once appended.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ChatMessage is the two-field projection the LLM protocol expects.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// conversation is one message log with its own lock so concurrent
// turns on the same conversation serialize their appends.
type conversation struct {
	mu       sync.Mutex
	messages []Message
}

// Store maps user id -> conversation id -> message log.
// Created once at process start and shared by all turns.
type Store struct {
	mu          sync.RWMutex
	users       map[string]map[string]*conversation
	maxMessages int
	now         func() time.Time
}

// NewStore creates an empty store. maxMessages is the per-conversation
// cap; values <= 0 fall back to 30.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 30
	}
	return &Store{
		users:       make(map[string]map[string]*conversation),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

// StartConversation creates a new empty conversation for the user and
// returns its id. Ids are UUIDs and are never reused.
func (s *Store) StartConversation(userID string) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, ok := s.users[userID]
	if !ok {
		convs = make(map[string]*conversation)
		s.users[userID] = convs
	}
	convs[id] = &conversation{}
	return id
}

// ConversationExists reports whether the conversation is known for the user.
func (s *Store) ConversationExists(userID, conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[userID][conversationID]
	return ok
}

// AddMessage appends a message, creating the conversation if needed,
// and enforces the cap by evicting the oldest messages.
func (s *Store) AddMessage(userID, conversationID string, role Role, content string) {
	conv := s.getOrCreate(userID, conversationID)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.messages = append(conv.messages, Message{
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})

	if excess := len(conv.messages) - s.maxMessages; excess > 0 {
		conv.messages = append([]Message(nil), conv.messages[excess:]...)
	}
}

// RecentMessages returns up to limit most recent messages, oldest
// first, in the shape the LLM protocol expects. An unknown
// conversation yields an empty slice, never an error.
func (s *Store) RecentMessages(userID, conversationID string, limit int) []ChatMessage {
	s.mu.RLock()
	conv, ok := s.users[userID][conversationID]
	s.mu.RUnlock()

	if !ok || limit <= 0 {
		return nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	msgs := conv.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// MessageCount returns the number of stored messages for a conversation.
func (s *Store) MessageCount(userID, conversationID string) int {
	s.mu.RLock()
	conv, ok := s.users[userID][conversationID]
	s.mu.RUnlock()

	if !ok {
		return 0
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.messages)
}

func (s *Store) getOrCreate(userID, conversationID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, ok := s.users[userID]
	if !ok {
		convs = make(map[string]*conversation)
		s.users[userID] = convs
	}
	conv, ok := convs[conversationID]
	if !ok {
		conv = &conversation{}
		convs[conversationID] = conv
	}
	return conv
}
