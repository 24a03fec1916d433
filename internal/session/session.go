// Package session keeps conversation history per session key and persists
// it through pluggable backends.
package session

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Session is the persisted history for one key ("channel:chat_id").
type Session struct {
	Key       string    `json:"key"`
	Messages  []Message `json:"messages"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty session for key.
func New(key string) *Session {
	now := time.Now().UTC()
	return &Session{Key: key, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}
}

// AddMessage appends a message and bumps UpdatedAt.
func (s *Session) AddMessage(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if len(m.ToolCalls) > 0 {
			m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
		out.Messages[i] = m
	}
	return &out
}

// Key builds the session key for a chat on a channel.
func Key(channel, chatID string) string {
	return channel + ":" + chatID
}

// SplitKey is the inverse of Key. The chat id may itself contain ':'.
func SplitKey(key string) (channel, chatID string, ok bool) {
	return strings.Cut(key, ":")
}
