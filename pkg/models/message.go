package models

import (
	"strings"
	"time"
)

// ChannelType represents a messaging platform.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelSlack    ChannelType = "slack"
	ChannelCLI      ChannelType = "cli"
)

// Direction indicates if a message is inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is the unified message format across all channels. The command
// pipeline treats it as an opaque handle: it reads Content and copies
// routing fields into replies, but never interprets platform metadata.
type Message struct {
	ID         string         `json:"id"`
	Channel    ChannelType    `json:"channel"`
	ChannelID  string         `json:"channel_id"` // Platform-specific message ID
	ChatID     string         `json:"chat_id"`    // Conversation/channel the message belongs to
	SenderID   string         `json:"sender_id"`
	SenderName string         `json:"sender_name,omitempty"`
	Direction  Direction      `json:"direction"`
	Content    string         `json:"content"`
	IsDirect   bool           `json:"is_direct,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Reply builds an outbound message addressed to the same conversation.
func (m *Message) Reply(content string) *Message {
	return &Message{
		Channel:   m.Channel,
		ChatID:    m.ChatID,
		Direction: DirectionOutbound,
		Content:   content,
		Metadata:  m.Metadata,
		CreatedAt: time.Now(),
	}
}

// ParseChannelType normalizes a channel name to a known ChannelType.
func ParseChannelType(s string) (ChannelType, bool) {
	switch ChannelType(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelTelegram:
		return ChannelTelegram, true
	case ChannelDiscord:
		return ChannelDiscord, true
	case ChannelSlack:
		return ChannelSlack, true
	case ChannelCLI:
		return ChannelCLI, true
	default:
		return "", false
	}
}
