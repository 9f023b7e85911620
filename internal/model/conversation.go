package model

import "time"

// Conversation is a message thread between two users, optionally about an item.
type Conversation struct {
	ID        int64     `json:"id"`
	User1ID   int64     `json:"user1_id"`
	User2ID   int64     `json:"user2_id"`
	ItemID    *int64    `json:"item_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	OtherUsername string `json:"other_username,omitempty"`
	ItemName      string `json:"item_name,omitempty"`
	LastMessage   string `json:"last_message,omitempty"`
	UnreadCount   int    `json:"unread_count"`
}

// Message is a single entry in a conversation.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Type           string     `json:"message_type"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	IsEdited       bool       `json:"is_edited"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`

	SenderName string `json:"sender_name,omitempty"`
}

// Message types.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the participant who is not userID.
func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
