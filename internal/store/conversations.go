package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.message_type, m.content,
	m.is_read, m.is_edited, m.is_deleted, m.created_at, m.edited_at, u.username`

const messageFrom = ` FROM messages m JOIN users u ON u.id = m.sender_id`

// FindOrCreateConversation returns the conversation between two users about
// an item, creating it if needed. Participant order does not matter.
func FindOrCreateConversation(ctx context.Context, db db.DBTX, userA, userB int64, itemID *int64) (*model.Conversation, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM conversations
		 WHERE ((user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?))
		   AND item_id IS ?
		 ORDER BY id LIMIT 1`,
		userA, userB, userB, userA, itemID,
	).Scan(&id)
	if err == nil {
		return GetConversation(ctx, db, id)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("finding conversation: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO conversations (user1_id, user2_id, item_id) VALUES (?, ?, ?)`,
		userA, userB, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting conversation id: %w", err)
	}

	return GetConversation(ctx, db, id)
}

// GetConversation returns a conversation by ID.
func GetConversation(ctx context.Context, db db.DBTX, id int64) (*model.Conversation, error) {
	c := &model.Conversation{}
	var itemID sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT c.id, c.user1_id, c.user2_id, c.item_id, c.created_at, c.updated_at, COALESCE(i.name, '')
		 FROM conversations c LEFT JOIN items i ON i.id = c.item_id
		 WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.User1ID, &c.User2ID, &itemID, &c.CreatedAt, &c.UpdatedAt, &c.ItemName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	if itemID.Valid {
		c.ItemID = &itemID.Int64
	}
	return c, nil
}

// ListConversations returns a user's conversations, most recently active
// first, with the other participant, last message and unread count.
func ListConversations(ctx context.Context, db db.DBTX, userID int64) ([]model.Conversation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.user1_id, c.user2_id, c.item_id, c.created_at, c.updated_at,
		        COALESCE(i.name, ''), ou.username,
		        COALESCE((SELECT content FROM messages m
		                  WHERE m.conversation_id = c.id AND m.is_deleted = 0
		                  ORDER BY m.created_at DESC, m.id DESC LIMIT 1), ''),
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.is_read = 0 AND m.is_deleted = 0)
		 FROM conversations c
		 LEFT JOIN items i ON i.id = c.item_id
		 JOIN users ou ON ou.id = CASE WHEN c.user1_id = ? THEN c.user2_id ELSE c.user1_id END
		 WHERE c.user1_id = ? OR c.user2_id = ?
		 ORDER BY c.updated_at DESC, c.id DESC`,
		userID, userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var itemID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.User1ID, &c.User2ID, &itemID, &c.CreatedAt, &c.UpdatedAt,
			&c.ItemName, &c.OtherUsername, &c.LastMessage, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if itemID.Valid {
			c.ItemID = &itemID.Int64
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// CreateMessage appends a message and bumps the conversation's activity time.
func CreateMessage(ctx context.Context, db db.DBTX, conversationID, senderID int64, messageType, content string) (*model.Message, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, message_type, content) VALUES (?, ?, ?, ?)`,
		conversationID, senderID, messageType, content,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting message id: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, conversationID,
	); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	return GetMessage(ctx, db, id)
}

// ListMessages returns a conversation's messages, oldest first.
func ListMessages(ctx context.Context, db db.DBTX, conversationID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+messageFrom+`
		 WHERE m.conversation_id = ?
		 ORDER BY m.created_at, m.id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead marks messages sent to readerID in the conversation as read.
func MarkMessagesRead(ctx context.Context, db db.DBTX, conversationID, readerID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0`,
		conversationID, readerID,
	)
	if err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}
	return nil
}

// GetMessage returns a message by ID.
func GetMessage(ctx context.Context, db db.DBTX, id int64) (*model.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+messageFrom+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// EditMessage replaces a message's content and marks it edited.
func EditMessage(ctx context.Context, db db.DBTX, id int64, content string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET content = ?, is_edited = 1, edited_at = CURRENT_TIMESTAMP WHERE id = ?`,
		content, id,
	)
	if err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// DeleteMessage soft-deletes a message, clearing its content. The row stays
// so the thread keeps its shape.
func DeleteMessage(ctx context.Context, db db.DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET content = '', is_deleted = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// CountUnreadMessages counts live messages sent to userID that are unread,
// across all of the user's conversations.
func CountUnreadMessages(ctx context.Context, db db.DBTX, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE (c.user1_id = ? OR c.user2_id = ?)
		   AND m.sender_id <> ? AND m.is_read = 0 AND m.is_deleted = 0`,
		userID, userID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}

func scanMessage(s rowScanner) (*model.Message, error) {
	m := &model.Message{}
	var editedAt sql.NullTime
	err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Type, &m.Content,
		&m.IsRead, &m.IsEdited, &m.IsDeleted, &m.CreatedAt, &editedAt, &m.SenderName)
	if err != nil {
		return nil, err
	}
	if editedAt.Valid {
		m.EditedAt = &editedAt.Time
	}
	return m, nil
}
