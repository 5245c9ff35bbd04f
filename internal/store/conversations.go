// ABOUTME: Conversation and message persistence for SQLStore
// ABOUTME: Message appends and conversation deletes run in single transactions

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateConversation inserts a new conversation row.
func (s *SQLStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, owner, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		conv.ID,
		conv.Owner,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "owner", conv.Owner)
	return nil
}

// GetConversation retrieves a conversation by id for the given owner.
// Returns ErrNotFound if it doesn't exist or belongs to someone else.
func (s *SQLStore) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	query := `
		SELECT id, owner, created_at, updated_at
		FROM conversations
		WHERE id = ? AND owner = ?
	`

	var conv Conversation
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, s.rebind(query), id, owner).Scan(
		&conv.ID,
		&conv.Owner,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if conv.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// ListConversations returns the owner's conversations, most recently active
// first, each with the content of its earliest user message.
func (s *SQLStore) ListConversations(ctx context.Context, owner string) ([]*ConversationSummary, error) {
	query := `
		SELECT c.id, c.owner, c.created_at, c.updated_at,
			(SELECT m.content FROM messages m
			 WHERE m.conversation_id = c.id AND m.role = 'user'
			 ORDER BY m.created_at ASC, m.id ASC
			 LIMIT 1)
		FROM conversations c
		WHERE c.owner = ?
		ORDER BY c.updated_at DESC, c.id DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), owner)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*ConversationSummary
	for rows.Next() {
		var conv ConversationSummary
		var createdAtStr, updatedAtStr string
		var firstUser sql.NullString

		if err := rows.Scan(
			&conv.ID,
			&conv.Owner,
			&createdAtStr,
			&updatedAtStr,
			&firstUser,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}

		if conv.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if conv.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		conv.FirstUserMessage = firstUser.String
		conv.HasUserMessage = firstUser.Valid

		convs = append(convs, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// TouchConversation advances updated_at to at. It never moves the timestamp
// backwards. Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.touch(ctx, tx, id, at)
	})
}

func (s *SQLStore) touch(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	ts := formatTime(at)
	result, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE conversations
		SET updated_at = CASE WHEN updated_at < ? THEN ? ELSE updated_at END
		WHERE id = ?
	`), ts, ts, id)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// lockConversation takes the conversation's row lock for the rest of tx.
// The no-op UPDATE blocks other appenders on postgres until commit and makes
// a SQLite transaction the writer before it reads anything.
func (s *SQLStore) lockConversation(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE conversations SET updated_at = updated_at WHERE id = ?`,
	), id)
	if err != nil {
		return fmt.Errorf("locking conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the owner's conversation and all of its messages
// in one transaction. Returns ErrNotFound if it isn't visible to owner.
func (s *SQLStore) DeleteConversation(ctx context.Context, owner, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT 1 FROM conversations WHERE id = ? AND owner = ?`,
		), id, owner).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying conversation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM messages WHERE conversation_id = ?`,
		), id); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM conversations WHERE id = ? AND owner = ?`,
		), id, owner); err != nil {
			return fmt.Errorf("deleting conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted conversation", "id", id, "owner", owner)
	return nil
}

// AppendMessage inserts msg and touches its conversation in one transaction.
//
// created_at is nudged forward when needed so it is strictly after every
// message already in the conversation; the stored value is written back to msg.
// Appends to the same conversation are serialized on the conversation row, so
// concurrent turns interleave but never share or reorder timestamps.
func (s *SQLStore) AppendMessage(ctx context.Context, msg *Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}

	toolCalls, err := encodeToolCalls(msg.ToolCalls)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockConversation(ctx, tx, msg.ConversationID); err != nil {
			return err
		}

		var last sql.NullString
		if err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT MAX(created_at) FROM messages WHERE conversation_id = ?`,
		), msg.ConversationID).Scan(&last); err != nil {
			return fmt.Errorf("querying last message time: %w", err)
		}
		if last.Valid {
			lastAt, err := parseTime(last.String)
			if err != nil {
				return fmt.Errorf("parsing last message time: %w", err)
			}
			if !msg.CreatedAt.After(lastAt) {
				msg.CreatedAt = lastAt.Add(time.Microsecond)
			}
		}

		if err := s.touch(ctx, tx, msg.ConversationID, msg.CreatedAt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO messages (id, conversation_id, role, content, tool_calls, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`),
			msg.ID,
			msg.ConversationID,
			string(msg.Role),
			msg.Content,
			toolCalls,
			formatTime(msg.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("saved message", "id", msg.ID, "conversation_id", msg.ConversationID, "role", msg.Role)
	return nil
}

// ListMessages returns every message in the conversation in chronological order.
// Ties on created_at are broken by id.
func (s *SQLStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, tool_calls, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var role, createdAtStr string
		var toolCalls sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &toolCalls, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Role = Role(role)

		if msg.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		if msg.ToolCalls, err = decodeToolCalls(toolCalls); err != nil {
			return nil, err
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// encodeToolCalls maps nil to SQL NULL and anything else, including an
// empty slice, to a JSON array.
func encodeToolCalls(calls []ToolCall) (any, error) {
	if calls == nil {
		return nil, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encoding tool calls: %w", err)
	}
	return string(data), nil
}

func decodeToolCalls(col sql.NullString) ([]ToolCall, error) {
	if !col.Valid {
		return nil, nil
	}
	calls := []ToolCall{}
	if err := json.Unmarshal([]byte(col.String), &calls); err != nil {
		return nil, fmt.Errorf("decoding tool calls: %w", err)
	}
	return calls, nil
}
