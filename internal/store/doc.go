// Package store provides persistent storage for the gateway.
//
// # Architecture
//
// The store package is interface-driven:
//
//   - ConversationStore: conversations and their append-only messages
//   - TaskStore: the owner's todo list
//   - Store: both of the above plus Ping and Close
//
// SQLStore implements Store on database/sql. One schema and one set of
// queries serve every supported driver:
//
//   - sqlite (modernc.org/sqlite): default, pure Go
//   - sqlite3 (github.com/mattn/go-sqlite3): cgo, system SQLite
//   - postgres (github.com/lib/pq): placeholders rebound to $N
//
// # Data Models
//
//   - Conversation: owner-scoped chat session with created/updated timestamps
//   - Message: user, assistant or tool turn, optionally carrying tool calls
//   - Task: todo item with a completion flag
//
// # Invariants
//
// Every owner-facing query carries the owner in its WHERE clause, so a
// conversation or task belonging to someone else is indistinguishable from
// one that does not exist (ErrNotFound).
//
// AppendMessage writes the message and advances the conversation's
// updated_at in one transaction. DeleteConversation removes messages and
// the conversation in one transaction.
//
// Timestamps are stored as fixed-width UTC TEXT with nanosecond precision so
// that string order equals time order on every engine. Within a conversation
// created_at is strictly increasing.
//
// Message.ToolCalls is stored as nullable JSON: nil becomes NULL and an empty
// slice becomes "[]", and both read back unchanged.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// SQLite stores use a single connection.
//
// # Testing
//
// Use NewMockStore() for unit tests; SetError injects a storage failure.
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration tests.
package store
