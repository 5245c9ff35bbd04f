// Package conversation orchestrates chat turns and owns conversation history.
//
// # Overview
//
// The Service sits between the HTTP handlers and the agent. It resolves the
// conversation for a turn, replays prior history to the agent, and persists
// both sides of the exchange:
//
//	svc := conversation.New(store, agent, logger)
//	res, err := svc.RunTurn(ctx, owner, "buy milk", conversationID)
//
// # Turn order
//
//  1. Reject messages that are empty after trimming (ErrValidation).
//  2. Resolve the conversation; unknown or foreign ids start a new one.
//  3. Snapshot history before the new message is written.
//  4. Persist the user message.
//  5. Call the agent under a timeout.
//  6. Persist the assistant message with its tool-call audit.
//
// If the agent fails, the user message stays and no reply is written.
//
// # Errors
//
// ErrValidation and ErrNotFound carry their meaning to callers. Agent and
// storage failures (ErrCollaborator, ErrStorage) are logged in full and shown
// to users only as FailureText. UserText maps any error to its caller text.
//
// # Directory
//
// List, GetMessages and Delete are owner-scoped. List previews use the first
// user message, cut to PreviewLength characters, or EmptyPreview.
package conversation
