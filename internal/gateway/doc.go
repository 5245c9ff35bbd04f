// Package gateway wires the todo-gateway server components together.
//
// # Overview
//
// The Gateway owns the store, the task service, the agent and the
// conversation service, and serves them over a small JSON API.
//
// # HTTP API
//
// Chat and conversation directory (api.go):
//
//   - POST /api/chat - Run one turn: {"message", "conversation_id"?}
//   - GET /api/conversations - List the caller's conversations, newest activity first
//   - GET /api/conversations/{id}/messages - Full message history
//   - DELETE /api/conversations/{id} - Delete a conversation and its messages
//
// Direct task management (tasks_api.go):
//
//   - GET /api/tasks, POST /api/tasks
//   - PUT /api/tasks/{id}, DELETE /api/tasks/{id}
//   - PUT /api/tasks/{id}/toggle
//
// Health (no auth):
//
//   - GET /health - Liveness check
//   - GET /health/ready - Store ping
//
// # Authentication
//
// With auth.jwt_secret set, /api routes require a bearer token whose
// subject is the owner id. Without a secret the X-User-ID header is trusted,
// which is only suitable for local development.
//
// # Errors
//
// Chat errors map to caller-facing text: validation failures return 400,
// unknown conversations 404, and agent or storage failures a generic 500.
// Internal details are logged, never returned.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	err = gw.Run(ctx) // returns after graceful shutdown
package gateway
