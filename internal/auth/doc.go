// Package auth identifies the owner behind each API request.
//
// # JWT Tokens
//
// API clients authenticate with HS256 JWT bearer tokens signed with the
// configured jwt_secret. The "sub" claim is the owner id that scopes every
// conversation and task:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate("user-1", 720*time.Hour)
//
// Secrets shorter than MinSecretLength are rejected.
//
// # HTTP Middleware
//
// HTTPAuthMiddleware verifies the bearer token and stores an AuthContext in
// the request context. Handlers read it with FromContext or UserID.
//
// When no secret is configured the gateway uses HeaderAuthMiddleware instead,
// which trusts the X-User-ID header. That mode is for local development only.
//
// Authentication failures are logged with a "reason" attribute and answered
// with 401 and a JSON error body.
package auth
