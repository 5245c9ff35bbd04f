// Package config handles configuration loading for todo-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension)
// with environment variable expansion, then defaulted and validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TODO_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/todo-gateway/gateway.yaml
//  3. ~/.config/todo-gateway/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	agent:
//	  api_key: "${OPENAI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "720h"
//	agent:
//	  request_timeout: "45s"
//	conversation:
//	  agent_timeout: "60s"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	database:
//	  driver: "sqlite"          # sqlite | sqlite3 | postgres
//	  path: "./todo.db"         # sqlite drivers
//	  dsn: "postgres://..."     # postgres
//
//	auth:
//	  jwt_secret: "${TODO_GATEWAY_JWT_SECRET}"   # empty: X-User-ID header (development)
//
//	agent:
//	  provider: "openai"        # openai | rules
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//	  max_rounds: 6
//
//	logging:
//	  level: "info"             # debug | info | warn | error
//	  format: "text"            # text | json
package config
