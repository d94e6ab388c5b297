// Package handshake provides a protocol handshake engine for authenticating
// against third-party HTTP providers and executing authenticated calls.
//
// The engine hides the differences between authentication protocols behind
// one module contract: API keys, the OAuth2 grant family, GitHub App
// installation tokens, SOAP with WS-Security, GraphQL, WebSocket upgrades,
// raw command templates, and unauthenticated scraping all present the same
// operations to callers.
//
// # Core Concepts
//
// The engine is organized around several key concepts:
//
//   - Protocol modules: pluggable handshake implementations registered by name
//   - Credentials: caller-owned records holding fields, tokens, and flow status
//   - Flows: bounded multi-step authentication sequences with validation up front
//   - Token lifecycle: refresh-before-call with per-credential serialization
//   - Execution pipeline: placeholder substitution, bounded timeouts,
//     transient-failure retry, and response normalization
//
// # Getting Started
//
// Create an engine and authenticate a credential:
//
//	import "github.com/apilink-dev/handshake"
//
//	engine, err := handshake.NewEngine(
//		handshake.WithLogger(logger),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cred := &types.Credential{
//		ID:       "cred-1",
//		Protocol: "api-key",
//		Fields:   map[string]any{"apiKey": key},
//	}
//	step, err := engine.Authenticate(ctx, cred, 1, nil)
//
// Once authenticated, execute calls through the same engine:
//
//	result, err := engine.Execute(ctx, types.ExecutionContext{
//		URL:        "https://api.example.com/v1/items/{{id}}",
//		Values:     map[string]string{"id": "42"},
//		Credential: cred,
//	})
//
// # Custom Protocols
//
// Implement the protocol.Module interface and register it:
//
//	engine.Protocols().Register(myModule)
//
// Modules built on protocol/base inherit sensible defaults for token
// lifecycle and health probing.
//
// # Observability
//
// Logging uses log/slog with secrets masked before emission. Tracing and
// metrics are wired through OpenTelemetry when a tracer or meter is
// supplied.
package handshake
