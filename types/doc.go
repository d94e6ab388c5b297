// Package types provides core type definitions for the handshake engine.
//
// This package defines the value types that flow between the engine, its
// protocol modules, and the caller: credential records, field metadata,
// execution contexts and results, authentication flow steps, handshake
// status, token status, and timeout configuration.
//
// # Credentials
//
// A Credential holds the configuration and secret material for one
// handshake with a provider:
//
//	cred := &types.Credential{
//	    ID:       "crd-1",
//	    Protocol: "api-key",
//	    Fields: map[string]any{
//	        "apiKey": "k_1",
//	    },
//	}
//
// Credentials are caller-owned. The engine mutates token fields in place
// (for example after a transparent refresh) but never persists them.
//
// # Execution
//
// ExecutionContext describes one outgoing call and is immutable for the
// duration of that call. ExecutionResult is created fresh per call and
// never mutated after return:
//
//	res, err := engine.Execute(ctx, types.ExecutionContext{
//	    URL:        "https://api.example.com/v1/me",
//	    Method:     "GET",
//	    Credential: cred,
//	})
//
// # Flow Steps
//
// FlowStep describes one step of a possibly multi-round login process.
// Step kinds are prompt, redirect, complete, and error. A redirect step
// hands an authorization URL to the caller and expects the flow to resume
// with provider-returned data merged into the next Authenticate call.
//
// # Status
//
// Status models the handshake state machine: unconfigured, configuring,
// authenticated, expired, and error. CanTransition validates edges.
//
// All types support JSON marshaling and unmarshaling.
package types
