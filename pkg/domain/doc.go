// Package domain contains the core value types of the docweave engine:
// messages, nodes, step results, approval requests and observability events.
//
// The types here are transport-agnostic. Adapters (HTTP, MCP, CLI) map them
// to their own wire formats; the engine consumes them as-is.
package domain
