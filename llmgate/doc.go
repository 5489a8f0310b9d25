// Package llmgate defines the LLM gateway boundary for the agent loop.
//
// A gateway accepts one chat request (ordered message history, optional
// tool schemas, system prompt) and delivers the model's output as a
// stream of incremental events correlated by a caller-chosen id:
// content deltas, reasoning deltas, a single tool-call batch, and
// exactly one terminal event (done, stopped, or error).
//
// The package provides:
//
//   - The wire types shared between the engine and any gateway
//     implementation (Request, Message, ToolCall, ToolSchema, Event).
//   - Hub, which fans streamed events out to per-correlation-id
//     subscribers and guarantees the subscription is released on every
//     terminal event and on an induced stop.
//   - GollmGateway, a gateway backed by the gollm SDK.
//   - The gateway error taxonomy and a retry policy with exponential
//     backoff for retryable call failures.
//
// Gateways must be safe for concurrent use by independent runs; only
// one stream per correlation id may be open at a time.
package llmgate
