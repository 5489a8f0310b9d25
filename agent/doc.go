// Package agent implements the think, act, observe loop that drives a
// language model toward answering a user request with tools.
//
// A run alternates three streamed model calls per iteration. The think
// phase analyzes the conversation and emits a machine-read directive
// saying whether to continue. The act phase issues tool calls, which
// are executed directly when every call is auto-confirmable and
// otherwise parked on the assistant message until a human approves
// them. The observe phase summarizes the fresh tool results. The loop
// ends when the directive says stop, when the act phase produces no
// calls, when the iteration cap is reached, or when the run is stopped.
package agent
