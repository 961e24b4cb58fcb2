// Package api defines the Chat Completions data model shared by the client,
// the SSE decoder, and the benchmark harness.
//
// The types mirror the OpenAI-style wire protocol:
//
//   - Completion is a full, non-streamed response whose choices carry a Message.
//   - Chunk is one decoded streaming event whose choices carry a Delta.
//   - Model and ModelList describe the /models catalog.
//
// Decoding is tolerant: every scalar field has a default that is substituted
// when the field is absent, null, or of an unexpected type. Only a document
// whose top level is not a JSON object produces a *DecodeError.
//
// The error taxonomy (TransportError, TimeoutError, ProtocolError,
// DecodeError) lives here as well so that callers can discriminate failures
// with errors.As without importing the transport package.
package api
