// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements transport.Transport over the Ollama chat API.
//
// Ollama streams /api/chat responses as newline-delimited JSON frames. The
// transport decodes each frame and hands message.content to the engine as a
// raw chunk, so the rest of the pipeline sees the same byte stream it would
// get from a plain-text endpoint.
//
// # Key Types
//
//   - Transport: resty-backed client for /api/chat, /api/tags and health checks
//   - Frame: one NDJSON line of a streaming chat response
//   - StreamStats: timing and token counts taken from the final frame
//
// # Usage
//
//	t := ollama.NewTransport(ollama.Config{Model: "llama3.2"})
//	eng := engine.New(t)
//
// A frame carrying an "error" field, or a body that ends before the
// done frame, terminates the stream with a *transport.Error.
package ollama
