// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements transport.Transport for OpenAI-compatible chat
// completion servers (llama.cpp server, vLLM, LM Studio, LocalAI).
//
// Responses are read as Server-Sent Events. Each data event carries a JSON
// chunk whose choices[0].delta.content is forwarded to the engine as raw
// bytes; the literal "[DONE]" event ends the stream.
//
// # Key Types
//
//   - Transport: resty-backed client for /chat/completions and /models
//   - SSEReader: Server-Sent Events parser
//   - StreamChunk: one decoded completion chunk
//
// # Usage
//
//	t := cloud.NewTransport(cloud.Config{
//	    BaseURL: "http://127.0.0.1:8080/v1",
//	    Model:   "local",
//	})
//	eng := engine.New(t)
//
// No credentials are sent.
package cloud
