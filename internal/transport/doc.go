// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport defines how the conversation engine reaches a completion
// service.
//
// A Transport sends the submission payload and returns a ChunkStream: a pull
// iterator over raw response bytes. The engine treats every failure the same
// way (non-2xx status, connection error or premature close all surface as
// *Error), so transports only have to classify, never to recover.
//
// # Implementations
//
//   - HTTP: POSTs {"messages":[...]} and streams the raw response body
//   - ollama.Transport: Ollama /api/chat NDJSON frames (package ollama)
//   - cloud.Transport: OpenAI-compatible SSE (package cloud)
//
// # Usage
//
//	t := transport.NewHTTP(transport.HTTPConfig{URL: "http://127.0.0.1:3000/api/chat"})
//	stream, err := t.Send(ctx, payload)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package transport
