// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local stub completion service.
//
// The stub speaks the raw chat contract: it accepts {"messages":[...]} and
// answers with an undelimited, chunked text/plain body that is the assistant
// reply. It exists so the client can be run and tested without a model.
//
// # Endpoints
//
//   - POST /api/chat - stream a reply, one word per flush
//   - GET  /healthz  - liveness
//   - GET  /metrics  - Prometheus metrics
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:3000"})
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal().Err(err).Msg("stub server")
//	}
package server
