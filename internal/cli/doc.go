// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the lerit command line.
//
// Commands:
//
//	lerit                 chat view on a terminal, line chat otherwise
//	lerit chat            line chat with history
//	lerit ask "prompt"    one reply to stdout
//	lerit stub            local streaming completion server
//	lerit models          models of the ollama or openai transport
//	lerit config show     effective configuration
//	lerit config init     write the configuration file
//
// Every command loads configuration in the same order: TOML file, .env,
// environment, then flags. Commands that own the terminal log to the
// configured log file; the others log to stderr.
package cli
