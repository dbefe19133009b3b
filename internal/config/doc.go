// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates lerit configuration.
//
// Values are resolved in this order, later sources winning:
//   - Built-in defaults (Default)
//   - ~/.lerit/config.toml, or the file given with --config
//   - A .env file in the working directory (only fills variables that are unset)
//   - LERIT_* environment variables
//   - Command-line flags (applied by the cli package)
//
// # Example config.toml
//
//	[transport]
//	kind = "ollama"
//	url = "http://127.0.0.1:11434"
//	model = "llama3.2"
//	connect_timeout = "10s"
//
//	[engine]
//	busy_policy = "supersede"
//
//	[ui]
//	max_fps = 30
//	markdown = true
//
//	[log]
//	level = "info"
package config
