// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the lipgloss theme for the lerit chat view.

All colors are lipgloss AdaptiveColor values, so one palette serves light
and dark terminals. NewTheme picks the side: "auto" probes the terminal
background with termenv, while "dark" and "light" force it.

# Color System (colors.go)

  - Cyan - prompts and the header
  - Purple - assistant bubbles and the streaming spinner
  - Emerald - success markers
  - Amber - cancelled responses
  - Rose - failed responses

Status text always carries an ASCII marker ([OK], [X], [!]) next to the
color.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	bubble := theme.UserBubble.Render(turn.Content)
*/
package styles
