// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/model"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// MarkdownRenderer renders completed assistant turns with glamour. The
// underlying renderer is rebuilt only when the wrap width changes.
type MarkdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer for a glamour standard style
// ("dark" or "light").
func NewMarkdownRenderer(style string) *MarkdownRenderer {
	return &MarkdownRenderer{style: style}
}

// Render renders content wrapped to width. It returns content unchanged if
// glamour fails.
func (mr *MarkdownRenderer) Render(content string, width int) string {
	if mr.renderer == nil || mr.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(mr.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Debug().Err(err).Msg("markdown renderer unavailable")
			return content
		}
		mr.renderer = r
		mr.width = width
	}

	out, err := mr.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// TURN RENDERING
// =============================================================================

const (
	streamingCursor = "▌"
	minBubbleWidth  = 20
)

// bubbleWidth is the widest a message bubble may grow within width.
func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < minBubbleWidth {
		w = minBubbleWidth
	}
	return w
}

// fit sizes style to content, capped at maxWidth.
func fit(style lipgloss.Style, content string, maxWidth int) lipgloss.Style {
	inner := maxWidth - style.GetHorizontalFrameSize()
	if w := lipgloss.Width(content); w < inner {
		inner = w
	}
	if inner < 1 {
		inner = 1
	}
	return style.Width(inner + style.GetHorizontalPadding())
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return m.theme.Placeholder.Render("Say something to start the conversation.")
	}

	width := m.viewport.Width
	blocks := make([]string, 0, len(m.transcript))
	for _, turn := range m.transcript {
		blocks = append(blocks, m.renderTurn(turn, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderTurn(turn model.Turn, width int) string {
	maxWidth := bubbleWidth(width)

	if turn.Role == model.RoleUser {
		bubble := fit(m.theme.UserBubble, turn.Content, maxWidth).Render(turn.Content)
		label := m.theme.RoleLabel.Render(turn.Role.DisplayName())
		block := lipgloss.JoinVertical(lipgloss.Right, label, bubble)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}

	body := m.assistantBody(turn, maxWidth-m.theme.AssistantBubble.GetHorizontalFrameSize())
	bubble := fit(m.theme.AssistantBubble, body, maxWidth).Render(body)
	label := m.theme.RoleLabel.Render(turn.Role.DisplayName())
	return lipgloss.JoinVertical(lipgloss.Left, label, bubble)
}

// assistantBody renders the inside of an assistant bubble for each status.
func (m Model) assistantBody(turn model.Turn, width int) string {
	switch turn.Status {
	case model.StatusOpen:
		if turn.IsEmpty() {
			return m.spinner.View() + " Thinking..."
		}
		return turn.Content + streamingCursor

	case model.StatusFailed:
		note := m.theme.FailureNote.Render(turn.Error)
		if turn.Error == engine.MessageCancelled {
			note = m.theme.CancelNote.Render(turn.Error)
		}
		if turn.IsEmpty() {
			return note
		}
		return turn.Content + "\n" + note

	default:
		if m.markdown != nil && !turn.IsEmpty() {
			return m.markdown.Render(turn.Content, width)
		}
		return turn.Content
	}
}
