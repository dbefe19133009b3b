// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme_Modes(t *testing.T) {
	dark := NewTheme(ModeDark)
	require.NotNil(t, dark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme(ModeLight)
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())

	assert.NotNil(t, NewTheme(ModeAuto))
}

func TestThemeStylesRenderContent(t *testing.T) {
	theme := NewTheme(ModeDark)

	for name, style := range map[string]lipgloss.Style{
		"Header":          theme.Header,
		"UserBubble":      theme.UserBubble,
		"AssistantBubble": theme.AssistantBubble,
		"FailureNote":     theme.FailureNote,
		"InputContainer":  theme.InputContainer,
		"StatusBar":       theme.StatusBar,
	} {
		assert.Contains(t, style.Render("test"), "test", name)
	}
}

func TestRenderHelpersIncludeMarkers(t *testing.T) {
	assert.Contains(t, RenderError("boom"), StatusIndicators.Error)
	assert.Contains(t, RenderWarning("careful"), StatusIndicators.Warning)
	assert.Contains(t, RenderSuccess("done"), StatusIndicators.Success)
	assert.Contains(t, RenderError("boom"), "boom")
}
