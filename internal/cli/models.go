// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lerit/internal/cloud"
	"github.com/jeranaias/lerit/internal/ollama"
)

func newModelsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models offered by the ollama or openai transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ListModels(cmd.Context(), app.Stdout)
		},
	}
}

// ListModels prints the models of the configured transport to w.
func (a *App) ListModels(ctx context.Context, w io.Writer) error {
	tr, err := BuildTransport(a.Config.Transport)
	if err != nil {
		return err
	}

	switch t := tr.(type) {
	case *ollama.Transport:
		models, err := t.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			marker := " "
			if m.Name == t.Model() {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s %s\n", marker, LabelStyle.Render(m.Name), DimStyle.Render(m.FormatSize()))
		}
		return nil

	case *cloud.Transport:
		models, err := t.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(m.ID), DimStyle.Render(m.OwnedBy))
		}
		return nil

	default:
		return errors.Errorf("transport %q does not list models", a.Config.Transport.Kind)
	}
}
