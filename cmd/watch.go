package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch joins a session topic and runs the terminal remote until the user quits.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	base := r.serverURL(cmd)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/jukebox-watch.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	c, snap, err := client.Dial(ctx, base, cmd.String("session"))
	if err != nil {
		return fmt.Errorf("failed to join session: %w", err)
	}
	defer c.Close()

	r.logger.Info("joined session", "session", c.Topic(), "server", base)

	model := ui.NewModel(c, snap)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running remote: %w", err)
	}

	return nil
}
