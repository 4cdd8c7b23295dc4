package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
	"github.com/desertthunder/cardquiz/internal/ui"
)

const defaultTUILog = "./tmp/cardquiz-tui.log"

// Play opens the terminal player on one song.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	song, err := gw.Songs().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get song: %w", err)
	}
	return r.playSong(ctx, song)
}

func (r *Runner) playSong(ctx context.Context, song *models.Song) error {
	if !song.HasAudio() {
		return fmt.Errorf("%w: %s has no audio", shared.ErrNotFound, song.Label())
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	closeLog, err := r.redirectLogs()
	if err != nil {
		return err
	}
	defer closeLog()

	p := r.newPlayer()
	defer p.Close()

	model := ui.NewPlayerModel(ctx, p, song, r.audioSource(gw)(song))
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running player: %w", err)
	}
	return nil
}

// Browse lists a deck's cards and plays the selected one.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	closeLog, err := r.redirectLogs()
	if err != nil {
		return err
	}
	defer closeLog()

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	p := r.newPlayer()
	defer p.Close()

	model := ui.NewBrowserModel(ctx, composer, deckID, p, r.audioSource(gw))
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running browser: %w", err)
	}
	return nil
}

// redirectLogs sends logs to a file so they do not interfere with TUI rendering.
func (r *Runner) redirectLogs() (func(), error) {
	path := r.config.Logging.File
	if path == "" {
		path = defaultTUILog
	}

	fileLogger, f, err := shared.NewFileLogger(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())

	previous := r.logger
	r.SetLogger(fileLogger)
	return func() {
		r.SetLogger(previous)
		f.Close()
	}, nil
}
