package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/tasks"
)

// Stats prints song and deck totals.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	progressCh, wait := r.watchProgress(func(u tasks.ProgressUpdate) {
		r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
	})
	stats, err := engine.Stats(ctx, progressCh)
	wait()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Library")
	r.writePlain("Songs: %d\n", stats.Songs)
	r.writePlain("Decks: %d\n", stats.Decks)
	return nil
}
