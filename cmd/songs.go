package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/formatter"
	"github.com/desertthunder/cardquiz/internal/metadata"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
	"github.com/desertthunder/cardquiz/internal/tasks"
)

// SongsList prints one page of songs, newest first.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	page, err := gw.Songs().List(ctx, models.ListOptions{
		Filter: cmd.String("query"),
		Sort:   "-createdAt",
		Page:   int(cmd.Int("page")),
	})
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	r.writePlain("Songs (page %d of %d, %d total)\n\n", page.Page, max(page.TotalPages, 1), page.TotalItems)
	for _, song := range page.Items {
		year := "----"
		if song.Year > 0 {
			year = fmt.Sprintf("%d", song.Year)
		}
		audio := ""
		if !song.HasAudio() {
			audio = " (no audio)"
		}
		r.writePlain("%s  %s  %s%s\n", song.ID, year, song.Label(), audio)
	}
	return nil
}

// SongsShow prints one song.
func (r *Runner) SongsShow(ctx context.Context, cmd *cli.Command) error {
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

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}

	r.writePlainHeader(song.Title)
	r.writePlain("ID:     %s\n", song.ID)
	r.writePlain("Artist: %s\n", song.Artist)
	r.writePlain("Album:  %s\n", song.Album)
	r.writePlain("Year:   %d\n", song.Year)
	if song.HasAudio() {
		r.writePlain("Audio:  %s\n", r.audioSource(gw)(song))
	} else {
		r.writePlain("Audio:  none\n")
	}
	return nil
}

// SongsCreate creates a song, uploading --audio when given.
func (r *Runner) SongsCreate(ctx context.Context, cmd *cli.Command) error {
	audio, closeAudio, err := openAudio(cmd.String("audio"))
	if err != nil {
		return err
	}
	defer closeAudio()

	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	song := &models.Song{
		Title:  cmd.String("title"),
		Artist: cmd.String("artist"),
		Album:  cmd.String("album"),
		Year:   int(cmd.Int("year")),
	}
	if err := engine.CreateSong(ctx, song, audio); err != nil {
		return err
	}

	r.writePlain("✓ Created song %s (%s)\n", song.Label(), song.ID)
	return nil
}

// SongsEdit changes the flags that were set and replaces the audio with --audio.
func (r *Runner) SongsEdit(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	var patch tasks.SongPatch
	for _, f := range []struct {
		name string
		dst  **string
	}{{"title", &patch.Title}, {"artist", &patch.Artist}, {"album", &patch.Album}} {
		if cmd.IsSet(f.name) {
			v := cmd.String(f.name)
			*f.dst = &v
		}
	}
	if cmd.IsSet("year") {
		year := int(cmd.Int("year"))
		patch.Year = &year
	}

	audio, closeAudio, err := openAudio(cmd.String("audio"))
	if err != nil {
		return err
	}
	defer closeAudio()

	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	song, err := engine.UpdateSong(ctx, id, patch, audio)
	if err != nil {
		return err
	}

	r.writePlain("✓ Updated song %s (%s)\n", song.Label(), song.ID)
	return nil
}

// openAudio opens an audio file for upload. An empty path yields no file.
func openAudio(path string) (*models.File, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	src := tasks.FileSource(path)
	if !metadata.IsAudioFile(src.Name, src.ContentType) {
		return nil, nil, fmt.Errorf("%w: %s is not an audio file", shared.ErrInvalidArgument, path)
	}
	f, err := src.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audio: %w", err)
	}
	file := &models.File{Field: "audio", Name: filepath.Base(path), ContentType: src.ContentType, Reader: f}
	return file, func() { f.Close() }, nil
}

// SongsDelete removes a song record and its audio.
func (r *Runner) SongsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	if err := gw.Songs().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	r.writePlain("✓ Deleted song %s\n", id)
	return nil
}

// SongsImportURL downloads one encoding of a video and creates a song from it. With --info it
// only lists the available encodings.
func (r *Runner) SongsImportURL(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: video url", shared.ErrMissingArgument)
	}

	if via := cmd.String("via"); via != "" {
		r.video = services.NewImportClient(via, r.httpClient)
	}

	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("info") {
		info, err := engine.FetchInfo(ctx, url)
		if err != nil {
			return err
		}
		r.writePlainHeader(info.Title)
		r.writePlain("Author:   %s\n", info.Author)
		r.writePlain("Duration: %s\n\n", metadata.FormatDuration(info.Duration()))
		for _, enc := range info.Encodings {
			r.writePlain("  %-6s %-8s %4d kbps  %s/%s\n", enc.EncodingID, enc.QualityLabel, enc.Bitrate, enc.Container, enc.Codec)
		}
		return nil
	}

	progressCh, wait := r.watchProgress(func(u tasks.ProgressUpdate) {
		r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
	})
	result, err := engine.ImportURL(ctx, progressCh, tasks.URLImportRequest{
		URL:        url,
		EncodingID: cmd.String("encoding"),
		Title:      cmd.String("title"),
		Artist:     cmd.String("artist"),
		Album:      cmd.String("album"),
		Year:       int(cmd.Int("year")),
	})
	wait()
	if err != nil {
		return err
	}

	r.writePlain("✓ Imported %s (%s)\n", result.Song.Label(), result.Song.ID)
	return nil
}

// SongsBulkImport creates one song per audio file found under the given paths.
func (r *Runner) SongsBulkImport(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file or directory", shared.ErrMissingArgument)
	}

	sources, err := tasks.CollectFiles(paths)
	if err != nil {
		return err
	}

	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	progressCh, wait := r.watchProgress(func(u tasks.ProgressUpdate) {
		if u.Phase == tasks.ScanFiles {
			r.writePlain("%s\n", u.Message)
			return
		}
		r.writePlain("[%3d%%] %s\n", u.Percent(), u.Message)
	})

	var result *tasks.BulkImportResult
	if cmd.Bool("batch") {
		result, err = engine.BatchImport(ctx, progressCh, sources)
	} else {
		workers := int(cmd.Int("workers"))
		if workers <= 0 {
			workers = r.config.Import.Workers
		}
		result, err = engine.BulkImport(ctx, progressCh, sources, tasks.BulkImportOpts{
			Workers:   workers,
			RateLimit: r.config.Import.RateLimit,
		})
	}
	wait()
	if err != nil {
		return err
	}

	r.writePlainln("Imported %d of %d files in %s", result.SuccessCount, result.Total, time.Since(start).Round(time.Millisecond))
	for _, item := range result.Items {
		if item.Err != nil {
			r.writePlain("  ✗ %s: %v\n", item.Name, item.Err)
		}
	}
	if len(result.Skipped) > 0 {
		r.writePlain("Skipped %d non-audio files\n", len(result.Skipped))
	}
	if result.FailedCount > 0 && result.SuccessCount == 0 {
		return fmt.Errorf("%w: no files were imported", shared.ErrValidation)
	}
	return nil
}

// SongsQR writes a song's QR code as a PNG.
func (r *Runner) SongsQR(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}
	if _, err := gw.Songs().Get(ctx, id); err != nil {
		return fmt.Errorf("failed to get song: %w", err)
	}

	path, err := formatter.WriteSongQR(id, cmd.String("output"), int(cmd.Int("size")))
	if err != nil {
		return err
	}

	r.writePlain("✓ QR code written to %s\n", path)
	return nil
}
