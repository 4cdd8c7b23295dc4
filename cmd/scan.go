package main

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/scanner"
	"github.com/desertthunder/cardquiz/internal/shared"
)

const defaultScanTimeout = 30 * time.Second

// Scan runs a scan session over card photos and prints the first song it recognizes.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.StringSlice("image")
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one --image", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Photos are decoded whole; the centred scan box only applies to live previews.
	qr := scanner.NewQRDecoder()
	decode := scanner.DecoderFunc(func(img image.Image, _ image.Rectangle) (string, error) {
		return qr.Decode(img, image.Rectangle{})
	})

	scanned := make(chan string, 1)
	session := scanner.NewSession(scanner.Config{
		Env:      scanner.Environment{Secure: true},
		FPS:      r.config.Scanner.FPS,
		Camera:   &scanner.ImageCamera{Paths: paths},
		Decoder:  decode,
		Validate: scanner.SongValidator(gw.Songs()),
		Navigate: func(payload string) { scanned <- payload },
		OnInvalid: func(payload string, err error) {
			r.writePlain("✗ %q is not a card in this library\n", payload)
		},
		Logger: shared.WithLogger(r.logger, "component", "scanner"),
	})

	if err := session.Start(scanCtx); err != nil {
		return fmt.Errorf("scanner failed to start: %w", err)
	}
	defer func() {
		session.Stop()
		<-session.Done()
	}()

	var songID string
	select {
	case songID = <-scanned:
	case <-scanCtx.Done():
		return fmt.Errorf("no card recognized within %s: %w", timeout, scanCtx.Err())
	}

	song, err := gw.Songs().Get(ctx, songID)
	if err != nil {
		return fmt.Errorf("failed to get song: %w", err)
	}

	r.writePlain("✓ %s (%s)\n", song.Label(), song.ID)
	if song.Year > 0 {
		r.writePlain("Year: %d\n", song.Year)
	}

	if cmd.Bool("play") {
		return r.playSong(ctx, song)
	}
	return nil
}
