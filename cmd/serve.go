package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/server"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	// Requests carry their own sessions; a saved CLI login must not back anonymous calls.
	r.config.Gateway.SessionFile = ""
	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	opts := server.Options{
		Gateway:       gw,
		Video:         r.videoService(),
		Secret:        r.config.Server.SessionSecret,
		SessionTTL:    time.Duration(r.config.Server.SessionHours) * time.Hour,
		MaxUpload:     int64(r.config.Import.MaxDownloadMB) << 20,
		SecureCookies: cmd.Bool("secure-cookies"),
		Logger:        shared.WithLogger(r.logger, "component", "server"),
	}
	if r.config.Gateway.Driver == "sqlite" {
		opts.FilesDir = r.config.Storage.Dir
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	return server.New(opts).ListenAndServe(ctx, addr)
}
