package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// Login authenticates with flag or config credentials. The session is written to
// gateway.session_file through the store subscription set up when the gateway opens.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	email := cmd.String("email")
	if email == "" {
		email = r.config.Gateway.Email
	}
	password := cmd.String("password")
	if password == "" {
		password = r.config.Gateway.Password
	}
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required (flags or gateway.email/gateway.password)", shared.ErrMissingArgument)
	}

	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	sess, err := gw.Auth().Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.logger.Info("logged in", "email", sess.User.Email)
	r.writePlain("✓ Logged in as %s\n", sess.User.Email)
	if !sess.ExpiresAt.IsZero() {
		r.writePlain("Session expires: %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Logout clears the session and its file.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	if !gw.Auth().IsValid() {
		r.writePlain("Not logged in\n")
		return nil
	}

	gw.Auth().Logout()
	r.writePlain("✓ Logged out\n")
	return nil
}
