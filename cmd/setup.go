package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/repositories"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Setup creates the config file from the template when missing, opens the configured backend
// (the sqlite driver runs its migrations on open) and optionally creates an admin account.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			r.config = loadConfig(configPath, r.logger)
		}
	}

	r.logger.Info("opening backend", "driver", r.config.Gateway.Driver)
	gw, err := r.gateway(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}

	email := cmd.String("email")
	if email == "" {
		r.writePlain("✓ Setup complete (%s)\n", r.config.Gateway.Driver)
		return nil
	}

	local, ok := gw.(interface{ Users() *repositories.UserRepository })
	if !ok {
		return fmt.Errorf("%w: accounts for the %s backend are managed by its admin UI", shared.ErrInvalidArgument, r.config.Gateway.Driver)
	}

	user := &models.User{Email: email, Name: "Admin"}
	if err := local.Users().Create(ctx, user, cmd.String("password")); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	r.logger.Info("admin created", "email", user.Email, "id", user.ID)
	r.writePlain("✓ Setup complete (%s)\n", r.config.Gateway.Driver)
	r.writePlain("Admin account: %s\n", user.Email)
	return nil
}
