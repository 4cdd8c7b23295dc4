// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/formatter"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// app builds the root command. Root flags are available to every subcommand; the config is
// loaded once they are parsed.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "cardquiz",
		Usage:   "Music quiz cards: songs, decks, printable QR cards and a scanner/player",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("CARDQUIZ_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error; overrides logging.level",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			r.configPath = cmd.String("config")
			r.config = loadConfig(r.configPath, r.logger)

			level := r.config.Logging.Level
			if v := cmd.String("log-level"); v != "" {
				level = v
			}
			if cmd.Bool("verbose") {
				level = "debug"
			}
			shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
			return ctx, nil
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, loginCommand, logoutCommand, statsCommand,
		songsCommand, decksCommand, scanCommand, playCommand, browseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand initializes the config file, the database and an admin account.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml, run migrations and optionally create an admin account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "email",
				Usage: "Admin email to create (sqlite backend only)",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Admin password, at least 8 characters",
			},
		},
		Action: r.Setup,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (import, player, admin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, defaults to server.host:server.port",
			},
			&cli.BoolFlag{
				Name:  "secure-cookies",
				Usage: "Mark session cookies Secure (behind TLS termination)",
			},
		},
		Action: r.Serve,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in to the backend and keep the session for later commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Account email, defaults to gateway.email",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password, defaults to gateway.password",
			},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the saved session",
		Action: r.Logout,
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show song and deck totals",
		Flags:  jsonFlags(),
		Action: r.Stats,
	}
}

func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Song library operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List songs, newest first",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Match title, artist or album",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
				}, jsonFlags()...),
				Action: r.SongsList,
			},
			{
				Name:      "show",
				Usage:     "Show one song",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.SongsShow,
			},
			{
				Name:  "create",
				Usage: "Create a song, optionally uploading its audio",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Song title", Required: true},
					&cli.StringFlag{Name: "artist", Usage: "Artist"},
					&cli.StringFlag{Name: "album", Usage: "Album"},
					&cli.IntFlag{Name: "year", Usage: "Release year"},
					&cli.StringFlag{Name: "audio", Usage: "Audio file to upload"},
				},
				Action: r.SongsCreate,
			},
			{
				Name:      "edit",
				Usage:     "Change a song's fields or replace its audio",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Song title"},
					&cli.StringFlag{Name: "artist", Usage: "Artist"},
					&cli.StringFlag{Name: "album", Usage: "Album"},
					&cli.IntFlag{Name: "year", Usage: "Release year"},
					&cli.StringFlag{Name: "audio", Usage: "Audio file replacing the current one"},
				},
				Action: r.SongsEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete a song",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.SongsDelete,
			},
			{
				Name:      "import-url",
				Usage:     "Import a song from a video URL",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "encoding",
						Usage: "Encoding id, defaults to the highest bitrate",
					},
					&cli.BoolFlag{
						Name:  "info",
						Usage: "Only list title and encodings",
					},
					&cli.StringFlag{
						Name:  "via",
						Usage: "Base URL of a running cardquiz server to fetch through",
					},
					&cli.StringFlag{Name: "title", Usage: "Song title, defaults to the video title"},
					&cli.StringFlag{Name: "artist", Usage: "Artist, defaults to the channel"},
					&cli.StringFlag{Name: "album", Usage: "Album"},
					&cli.IntFlag{Name: "year", Usage: "Release year, defaults to a year in the title"},
				},
				Action: r.SongsImportURL,
			},
			{
				Name:      "bulk-import",
				Usage:     "Import audio files and directories",
				ArgsUsage: "<path> [path...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent uploads, defaults to import.workers",
					},
					&cli.BoolFlag{
						Name:  "batch",
						Usage: "Send every file in one batch request per 50 files",
					},
				},
				Action: r.SongsBulkImport,
			},
			{
				Name:      "qr",
				Usage:     "Write the QR code PNG for a song",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, defaults to <id>.png",
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "Image edge in pixels",
						Value: formatter.QRSize,
					},
				},
				Action: r.SongsQR,
			},
		},
	}
}

func decksCommand(r *Runner) *cli.Command {
	deckArg := []cli.Argument{&cli.StringArg{Name: "deck"}}
	deckCardArgs := []cli.Argument{&cli.StringArg{Name: "deck"}, &cli.StringArg{Name: "card"}}

	return &cli.Command{
		Name:  "decks",
		Usage: "Deck composition and export",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List decks",
				Flags:  jsonFlags(),
				Action: r.DecksList,
			},
			{
				Name:  "create",
				Usage: "Create an empty deck",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Deck name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Deck description"},
					&cli.BoolFlag{Name: "inactive", Usage: "Create the deck as inactive"},
				},
				Action: r.DecksCreate,
			},
			{
				Name:      "edit",
				Usage:     "Change a deck's name, description or active flag",
				Arguments: deckArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Deck name"},
					&cli.StringFlag{Name: "description", Usage: "Deck description"},
					&cli.BoolFlag{Name: "active", Usage: "Mark the deck active"},
					&cli.BoolFlag{Name: "inactive", Usage: "Mark the deck inactive"},
				},
				Action: r.DecksEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete a deck",
				Arguments: deckArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cards", Usage: "Also delete the deck's card records"},
				},
				Action: r.DecksDelete,
			},
			{
				Name:      "show",
				Usage:     "Show a deck's cards in order",
				Arguments: deckArg,
				Flags:     jsonFlags(),
				Action:    r.DecksShow,
			},
			{
				Name:      "add-card",
				Usage:     "Append a card to a deck",
				Arguments: deckArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "song, ost, opening or ad", Value: "song"},
					&cli.StringFlag{Name: "song", Usage: "Song id", Required: true},
					&cli.StringFlag{Name: "text", Usage: "Title shown on ost/opening/ad cards"},
					&cli.StringFlag{Name: "year", Usage: "Year override"},
				},
				Action: r.DecksAddCard,
			},
			{
				Name:      "edit-card",
				Usage:     "Change a card in a deck",
				Arguments: deckCardArgs,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "song, ost, opening or ad"},
					&cli.StringFlag{Name: "song", Usage: "Song id"},
					&cli.StringFlag{Name: "text", Usage: "Title shown on ost/opening/ad cards"},
					&cli.StringFlag{Name: "year", Usage: "Year override"},
				},
				Action: r.DecksEditCard,
			},
			{
				Name:      "remove-card",
				Usage:     "Remove a card from a deck",
				Arguments: deckCardArgs,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "delete", Usage: "Also delete the card record"},
				},
				Action: r.DecksRemoveCard,
			},
			{
				Name:      "move",
				Usage:     "Move a card one position up or down",
				Arguments: deckCardArgs,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "up or down", Required: true},
				},
				Action: r.DecksMove,
			},
			{
				Name:      "export-pdf",
				Usage:     "Render printable card sheets",
				Arguments: deckArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file, defaults to <deck>.pdf"},
					&cli.BoolFlag{Name: "open", Usage: "Open the PDF when done"},
				},
				Action: r.DecksExportPDF,
			},
			{
				Name:      "export-csv",
				Usage:     "Export a deck's cards as CSV",
				Arguments: deckArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file, defaults to <deck>_cards.csv"},
				},
				Action: r.DecksExportCSV,
			},
		},
	}
}

func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan card photos for a song QR code",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "Photo of a card; repeat to scan several frames",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: defaultScanTimeout,
			},
			&cli.BoolFlag{
				Name:  "play",
				Usage: "Open the player on the scanned song",
			},
		},
		Action: r.Scan,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a song in the terminal player",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Action:    r.Play,
	}
}

func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "Browse a deck and play its cards",
		Arguments: []cli.Argument{&cli.StringArg{Name: "deck"}},
		Action:    r.Browse,
	}
}
