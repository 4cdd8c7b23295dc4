package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/player"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
	"github.com/desertthunder/cardquiz/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	store      *session.Store
	gw         gateway.Gateway
	video      services.VideoService
	opener     player.Opener
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Gateway, Video and Opener are normally built from the config on first use; tests inject them.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Gateway    gateway.Gateway
	Video      services.VideoService
	Opener     player.Opener
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      session.NewStore(),
		gw:         opts.Gateway,
		video:      opts.Video,
		opener:     opts.Opener,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger, e.g. with a file logger while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// gateway opens the configured backend once. A saved CLI session is restored first and kept in
// sync with the session file afterwards.
func (r *Runner) gateway(ctx context.Context) (gateway.Gateway, error) {
	if r.gw != nil {
		return r.gw, nil
	}

	if path := r.config.Gateway.SessionFile; path != "" {
		if sess, err := loadSession(path); err == nil {
			r.store.Save(sess)
		} else if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("ignoring unreadable session file", "path", path, "error", err)
		}
		r.store.OnChange(func(sess *session.Session) {
			if err := saveSession(path, sess); err != nil {
				r.logger.Warn("failed to persist session", "path", path, "error", err)
			}
		})
	}

	gw, err := gateway.Open(ctx, r.config, r.store, shared.WithLogger(r.logger, "component", "gateway"))
	if err != nil {
		return nil, err
	}
	r.gw = gw
	return gw, nil
}

// Close releases the gateway if one was opened.
func (r *Runner) Close() error {
	if r.gw == nil {
		return nil
	}
	return r.gw.Close()
}

func (r *Runner) engine(ctx context.Context) (*tasks.Engine, error) {
	gw, err := r.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewEngine(gw, r.videoService(), shared.WithLogger(r.logger, "component", "tasks")), nil
}

func (r *Runner) composer(ctx context.Context) (*decks.Composer, error) {
	gw, err := r.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return decks.NewComposer(gw, shared.WithLogger(r.logger, "component", "decks")), nil
}

func (r *Runner) videoService() services.VideoService {
	if r.video == nil {
		r.video = services.NewYouTubeService(
			services.WithHTTPClient(r.httpClient),
			services.WithMaxDownload(int64(r.config.Import.MaxDownloadMB)<<20),
		)
	}
	return r.video
}

func (r *Runner) audioOpener() player.Opener {
	if r.opener == nil {
		r.opener = &player.BeepOpener{Client: r.httpClient, Logger: shared.WithLogger(r.logger, "component", "player")}
	}
	return r.opener
}

func (r *Runner) newPlayer() *player.Player {
	return player.New(r.audioOpener(),
		player.WithSkip(time.Duration(r.config.Player.SkipSeconds)*time.Second),
		player.WithLogger(shared.WithLogger(r.logger, "component", "player")),
	)
}

// audioSource plays straight from the storage directory when the local backend owns the files,
// so no server has to be running.
func (r *Runner) audioSource(gw gateway.Gateway) func(*models.Song) string {
	return func(song *models.Song) string {
		if r.config.Gateway.Driver == "sqlite" {
			return filepath.Join(r.config.Storage.Dir, models.CollectionSongs, song.ID, song.Audio)
		}
		return gw.FileURL(models.CollectionSongs, song.ID, song.Audio)
	}
}

func loadSession(path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if !sess.Valid(time.Now()) {
		return nil, fmt.Errorf("%w: saved session", shared.ErrSessionExpired)
	}
	return &sess, nil
}

// saveSession writes sess to path, or removes the file when sess is nil.
func saveSession(path string, sess *session.Session) error {
	if sess == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// watchProgress prints updates until the returned function is called, then waits for the
// printer to drain.
func (r *Runner) watchProgress(print func(tasks.ProgressUpdate)) (chan tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			print(update)
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
