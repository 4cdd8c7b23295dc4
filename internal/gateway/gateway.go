// Package gateway defines the record backend contract used by every other package and opens
// the configured implementation.
//
// Two backends satisfy [Gateway]: the hosted PocketBase REST API ([pocketbase.Client]) and the
// local sqlite repositories ([repositories.Local]). Callers never depend on either directly.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/pocketbase"
	"github.com/desertthunder/cardquiz/internal/repositories"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Decks is deck CRUD plus the version-checked writes.
type Decks interface {
	models.Collection[models.Deck]
	// SetCards replaces the card order if the deck is still at version, else fails with
	// [shared.ErrStaleVersion]. An empty version writes unconditionally. The earlier songs
	// list is emptied by the same write.
	SetCards(ctx context.Context, id string, cards []string, version string) (*models.Deck, error)
	// SetDetails writes everything but the card order, under the same version rule.
	SetDetails(ctx context.Context, id string, details models.DeckDetails, version string) (*models.Deck, error)
}

// Auth is session authentication against the backend's user accounts. Login and Refresh keep
// the session in [Auth.Store]; Authenticate only returns it, for callers that hold sessions
// per request.
type Auth interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Authenticate(ctx context.Context, email, password string) (*session.Session, error)
	Refresh(ctx context.Context) (*session.Session, error)
	Logout()
	IsValid() bool
	Store() *session.Store
}

// Gateway is typed CRUD over songs, decks and cards plus auth, file URLs and batched writes.
type Gateway interface {
	Songs() models.Collection[models.Song]
	Decks() Decks
	Cards() models.Collection[models.Card]
	Auth() Auth
	FileURL(collection, id, filename string) string
	Batch(ctx context.Context, reqs []models.BatchRequest) ([]models.BatchResult, error)
	Close() error
}

type pbGateway struct{ *pocketbase.Client }

func (g pbGateway) Decks() Decks { return g.Client.Decks() }
func (g pbGateway) Auth() Auth   { return g.Client.Auth() }

type localGateway struct{ *repositories.Local }

func (g localGateway) Decks() Decks { return g.Local.Decks() }
func (g localGateway) Auth() Auth   { return g.Local.Auth() }

// FromPocketBase adapts a PocketBase client.
func FromPocketBase(c *pocketbase.Client) Gateway { return pbGateway{c} }

// FromLocal adapts the sqlite backend.
func FromLocal(l *repositories.Local) Gateway { return localGateway{l} }

// Open builds the backend named by cfg.Gateway.Driver. The sqlite driver opens the database and
// applies migrations.
func Open(ctx context.Context, cfg *shared.Config, store *session.Store, logger *log.Logger) (Gateway, error) {
	if store == nil {
		store = session.NewStore()
	}

	switch cfg.Gateway.Driver {
	case "pocketbase":
		timeout := time.Duration(cfg.Gateway.Timeout) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client := pocketbase.NewClient(cfg.Gateway.URL, store,
			pocketbase.WithLogger(shared.WithLogger(logger, "gateway", "pocketbase")),
			pocketbase.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
		return FromPocketBase(client), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := shared.NewDatabase(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Path != ":memory:" {
			shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		}
		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		maxSize := int64(cfg.Import.MaxDownloadMB) << 20
		files := repositories.NewFileStore(cfg.Storage.Dir, cfg.Server.PublicURL+"/files", maxSize)
		users := repositories.NewUserRepository(db)
		ttl := time.Duration(cfg.Server.SessionHours) * time.Hour
		auth := repositories.NewLocalAuth(users, store, cfg.Server.SessionSecret, ttl)
		logger.Debug("opened local gateway", "path", cfg.Database.Path, "files", cfg.Storage.Dir)
		return FromLocal(repositories.NewLocal(db, files, auth)), nil
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrUnknownDriver, cfg.Gateway.Driver)
}
