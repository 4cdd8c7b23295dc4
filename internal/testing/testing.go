// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/repositories"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// NewGateway returns a sqlite-backed gateway over a fresh in-memory database with files stored
// in a temp dir. It is closed when the test ends.
func NewGateway(t *testing.T) gateway.Gateway {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	files := repositories.NewFileStore(t.TempDir(), "http://files.test", 0)
	gw := gateway.FromLocal(repositories.NewLocal(db, files, nil))
	t.Cleanup(func() { gw.Close() })
	return gw
}

// MustSong creates a song or fails the test.
func MustSong(t *testing.T, gw gateway.Gateway, title string, year int, files ...models.File) *models.Song {
	t.Helper()
	s := &models.Song{Title: title, Artist: "Artist " + title, Year: year}
	if err := gw.Songs().Create(context.Background(), s, files...); err != nil {
		t.Fatalf("failed to create song %q: %v", title, err)
	}
	return s
}

// MustDeck creates a deck with the given card ids or fails the test.
func MustDeck(t *testing.T, gw gateway.Gateway, name string, cards ...string) *models.Deck {
	t.Helper()
	d := &models.Deck{Name: name, Cards: cards}
	if err := gw.Decks().Create(context.Background(), d); err != nil {
		t.Fatalf("failed to create deck %q: %v", name, err)
	}
	return d
}

// MustCard creates a song card for song or fails the test.
func MustCard(t *testing.T, gw gateway.Gateway, song string) *models.Card {
	t.Helper()
	c := &models.Card{Type: models.CardSong, Song: song}
	if err := gw.Cards().Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create card: %v", err)
	}
	return c
}

// MustUser creates an admin account on a gateway from [NewGateway] or fails the test.
func MustUser(t *testing.T, gw gateway.Gateway, email, password string) *models.User {
	t.Helper()
	local, ok := gw.(interface {
		Users() *repositories.UserRepository
	})
	if !ok {
		t.Fatalf("gateway %T has no user repository", gw)
	}
	u := &models.User{Email: email, Name: "Admin"}
	if err := local.Users().Create(context.Background(), u, password); err != nil {
		t.Fatalf("failed to create user %q: %v", email, err)
	}
	return u
}

// SpyGateway wraps a gateway and counts guarded deck writes. BeforeWrite, when set, runs once
// before the next write is forwarded, letting tests simulate a concurrent editor.
type SpyGateway struct {
	gateway.Gateway
	writes      atomic.Int32
	mu          sync.Mutex
	BeforeWrite func(ctx context.Context, deckID string)
}

// NewSpyGateway wraps gw.
func NewSpyGateway(gw gateway.Gateway) *SpyGateway {
	return &SpyGateway{Gateway: gw}
}

// Writes is the number of SetCards and SetDetails calls seen.
func (s *SpyGateway) Writes() int { return int(s.writes.Load()) }

func (s *SpyGateway) Decks() gateway.Decks { return spyDecks{Decks: s.Gateway.Decks(), spy: s} }

func (s *SpyGateway) beforeWrite(ctx context.Context, deckID string) {
	s.writes.Add(1)
	s.mu.Lock()
	hook := s.BeforeWrite
	s.BeforeWrite = nil
	s.mu.Unlock()
	if hook != nil {
		hook(ctx, deckID)
	}
}

type spyDecks struct {
	gateway.Decks
	spy *SpyGateway
}

func (d spyDecks) SetCards(ctx context.Context, id string, cards []string, version string) (*models.Deck, error) {
	d.spy.beforeWrite(ctx, id)
	return d.Decks.SetCards(ctx, id, cards, version)
}

func (d spyDecks) SetDetails(ctx context.Context, id string, details models.DeckDetails, version string) (*models.Deck, error) {
	d.spy.beforeWrite(ctx, id)
	return d.Decks.SetDetails(ctx, id, details, version)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
