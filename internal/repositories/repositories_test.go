package repositories

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateSong(t *testing.T, repo *SongRepository, title string) *models.Song {
	t.Helper()
	s := &models.Song{Title: title, Artist: "Artist", Year: 1999}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	return s
}

func TestSongRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t), nil)
		song := mustCreateSong(t, repo, "Take On Me")

		if song.ID == "" || song.CreatedAt.IsZero() {
			t.Fatalf("expected id and timestamps, got %+v", song)
		}

		got, err := repo.Get(ctx, song.ID)
		if err != nil {
			t.Fatalf("failed to get song: %v", err)
		}
		if got.Title != "Take On Me" || got.Year != 1999 {
			t.Errorf("unexpected song %+v", got)
		}
	})

	t.Run("Create rejects invalid song", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t), nil)
		err := repo.Create(ctx, &models.Song{Title: "  "})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("List filters and orders newest first", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t), nil)
		mustCreateSong(t, repo, "Alpha")
		mustCreateSong(t, repo, "Beta 100%")
		mustCreateSong(t, repo, "Gamma")

		page, err := repo.List(ctx, models.ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if page.TotalItems != 3 || page.Items[0].Title != "Gamma" {
			t.Errorf("expected newest first, got %+v", page.Items)
		}

		page, err = repo.List(ctx, models.ListOptions{Filter: "100%"})
		if err != nil {
			t.Fatal(err)
		}
		if page.TotalItems != 1 || page.Items[0].Title != "Beta 100%" {
			t.Errorf("unexpected filter result %+v", page.Items)
		}

		page, err = repo.List(ctx, models.ListOptions{Sort: "title", PerPage: 2, Page: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 1 || page.Items[0].Title != "Gamma" || page.TotalPages != 2 {
			t.Errorf("unexpected second page %+v", page)
		}
	})

	t.Run("Update and soft Delete", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t), nil)
		song := mustCreateSong(t, repo, "Old")

		song.Title = "New"
		if err := repo.Update(ctx, song); err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		got, _ := repo.Get(ctx, song.ID)
		if got.Title != "New" {
			t.Errorf("expected updated title, got %s", got.Title)
		}

		if err := repo.Delete(ctx, song.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(ctx, song.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(ctx, song.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("second delete should be not found, got %v", err)
		}
	})

	t.Run("audio file is stored", func(t *testing.T) {
		dir := t.TempDir()
		files := NewFileStore(dir, "http://localhost:3000/files", 0)
		repo := NewSongRepository(setupTestDB(t), files)

		song := &models.Song{Title: "With Audio", Year: 2001}
		err := repo.Create(ctx, song, models.File{Field: "audio", Name: "My Song.mp3", Reader: strings.NewReader("data")})
		if err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if !strings.HasPrefix(song.Audio, "My_Song_") || !strings.HasSuffix(song.Audio, ".mp3") {
			t.Errorf("unexpected stored name %s", song.Audio)
		}

		data, err := os.ReadFile(filepath.Join(dir, "songs", song.ID, song.Audio))
		if err != nil || string(data) != "data" {
			t.Errorf("stored file mismatch: %q %v", data, err)
		}
		if url := files.URL("songs", song.ID, song.Audio); url != "http://localhost:3000/files/songs/"+song.ID+"/"+song.Audio {
			t.Errorf("unexpected url %s", url)
		}
	})
}

func TestFileStoreLimit(t *testing.T) {
	files := NewFileStore(t.TempDir(), "", 3)
	_, err := files.Save("songs", "x", models.File{Name: "a.mp3", Reader: strings.NewReader("toolong")})
	if !errors.Is(err, shared.ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	name, err := files.Save("songs", "x", models.File{Name: "a.mp3", Reader: io.LimitReader(strings.NewReader("abc"), 3)})
	if err != nil || name == "" {
		t.Errorf("expected small file to be stored, got %q %v", name, err)
	}
}

func TestDeckRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		repo := NewDeckRepository(setupTestDB(t))
		deck := &models.Deck{Name: "Eighties", Description: "Hits", IsActive: true}
		if err := repo.Create(ctx, deck); err != nil {
			t.Fatalf("failed to create deck: %v", err)
		}

		got, err := repo.Get(ctx, deck.ID)
		if err != nil {
			t.Fatalf("failed to get deck: %v", err)
		}
		if !got.IsActive || got.Version != "1" || len(got.Cards) != 0 || got.Cards == nil {
			t.Errorf("unexpected deck %+v", got)
		}
	})

	t.Run("SetCards checks version", func(t *testing.T) {
		repo := NewDeckRepository(setupTestDB(t))
		deck := &models.Deck{Name: "D"}
		if err := repo.Create(ctx, deck); err != nil {
			t.Fatal(err)
		}

		updated, err := repo.SetCards(ctx, deck.ID, []string{"c1", "c2"}, deck.Version)
		if err != nil {
			t.Fatalf("SetCards() error = %v", err)
		}
		if strings.Join(updated.Cards, ",") != "c1,c2" || updated.Version != "2" {
			t.Errorf("unexpected deck after write %+v", updated)
		}

		_, err = repo.SetCards(ctx, deck.ID, []string{"c9"}, deck.Version)
		if !errors.Is(err, shared.ErrStaleVersion) {
			t.Errorf("expected ErrStaleVersion, got %v", err)
		}

		got, _ := repo.Get(ctx, deck.ID)
		if strings.Join(got.Cards, ",") != "c1,c2" {
			t.Errorf("stale write must not change cards, got %v", got.Cards)
		}

		if _, err := repo.SetCards(ctx, "missing", nil, "1"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing deck, got %v", err)
		}
	})

	t.Run("SetCards retires songs list", func(t *testing.T) {
		repo := NewDeckRepository(setupTestDB(t))
		deck := &models.Deck{Name: "Old", Songs: []string{"s1", "s2"}}
		if err := repo.Create(ctx, deck); err != nil {
			t.Fatal(err)
		}

		updated, err := repo.SetCards(ctx, deck.ID, []string{"c1"}, deck.Version)
		if err != nil {
			t.Fatalf("SetCards() error = %v", err)
		}
		if len(updated.Songs) != 0 || updated.IsLegacy() {
			t.Errorf("expected songs list emptied, got %+v", updated)
		}
	})

	t.Run("SetDetails leaves cards alone", func(t *testing.T) {
		repo := NewDeckRepository(setupTestDB(t))
		deck := &models.Deck{Name: "D", Cards: []string{"c1"}}
		if err := repo.Create(ctx, deck); err != nil {
			t.Fatal(err)
		}
		moved, err := repo.SetCards(ctx, deck.ID, []string{"c1", "c2"}, "")
		if err != nil {
			t.Fatal(err)
		}

		details := models.DeckDetails{Name: "Renamed", Description: "New", IsActive: true}
		updated, err := repo.SetDetails(ctx, deck.ID, details, moved.Version)
		if err != nil {
			t.Fatalf("SetDetails() error = %v", err)
		}
		if updated.Name != "Renamed" || !updated.IsActive || strings.Join(updated.Cards, ",") != "c1,c2" {
			t.Errorf("unexpected deck after details write %+v", updated)
		}

		_, err = repo.SetDetails(ctx, deck.ID, details, deck.Version)
		if !errors.Is(err, shared.ErrStaleVersion) {
			t.Errorf("expected ErrStaleVersion, got %v", err)
		}
		if _, err := repo.SetDetails(ctx, deck.ID, models.DeckDetails{}, ""); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for empty name, got %v", err)
		}
	})

	t.Run("Update bumps version", func(t *testing.T) {
		repo := NewDeckRepository(setupTestDB(t))
		deck := &models.Deck{Name: "D", Songs: []string{"s1"}}
		if err := repo.Create(ctx, deck); err != nil {
			t.Fatal(err)
		}
		deck.Name = "Renamed"
		if err := repo.Update(ctx, deck); err != nil {
			t.Fatal(err)
		}
		if deck.Version != "2" || deck.Name != "Renamed" || len(deck.Songs) != 1 {
			t.Errorf("unexpected deck after update %+v", deck)
		}
	})
}

func TestCardRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create requires existing song", func(t *testing.T) {
		repo := NewCardRepository(setupTestDB(t))
		err := repo.Create(ctx, &models.Card{Type: models.CardSong, Song: "nope"})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Create normalizes fields", func(t *testing.T) {
		db := setupTestDB(t)
		song := mustCreateSong(t, NewSongRepository(db, nil), "Theme")
		repo := NewCardRepository(db)

		card := &models.Card{Type: models.CardOST, Song: song.ID, OST: " Main Theme ", Ad: "leftover"}
		if err := repo.Create(ctx, card); err != nil {
			t.Fatalf("failed to create card: %v", err)
		}
		got, err := repo.Get(ctx, card.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != models.CardOST || got.OST != "Main Theme" || got.Ad != "" {
			t.Errorf("unexpected card %+v", got)
		}

		got.Type = models.CardAd
		got.Ad = "Soda"
		if err := repo.Update(ctx, got); err != nil {
			t.Fatal(err)
		}
		again, _ := repo.Get(ctx, card.ID)
		if again.OST != "" || again.Ad != "Soda" {
			t.Errorf("update should clear unrelated fields, got %+v", again)
		}
	})
}

func TestLocalAuth(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	if err := users.Create(ctx, &models.User{Email: "Admin@Example.com"}, "password123"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	store := session.NewStore()
	auth := NewLocalAuth(users, store, "secret", time.Hour)

	if _, err := auth.Login(ctx, "admin@example.com", "wrong-password"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	sess, err := auth.Login(ctx, "admin@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.User.Email != "admin@example.com" || sess.User.PasswordHash != "" {
		t.Errorf("unexpected session user %+v", sess.User)
	}
	if !auth.IsValid() || sess.ExpiresAt.IsZero() {
		t.Error("expected valid session with expiry")
	}

	refreshed, err := auth.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.User.ID != sess.User.ID {
		t.Errorf("refresh changed user: %+v", refreshed.User)
	}

	auth.Logout()
	if auth.IsValid() {
		t.Error("expected invalid session after logout")
	}
	if _, err := auth.Refresh(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}

	store.Save(&session.Session{Token: "garbage"})
	if _, err := auth.Refresh(ctx); !errors.Is(err, shared.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired for bad token, got %v", err)
	}
}

func TestLocalBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("creates songs with files", func(t *testing.T) {
		dir := t.TempDir()
		local := NewLocal(setupTestDB(t), NewFileStore(dir, "/files", 0), nil)

		reqs := []models.BatchRequest{
			{Method: "POST", URL: models.RecordsPath("songs"), Body: map[string]any{"title": "One", "year": 1990},
				Files: []models.File{{Field: "audio", Name: "one.mp3", Reader: strings.NewReader("1")}}},
			{Method: "POST", URL: models.RecordsPath("songs"), Body: map[string]any{"title": "Two", "year": 1991}},
		}
		results, err := local.Batch(ctx, reqs)
		if err != nil {
			t.Fatalf("Batch() error = %v", err)
		}
		if len(results) != 2 || results[0].Status != 200 {
			t.Fatalf("unexpected results %+v", results)
		}

		page, _ := local.Songs().List(ctx, models.ListOptions{})
		if page.TotalItems != 2 {
			t.Errorf("expected 2 songs, got %d", page.TotalItems)
		}
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		local := NewLocal(setupTestDB(t), NewFileStore(t.TempDir(), "/files", 0), nil)

		reqs := []models.BatchRequest{
			{Method: "POST", URL: models.RecordsPath("songs"), Body: map[string]any{"title": "Kept?"}},
			{Method: "POST", URL: models.RecordsPath("songs"), Body: map[string]any{"title": ""}},
		}
		if _, err := local.Batch(ctx, reqs); !errors.Is(err, shared.ErrBatchFailed) {
			t.Fatalf("expected ErrBatchFailed, got %v", err)
		}

		page, _ := local.Songs().List(ctx, models.ListOptions{})
		if page.TotalItems != 0 {
			t.Errorf("expected rollback, found %d songs", page.TotalItems)
		}
	})

	t.Run("rejects unknown collections", func(t *testing.T) {
		local := NewLocal(setupTestDB(t), nil, nil)
		_, err := local.Batch(ctx, []models.BatchRequest{{Method: "POST", URL: "/api/collections/users/records"}})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
