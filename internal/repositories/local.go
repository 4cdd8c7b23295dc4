package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Local is the sqlite-backed gateway: the three record collections, users, file storage and batches.
type Local struct {
	db    *sql.DB
	files *FileStore
	songs *SongRepository
	decks *DeckRepository
	cards *CardRepository
	users *UserRepository
	auth  *LocalAuth
}

// NewLocal wires repositories over db. auth may be nil for read/write-only use (tests, CLI setup).
func NewLocal(db *sql.DB, files *FileStore, auth *LocalAuth) *Local {
	users := NewUserRepository(db)
	if auth == nil {
		auth = NewLocalAuth(users, nil, shared.GenerateID(), 0)
	}
	return &Local{
		db:    db,
		files: files,
		songs: NewSongRepository(db, files),
		decks: NewDeckRepository(db),
		cards: NewCardRepository(db),
		users: users,
		auth:  auth,
	}
}

func (l *Local) Songs() models.Collection[models.Song] { return l.songs }
func (l *Local) Decks() *DeckRepository { return l.decks }
func (l *Local) Cards() models.Collection[models.Card] { return l.cards }
func (l *Local) Users() *UserRepository { return l.users }
func (l *Local) Auth() *LocalAuth { return l.auth }
func (l *Local) Files() *FileStore { return l.files }
func (l *Local) Close() error { return l.db.Close() }

// FileURL maps a stored filename to the URL the HTTP server serves it from.
func (l *Local) FileURL(collection, id, filename string) string {
	if l.files == nil {
		return ""
	}
	return l.files.URL(collection, id, filename)
}

type storedFile struct{ collection, id, name string }

// Batch applies create (POST) and update (PATCH) requests in one transaction.
// Any failure rolls back every request and removes files written so far.
func (l *Local) Batch(ctx context.Context, reqs []models.BatchRequest) ([]models.BatchResult, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var written []storedFile
	cleanup := func() {
		for _, f := range written {
			l.files.Remove(f.collection, f.id, f.name)
		}
	}

	results := make([]models.BatchResult, 0, len(reqs))
	for i, req := range reqs {
		body, stored, err := l.applyBatchRequest(ctx, tx, req)
		if stored.name != "" {
			written = append(written, stored)
		}
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: request %d: %w", shared.ErrBatchFailed, i, err)
		}
		results = append(results, models.BatchResult{Status: http.StatusOK, Body: body})
	}

	if err := tx.Commit(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return results, nil
}

func (l *Local) applyBatchRequest(ctx context.Context, tx *sql.Tx, req models.BatchRequest) (json.RawMessage, storedFile, error) {
	collection, id, err := models.ParseRecordsPath(req.URL)
	if err != nil {
		return nil, storedFile{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	var create bool
	switch req.Method {
	case http.MethodPost:
		create = true
	case http.MethodPatch:
		if id == "" {
			return nil, storedFile{}, fmt.Errorf("%w: PATCH needs a record id", shared.ErrInvalidArgument)
		}
	default:
		return nil, storedFile{}, fmt.Errorf("%w: unsupported batch method %s", shared.ErrInvalidArgument, req.Method)
	}

	switch collection {
	case models.CollectionSongs:
		var song models.Song
		if err := decodeBody(req.Body, &song); err != nil {
			return nil, storedFile{}, err
		}
		repo := NewSongRepository(tx, l.files)
		if create {
			err = repo.Create(ctx, &song, req.Files...)
		} else {
			song.ID = id
			err = repo.Update(ctx, &song, req.Files...)
		}
		stored := storedFile{}
		if err == nil && song.Audio != "" && len(req.Files) > 0 {
			stored = storedFile{models.CollectionSongs, song.ID, song.Audio}
		}
		return encodeResult(song, err, stored)
	case models.CollectionDecks:
		var deck models.Deck
		if err := decodeBody(req.Body, &deck); err != nil {
			return nil, storedFile{}, err
		}
		repo := NewDeckRepository(tx)
		if create {
			err = repo.Create(ctx, &deck)
		} else {
			deck.ID = id
			err = repo.Update(ctx, &deck)
		}
		return encodeResult(deck, err, storedFile{})
	case models.CollectionCards:
		var card models.Card
		if err := decodeBody(req.Body, &card); err != nil {
			return nil, storedFile{}, err
		}
		repo := NewCardRepository(tx)
		if create {
			err = repo.Create(ctx, &card)
		} else {
			card.ID = id
			err = repo.Update(ctx, &card)
		}
		return encodeResult(card, err, storedFile{})
	}
	return nil, storedFile{}, fmt.Errorf("%w: unknown collection %q", shared.ErrInvalidArgument, collection)
}

func decodeBody(body map[string]any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

func encodeResult(record any, err error, stored storedFile) (json.RawMessage, storedFile, error) {
	if err != nil {
		return nil, stored, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, stored, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, stored, nil
}
