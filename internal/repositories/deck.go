package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// DeckRepository implements [models.Collection] for decks. Card order is stored as a JSON
// array; every write bumps an integer version used to reject stale card-order writes.
type DeckRepository struct {
	db querier
}

// NewDeckRepository creates a DeckRepository with the given database connection
func NewDeckRepository(db querier) *DeckRepository {
	return &DeckRepository{db: db}
}

const deckColumns = "id, name, description, is_active, cards, songs, version, created_at, updated_at"

var deckSortColumns = withColumns(map[string]string{"name": "name"})

func (r *DeckRepository) List(ctx context.Context, opts models.ListOptions) (*models.Page[models.Deck], error) {
	opts = opts.Normalize()

	where := "deleted_at IS NULL"
	var args []any
	if opts.Filter != "" {
		where += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		p := likePattern(opts.Filter)
		args = append(args, p, p)
	}

	total, err := countRows(ctx, r.db, "SELECT COUNT(*) FROM decks WHERE "+where, args...)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM decks WHERE %s ORDER BY %s LIMIT ? OFFSET ?", deckColumns, where, orderBy(opts.Sort, deckSortColumns))
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decks: %w", err)
	}
	return models.NewPage(opts, total, decks), nil
}

func (r *DeckRepository) Get(ctx context.Context, id string) (*models.Deck, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deckColumns+" FROM decks WHERE id = ? AND deleted_at IS NULL", id)
	d, err := r.scanRow(row)
	if err != nil {
		return nil, notFound(err, "deck", id)
	}
	return d, nil
}

// Create inserts a deck. Decks carry no files.
func (r *DeckRepository) Create(ctx context.Context, deck *models.Deck, _ ...models.File) error {
	if err := deck.Validate(); err != nil {
		return err
	}
	cards, songs := encodeIDs(deck.Cards), encodeIDs(deck.Songs)
	id := shared.GenerateID()
	now := time.Now().UTC()

	err := inTx(ctx, r.db, func(q querier) error {
		sequence, err := NextSequence(ctx, q, "decks")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO decks (id, sequence, name, description, is_active, cards, songs, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			id, sequence, deck.Name, deck.Description, deck.IsActive, cards, songs, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert deck: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	deck.ID = id
	deck.Version = "1"
	deck.CreatedAt = models.Timestamp{Time: now}
	deck.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

// Update writes every deck field. It is unconditional; card-order edits go through [DeckRepository.SetCards].
func (r *DeckRepository) Update(ctx context.Context, deck *models.Deck, _ ...models.File) error {
	if err := deck.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE decks
		SET name = ?, description = ?, is_active = ?, cards = ?, songs = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		deck.Name, deck.Description, deck.IsActive, encodeIDs(deck.Cards), encodeIDs(deck.Songs), now, deck.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	if err := mustAffect(result, "deck", deck.ID); err != nil {
		return err
	}

	fresh, err := r.Get(ctx, deck.ID)
	if err != nil {
		return err
	}
	*deck = *fresh
	return nil
}

// SetCards replaces the card order only if the deck is still at version, and empties the
// earlier songs list. An empty version writes unconditionally.
func (r *DeckRepository) SetCards(ctx context.Context, id string, cards []string, version string) (*models.Deck, error) {
	return r.updateAt(ctx, id, version, "cards = ?, songs = '[]'", encodeIDs(cards))
}

// SetDetails updates name, description and the active flag only if the deck is still at
// version. The card order is left alone.
func (r *DeckRepository) SetDetails(ctx context.Context, id string, details models.DeckDetails, version string) (*models.Deck, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return r.updateAt(ctx, id, version, "name = ?, description = ?, is_active = ?", details.Name, details.Description, details.IsActive)
}

// updateAt applies set with a version bump, guarded by version when it is non-empty.
func (r *DeckRepository) updateAt(ctx context.Context, id, version, set string, args ...any) (*models.Deck, error) {
	query := "UPDATE decks SET " + set + ", version = version + 1, updated_at = ? WHERE id = ? AND deleted_at IS NULL"
	args = append(args, time.Now().UTC(), id)
	if version != "" {
		v, err := strconv.Atoi(version)
		if err != nil {
			return nil, fmt.Errorf("%w: bad deck version %q", shared.ErrInvalidArgument, version)
		}
		query += " AND version = ?"
		args = append(args, v)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update deck: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: deck %s is no longer at version %s", shared.ErrStaleVersion, id, version)
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes a deck by id.
func (r *DeckRepository) Delete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, "UPDATE decks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return mustAffect(result, "deck", id)
}

func (r *DeckRepository) scanRow(row scanner) (*models.Deck, error) {
	var (
		d                models.Deck
		cards, songs     string
		version          int
		created, updated time.Time
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.IsActive, &cards, &songs, &version, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cards), &d.Cards); err != nil {
		return nil, fmt.Errorf("failed to decode deck cards: %w", err)
	}
	if err := json.Unmarshal([]byte(songs), &d.Songs); err != nil {
		return nil, fmt.Errorf("failed to decode deck songs: %w", err)
	}
	if d.Cards == nil {
		d.Cards = []string{}
	}
	d.Version = strconv.Itoa(version)
	d.CreatedAt = models.Timestamp{Time: created}
	d.UpdatedAt = models.Timestamp{Time: updated}
	return &d, nil
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ids)
	return string(data)
}
