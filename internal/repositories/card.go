package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// CardRepository implements [models.Collection] for cards. The referenced song must exist.
type CardRepository struct {
	db querier
}

// NewCardRepository creates a CardRepository with the given database connection
func NewCardRepository(db querier) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = "id, type, song_id, ost, opening, ad, year, created_at, updated_at"

var cardSortColumns = withColumns(map[string]string{"type": "type"})

func (r *CardRepository) List(ctx context.Context, opts models.ListOptions) (*models.Page[models.Card], error) {
	opts = opts.Normalize()

	where := "deleted_at IS NULL"
	var args []any
	if opts.Filter != "" {
		where += ` AND (ost LIKE ? ESCAPE '\' OR opening LIKE ? ESCAPE '\' OR ad LIKE ? ESCAPE '\')`
		p := likePattern(opts.Filter)
		args = append(args, p, p, p)
	}

	total, err := countRows(ctx, r.db, "SELECT COUNT(*) FROM cards WHERE "+where, args...)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM cards WHERE %s ORDER BY %s LIMIT ? OFFSET ?", cardColumns, where, orderBy(opts.Sort, cardSortColumns))
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return models.NewPage(opts, total, cards), nil
}

func (r *CardRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ? AND deleted_at IS NULL", id)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, notFound(err, "card", id)
	}
	return c, nil
}

// Create inserts a card after normalizing its type-specific fields.
func (r *CardRepository) Create(ctx context.Context, card *models.Card, _ ...models.File) error {
	card.Normalize()
	if err := card.Validate(); err != nil {
		return err
	}

	id := shared.GenerateID()
	now := time.Now().UTC()

	err := inTx(ctx, r.db, func(q querier) error {
		if err := songExists(ctx, q, card.Song); err != nil {
			return err
		}
		sequence, err := NextSequence(ctx, q, "cards")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO cards (id, sequence, type, song_id, ost, opening, ad, year, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sequence, card.Type, card.Song, card.OST, card.Opening, card.Ad, card.Year, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	card.ID = id
	card.CreatedAt = models.Timestamp{Time: now}
	card.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

func (r *CardRepository) Update(ctx context.Context, card *models.Card, _ ...models.File) error {
	card.Normalize()
	if err := card.Validate(); err != nil {
		return err
	}
	if err := songExists(ctx, r.db, card.Song); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE cards
		SET type = ?, song_id = ?, ost = ?, opening = ?, ad = ?, year = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		card.Type, card.Song, card.OST, card.Opening, card.Ad, card.Year, now, card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if err := mustAffect(result, "card", card.ID); err != nil {
		return err
	}
	card.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

// Delete soft-deletes a card by id.
func (r *CardRepository) Delete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, "UPDATE cards SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return mustAffect(result, "card", id)
}

func (r *CardRepository) scanRow(row scanner) (*models.Card, error) {
	var (
		c                models.Card
		created, updated time.Time
	)
	if err := row.Scan(&c.ID, &c.Type, &c.Song, &c.OST, &c.Opening, &c.Ad, &c.Year, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = models.Timestamp{Time: created}
	c.UpdatedAt = models.Timestamp{Time: updated}
	return &c, nil
}

// songExists rejects relations to missing songs the way the hosted backend does.
func songExists(ctx context.Context, q querier, id string) error {
	_, err := NewSongRepository(q, nil).Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: song %s does not exist", shared.ErrValidation, id)
	}
	return err
}
