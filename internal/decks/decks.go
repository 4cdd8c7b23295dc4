// Package decks composes and orders the cards of a deck.
//
// Every mutation reads the deck, changes its card array in memory and writes the whole array
// back through [gateway.Decks.SetCards] with the version it read. When another writer got there
// first the write is rejected and the mutation is re-applied to a fresh read, up to
// [Composer.MaxRetries] times, so concurrent edits are never silently dropped. Detail edits go
// through [gateway.Decks.SetDetails] under the same rule and never carry the card order.
package decks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Direction of a reorder.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("%w: direction must be up or down, got %q", shared.ErrInvalidArgument, s)
}

// CardInput is the data needed to create a card. Text is the ost/opening/ad title.
type CardInput struct {
	Type models.CardType
	Song string
	Text string
	Year string
}

// Card builds the normalized record for the input.
func (in CardInput) Card() models.Card {
	c := models.Card{Type: in.Type, Song: in.Song, Year: in.Year}
	switch in.Type {
	case models.CardOST:
		c.OST = in.Text
	case models.CardOpening:
		c.Opening = in.Text
	case models.CardAd:
		c.Ad = in.Text
	}
	c.Normalize()
	return c
}

// RemoveOptions controls what happens to the card record after it leaves the deck.
type RemoveOptions struct {
	// DeleteRecord also deletes the card record. Left false, the card stays as an orphan
	// and can be re-added to another deck.
	DeleteRecord bool
}

// Composer edits deck card lists through a gateway.
type Composer struct {
	gw         gateway.Gateway
	logger     *log.Logger
	MaxRetries int
}

// NewComposer creates a composer. A nil logger discards output.
func NewComposer(gw gateway.Gateway, logger *log.Logger) *Composer {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Composer{gw: gw, logger: logger, MaxRetries: 3}
}

// aliases maps the song ids of a converted legacy deck to the cards that replaced them, so ids
// taken from an earlier listing keep working.
type aliases map[string]string

func (a aliases) card(id string) string {
	if to, ok := a[id]; ok {
		return to
	}
	return id
}

// mutateFunc returns the new card order, or ok=false when nothing should be written.
type mutateFunc func(cards []string, ids aliases) (next []string, ok bool, err error)

// guarded runs write against a fresh read of the deck, re-reading and re-running it while it
// fails with a stale version.
func (c *Composer) guarded(ctx context.Context, deckID string, write func(deck *models.Deck) (*models.Deck, error)) (*models.Deck, error) {
	for attempt := 0; ; attempt++ {
		deck, err := c.gw.Decks().Get(ctx, deckID)
		if err != nil {
			return nil, err
		}

		updated, err := write(deck)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, shared.ErrStaleVersion) || attempt >= c.MaxRetries {
			return nil, err
		}
		c.logger.Warn("deck changed during edit, re-applying", "deck", deckID, "attempt", attempt+1)
	}
}

// mutate runs read → mutate → guarded write. A deck still on the songs list is converted to
// song cards first.
func (c *Composer) mutate(ctx context.Context, deckID string, fn mutateFunc) (*models.Deck, error) {
	ids := aliases{}
	return c.guarded(ctx, deckID, func(deck *models.Deck) (*models.Deck, error) {
		if deck.IsLegacy() {
			adopted, err := c.adopt(ctx, deck, ids)
			if err != nil {
				return nil, err
			}
			deck = adopted
		}

		next, ok, err := fn(deck.CardIDs(), ids)
		if err != nil {
			return nil, err
		}
		if !ok {
			return deck, nil
		}
		return c.gw.Decks().SetCards(ctx, deckID, next, deck.Version)
	})
}

// adopt creates one song card per entry of the deck's songs list and writes them as the card
// order. The created cards are deleted again when the write fails.
func (c *Composer) adopt(ctx context.Context, deck *models.Deck, ids aliases) (*models.Deck, error) {
	created := make([]string, 0, len(deck.Songs))
	undo := func() {
		for _, id := range created {
			if err := c.gw.Cards().Delete(ctx, id); err != nil {
				c.logger.Warn("failed to delete unused card", "deck", deck.ID, "card", id, "error", err)
			}
		}
	}

	for _, songID := range deck.Songs {
		card := CardInput{Type: models.CardSong, Song: songID}.Card()
		if err := c.gw.Cards().Create(ctx, &card); err != nil {
			undo()
			return nil, fmt.Errorf("failed to convert song %s to a card: %w", songID, err)
		}
		created = append(created, card.ID)
	}

	updated, err := c.gw.Decks().SetCards(ctx, deck.ID, created, deck.Version)
	if err != nil {
		undo()
		return nil, err
	}
	for i, songID := range deck.Songs {
		ids[songID] = created[i]
	}
	c.logger.Info("converted songs list to cards", "deck", deck.ID, "cards", len(created))
	return updated, nil
}

// AppendCard validates the input, creates the card record and appends it to the deck.
func (c *Composer) AppendCard(ctx context.Context, deckID string, in CardInput) (*models.Card, error) {
	card := in.Card()
	if err := card.Validate(); err != nil {
		return nil, err
	}
	if err := c.gw.Cards().Create(ctx, &card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	_, err := c.mutate(ctx, deckID, func(cards []string, _ aliases) ([]string, bool, error) {
		return append(cards, card.ID), true, nil
	})
	if err != nil {
		return &card, fmt.Errorf("card %s created but not added to deck %s: %w", card.ID, deckID, err)
	}
	c.logger.Info("card added", "deck", deckID, "card", card.ID, "type", card.Type)
	return &card, nil
}

// RemoveCard filters cardID out of the deck and optionally deletes the record.
func (c *Composer) RemoveCard(ctx context.Context, deckID, cardID string, opts RemoveOptions) (*models.Deck, error) {
	var target string
	deck, err := c.mutate(ctx, deckID, func(cards []string, ids aliases) ([]string, bool, error) {
		target = ids.card(cardID)
		if !slices.Contains(cards, target) {
			return nil, false, fmt.Errorf("%w: card %s is not in deck %s", shared.ErrNotFound, cardID, deckID)
		}
		return slices.DeleteFunc(cards, func(id string) bool { return id == target }), true, nil
	})
	if err != nil {
		return nil, err
	}

	if opts.DeleteRecord {
		if err := c.gw.Cards().Delete(ctx, target); err != nil {
			return deck, fmt.Errorf("card removed from deck but record not deleted: %w", err)
		}
	}
	c.logger.Info("card removed", "deck", deckID, "card", target, "deleted", opts.DeleteRecord)
	return deck, nil
}

// Move swaps cardID with its neighbour. Moving the first card up or the last card down returns
// the unchanged order without writing.
func (c *Composer) Move(ctx context.Context, deckID, cardID string, dir Direction) ([]string, error) {
	deck, err := c.mutate(ctx, deckID, func(cards []string, ids aliases) ([]string, bool, error) {
		i := slices.Index(cards, ids.card(cardID))
		if i < 0 {
			return nil, false, fmt.Errorf("%w: card %s is not in deck %s", shared.ErrNotFound, cardID, deckID)
		}
		j := i - 1
		if dir == Down {
			j = i + 1
		}
		if j < 0 || j >= len(cards) {
			return cards, false, nil
		}
		cards[i], cards[j] = cards[j], cards[i]
		return cards, true, nil
	})
	if err != nil {
		return nil, err
	}
	return deck.CardIDs(), nil
}

// MoveUp moves cardID one position toward the front.
func (c *Composer) MoveUp(ctx context.Context, deckID, cardID string) ([]string, error) {
	return c.Move(ctx, deckID, cardID, Up)
}

// MoveDown moves cardID one position toward the back.
func (c *Composer) MoveDown(ctx context.Context, deckID, cardID string) ([]string, error) {
	return c.Move(ctx, deckID, cardID, Down)
}

// UpdateCard normalizes and saves an edited card. Deck order is untouched.
func (c *Composer) UpdateCard(ctx context.Context, card *models.Card) error {
	card.Normalize()
	if err := card.Validate(); err != nil {
		return err
	}
	return c.gw.Cards().Update(ctx, card)
}

// CardPatch names the card fields to change; nil fields keep their value. Changing the type
// carries the current title text over to the new type unless Text is set too.
type CardPatch struct {
	Type *models.CardType `json:"type"`
	Song *string          `json:"song"`
	Text *string          `json:"text"`
	Year *string          `json:"year"`
}

func (p CardPatch) apply(card *models.Card) {
	in := CardInput{Type: card.Type, Song: card.Song, Text: card.Text(), Year: card.Year}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Song != nil {
		in.Song = *p.Song
	}
	if p.Text != nil {
		in.Text = *p.Text
	}
	if p.Year != nil {
		in.Year = *p.Year
	}

	edited := in.Card()
	card.Type, card.Song, card.Year = edited.Type, edited.Song, edited.Year
	card.OST, card.Opening, card.Ad = edited.OST, edited.Opening, edited.Ad
}

// EditCard applies patch to a card of the deck and saves it through [Composer.UpdateCard].
func (c *Composer) EditCard(ctx context.Context, deckID, cardID string, patch CardPatch) (*models.Card, error) {
	var target string
	_, err := c.mutate(ctx, deckID, func(cards []string, ids aliases) ([]string, bool, error) {
		target = ids.card(cardID)
		if !slices.Contains(cards, target) {
			return nil, false, fmt.Errorf("%w: card %s is not in deck %s", shared.ErrNotFound, cardID, deckID)
		}
		return cards, false, nil
	})
	if err != nil {
		return nil, err
	}

	card, err := c.gw.Cards().Get(ctx, target)
	if err != nil {
		return nil, err
	}
	patch.apply(card)
	if err := c.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	c.logger.Info("card updated", "deck", deckID, "card", card.ID, "type", card.Type)
	return card, nil
}

// DeckPatch names the deck details to change; nil fields keep their value.
type DeckPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (p DeckPatch) apply(d models.DeckDetails) models.DeckDetails {
	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		d.Description = strings.TrimSpace(*p.Description)
	}
	if p.IsActive != nil {
		d.IsActive = *p.IsActive
	}
	return d
}

// UpdateDeck applies patch to the deck's details. The card order is never part of the write,
// and a deck changed in the meantime gets the patch applied again to its fresh details.
func (c *Composer) UpdateDeck(ctx context.Context, deckID string, patch DeckPatch) (*models.Deck, error) {
	deck, err := c.guarded(ctx, deckID, func(deck *models.Deck) (*models.Deck, error) {
		details := patch.apply(deck.Details())
		if err := details.Validate(); err != nil {
			return nil, err
		}
		return c.gw.Decks().SetDetails(ctx, deckID, details, deck.Version)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("deck updated", "deck", deckID, "name", deck.Name, "active", deck.IsActive)
	return deck, nil
}

// DeleteDeck deletes the deck. With DeleteRecord set its card records are deleted too; cards
// that are already gone are skipped.
func (c *Composer) DeleteDeck(ctx context.Context, deckID string, opts RemoveOptions) error {
	deck, err := c.gw.Decks().Get(ctx, deckID)
	if err != nil {
		return err
	}
	if err := c.gw.Decks().Delete(ctx, deckID); err != nil {
		return err
	}

	if opts.DeleteRecord {
		var errs []error
		for _, id := range deck.Cards {
			if err := c.gw.Cards().Delete(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("deck %s deleted but not all of its cards: %w", deckID, err)
		}
	}
	c.logger.Info("deck deleted", "deck", deckID, "cards", len(deck.Cards), "cards_deleted", opts.DeleteRecord)
	return nil
}

// Cards resolves the deck's cards in order, and the song behind each card. Failures are recorded
// per item and never abort the listing. Decks from the older schema with only a songs list yield
// synthesized song cards whose ids are the song ids; the first edit of such a deck converts them
// to real cards and still accepts those ids.
func (c *Composer) Cards(ctx context.Context, deckID string) (*models.Deck, []models.CardWithSong, error) {
	deck, err := c.gw.Decks().Get(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}

	if deck.IsLegacy() {
		items := make([]models.CardWithSong, 0, len(deck.Songs))
		for _, songID := range deck.Songs {
			item := models.CardWithSong{Card: models.Card{ID: songID, Type: models.CardSong, Song: songID}}
			c.resolveSong(ctx, &item)
			items = append(items, item)
		}
		return deck, items, nil
	}

	items := make([]models.CardWithSong, 0, len(deck.Cards))
	for _, cardID := range deck.Cards {
		item := models.CardWithSong{Card: models.Card{ID: cardID}}
		card, err := c.gw.Cards().Get(ctx, cardID)
		if err != nil {
			c.logger.Warn("failed to resolve card", "deck", deckID, "card", cardID, "error", err)
			item.Err = err.Error()
			items = append(items, item)
			continue
		}
		item.Card = *card
		c.resolveSong(ctx, &item)
		items = append(items, item)
	}
	return deck, items, nil
}

func (c *Composer) resolveSong(ctx context.Context, item *models.CardWithSong) {
	if item.Card.Song == "" {
		return
	}
	song, err := c.gw.Songs().Get(ctx, item.Card.Song)
	if err != nil {
		c.logger.Warn("failed to resolve song", "card", item.Card.ID, "song", item.Card.Song, "error", err)
		item.Err = err.Error()
		return
	}
	item.Song = song
}
