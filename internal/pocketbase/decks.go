package pocketbase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// DeckCollection adds the guarded writes to deck CRUD.
//
// The deck's version token is its system "updated" timestamp. PocketBase has no conditional
// update, so each guarded write compares the token against a fresh read right before patching;
// the remaining window is a single round trip instead of a whole edit session.
type DeckCollection struct {
	Collection[models.Deck]
}

// SetCards writes the card order if the deck is still at version. An empty version skips the check.
// The earlier songs list is emptied with it, so the card order is the only order left.
func (d *DeckCollection) SetCards(ctx context.Context, id string, cards []string, version string) (*models.Deck, error) {
	if cards == nil {
		cards = []string{}
	}
	body := map[string]any{"cards": cards, "songs": []string{}}
	deck, err := d.patchAt(ctx, id, version, body)
	if err != nil {
		return nil, fmt.Errorf("update deck %s cards: %w", id, err)
	}
	return deck, nil
}

// SetDetails writes name, description and the active flag if the deck is still at version.
// The card order is never sent.
func (d *DeckCollection) SetDetails(ctx context.Context, id string, details models.DeckDetails, version string) (*models.Deck, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{"name": details.Name, "description": details.Description, "isActive": details.IsActive}
	deck, err := d.patchAt(ctx, id, version, body)
	if err != nil {
		return nil, fmt.Errorf("update deck %s: %w", id, err)
	}
	return deck, nil
}

func (d *DeckCollection) patchAt(ctx context.Context, id, version string, body map[string]any) (*models.Deck, error) {
	current, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version != "" && current.Version != version {
		return nil, fmt.Errorf("%w: deck %s is at %s, expected %s", shared.ErrStaleVersion, id, current.Version, version)
	}

	var updated models.Deck
	if err := d.client.doRequest(ctx, http.MethodPatch, d.path(id), body, nil, &updated); err != nil {
		return nil, err
	}
	stampDeckVersion(&updated)
	return &updated, nil
}

func stampDeckVersion(d *models.Deck) {
	if !d.UpdatedAt.IsZero() {
		d.Version = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
}
