package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/formatter"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// deckResponse is the JSON shape of decks show.
type deckResponse struct {
	Deck  *models.Deck          `json:"deck"`
	Cards []models.CardWithSong `json:"cards"`
}

// DecksList prints every deck with its card count.
func (r *Runner) DecksList(ctx context.Context, cmd *cli.Command) error {
	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	var all []models.Deck
	for page := 1; ; page++ {
		result, err := gw.Decks().List(ctx, models.ListOptions{Sort: "name", Page: page, PerPage: 100})
		if err != nil {
			return fmt.Errorf("failed to list decks: %w", err)
		}
		all = append(all, result.Items...)
		if page >= result.TotalPages {
			break
		}
	}

	if cmd.Bool("json") {
		if all == nil {
			all = []models.Deck{}
		}
		return r.writeJSON(all, cmd.Bool("pretty"))
	}

	r.writePlain("Decks (%d)\n\n", len(all))
	for _, deck := range all {
		status := ""
		if !deck.IsActive {
			status = " (inactive)"
		}
		r.writePlain("%s  %-30s %3d cards%s\n", deck.ID, deck.Name, len(deck.Cards), status)
	}
	return nil
}

// DecksCreate creates an empty deck.
func (r *Runner) DecksCreate(ctx context.Context, cmd *cli.Command) error {
	gw, err := r.gateway(ctx)
	if err != nil {
		return err
	}

	deck := &models.Deck{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		IsActive:    !cmd.Bool("inactive"),
		Cards:       []string{},
	}
	if err := gw.Decks().Create(ctx, deck); err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}

	r.writePlain("✓ Created deck %q (%s)\n", deck.Name, deck.ID)
	return nil
}

// DecksEdit changes a deck's name, description or active flag without touching its cards.
func (r *Runner) DecksEdit(ctx context.Context, cmd *cli.Command) error {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}
	if cmd.Bool("active") && cmd.Bool("inactive") {
		return fmt.Errorf("%w: --active and --inactive together", shared.ErrInvalidArgument)
	}

	var patch decks.DeckPatch
	if cmd.IsSet("name") {
		name := cmd.String("name")
		patch.Name = &name
	}
	if cmd.IsSet("description") {
		desc := cmd.String("description")
		patch.Description = &desc
	}
	switch {
	case cmd.Bool("active"):
		active := true
		patch.IsActive = &active
	case cmd.Bool("inactive"):
		active := false
		patch.IsActive = &active
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	deck, err := composer.UpdateDeck(ctx, deckID, patch)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}

	r.writePlain("✓ Updated deck %q (%s)\n", deck.Name, deck.ID)
	return nil
}

// DecksDelete deletes a deck, and its card records with --cards.
func (r *Runner) DecksDelete(ctx context.Context, cmd *cli.Command) error {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	if err := composer.DeleteDeck(ctx, deckID, decks.RemoveOptions{DeleteRecord: cmd.Bool("cards")}); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}

	r.writePlain("✓ Deleted deck %s\n", deckID)
	return nil
}

// DecksShow prints the deck's cards in order with their resolved songs.
func (r *Runner) DecksShow(ctx context.Context, cmd *cli.Command) error {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	deck, cards, err := composer.Cards(ctx, deckID)
	if err != nil {
		return fmt.Errorf("failed to load deck: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(deckResponse{Deck: deck, Cards: cards}, cmd.Bool("pretty"))
	}

	text, err := formatter.ExportToText(deck, cards)
	if err != nil {
		return err
	}
	r.writePlain("%s", text)
	return nil
}

// DecksAddCard creates a card and appends it to the deck.
func (r *Runner) DecksAddCard(ctx context.Context, cmd *cli.Command) error {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}

	cardType, err := models.ParseCardType(cmd.String("type"))
	if err != nil {
		return err
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	card, err := composer.AppendCard(ctx, deckID, decks.CardInput{
		Type: cardType,
		Song: cmd.String("song"),
		Text: cmd.String("text"),
		Year: cmd.String("year"),
	})
	if err != nil {
		return fmt.Errorf("failed to add card: %w", err)
	}

	r.writePlain("✓ Added %s card %s\n", card.Type.Label(), card.ID)
	return nil
}

// DecksEditCard changes one card of the deck. Unset flags keep the card's values.
func (r *Runner) DecksEditCard(ctx context.Context, cmd *cli.Command) error {
	deckID, cardID := cmd.StringArg("deck"), cmd.StringArg("card")
	if deckID == "" || cardID == "" {
		return fmt.Errorf("%w: deck and card ids", shared.ErrMissingArgument)
	}

	var patch decks.CardPatch
	if cmd.IsSet("type") {
		cardType, err := models.ParseCardType(cmd.String("type"))
		if err != nil {
			return err
		}
		patch.Type = &cardType
	}
	for _, f := range []struct {
		name string
		dst  **string
	}{{"song", &patch.Song}, {"text", &patch.Text}, {"year", &patch.Year}} {
		if cmd.IsSet(f.name) {
			v := cmd.String(f.name)
			*f.dst = &v
		}
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	card, err := composer.EditCard(ctx, deckID, cardID, patch)
	if err != nil {
		return fmt.Errorf("failed to edit card: %w", err)
	}

	r.writePlain("✓ Updated %s card %s\n", card.Type.Label(), card.ID)
	return nil
}

// DecksRemoveCard takes a card out of the deck order, deleting the record with --delete.
func (r *Runner) DecksRemoveCard(ctx context.Context, cmd *cli.Command) error {
	deckID, cardID := cmd.StringArg("deck"), cmd.StringArg("card")
	if deckID == "" || cardID == "" {
		return fmt.Errorf("%w: deck and card ids", shared.ErrMissingArgument)
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	deck, err := composer.RemoveCard(ctx, deckID, cardID, decks.RemoveOptions{DeleteRecord: cmd.Bool("delete")})
	if err != nil {
		return fmt.Errorf("failed to remove card: %w", err)
	}

	r.writePlain("✓ Removed card %s, %d cards left\n", cardID, len(deck.Cards))
	return nil
}

// DecksMove swaps a card with its neighbour.
func (r *Runner) DecksMove(ctx context.Context, cmd *cli.Command) error {
	deckID, cardID := cmd.StringArg("deck"), cmd.StringArg("card")
	if deckID == "" || cardID == "" {
		return fmt.Errorf("%w: deck and card ids", shared.ErrMissingArgument)
	}

	dir, err := decks.ParseDirection(cmd.String("dir"))
	if err != nil {
		return err
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return err
	}

	order, err := composer.Move(ctx, deckID, cardID, dir)
	if err != nil {
		return fmt.Errorf("failed to move card: %w", err)
	}

	for i, id := range order {
		marker := " "
		if id == cardID {
			marker = "*"
		}
		r.writePlain("%s %2d. %s\n", marker, i+1, id)
	}
	return nil
}

// DecksExportPDF renders the deck's printable card sheets.
func (r *Runner) DecksExportPDF(ctx context.Context, cmd *cli.Command) error {
	deck, cards, err := r.deckCards(ctx, cmd)
	if err != nil {
		return err
	}

	path, err := formatter.WritePDFExport(deck.Name, cards, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("pdf exported", "deck", deck.ID, "cards", len(cards), "path", path)
	r.writePlain("✓ Exported %d cards to %s\n", len(cards), path)

	if cmd.Bool("open") {
		if err := shared.OpenExternal(path); err != nil {
			r.logger.Warn("failed to open pdf", "path", path, "error", err)
		}
	}
	return nil
}

// DecksExportCSV writes the deck's cards as CSV.
func (r *Runner) DecksExportCSV(ctx context.Context, cmd *cli.Command) error {
	deck, cards, err := r.deckCards(ctx, cmd)
	if err != nil {
		return err
	}

	path, err := formatter.WriteCSVExport(deck, cards, cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d cards to %s\n", len(cards), path)
	return nil
}

func (r *Runner) deckCards(ctx context.Context, cmd *cli.Command) (*models.Deck, []models.CardWithSong, error) {
	deckID := cmd.StringArg("deck")
	if deckID == "" {
		return nil, nil, fmt.Errorf("%w: deck id", shared.ErrMissingArgument)
	}

	composer, err := r.composer(ctx)
	if err != nil {
		return nil, nil, err
	}

	deck, cards, err := composer.Cards(ctx, deckID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deck: %w", err)
	}
	return deck, cards, nil
}
