// package formatter renders decks and songs for print and export (CSV, plain text, PDF, QR codes)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
)

// ExportToCSV converts a deck's resolved cards to CSV with columns: Position, Card ID, Type, Title, Artist, Year, Song ID, Error
func ExportToCSV(cards []models.CardWithSong) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Card ID", "Type", "Title", "Artist", "Year", "Song ID", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, c := range cards {
		record := []string{
			strconv.Itoa(i + 1),
			c.Card.ID,
			c.Card.Type.String(),
			c.Title(),
			c.Artist(),
			c.DisplayYear(),
			c.SongID(),
			c.Err,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a deck and its cards to a plain text listing
func ExportToText(deck *models.Deck, cards []models.CardWithSong) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Deck: %s\n", deck.Name))
	if deck.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", deck.Description))
	}
	buf.WriteString(fmt.Sprintf("Cards: %d\n\n", len(cards)))

	for i, c := range cards {
		if c.Err != "" {
			buf.WriteString(fmt.Sprintf("%d. [%s] %s (error: %s)\n", i+1, c.Card.Type.Label(), c.Card.ID, c.Err))
			continue
		}
		line := fmt.Sprintf("%d. [%s] %s", i+1, c.Card.Type.Label(), c.Title())
		if artist := c.Artist(); artist != "" {
			line += " - " + artist
		}
		buf.WriteString(fmt.Sprintf("%s (%s)\n", line, c.DisplayYear()))
	}

	return buf.Bytes(), nil
}

// CSVFilename is the default CSV export name for a deck.
func CSVFilename(deckName string) string {
	return fileStem(deckName) + "_cards.csv"
}

// PDFFilename is the default PDF name for a deck, spaces replaced with underscores.
func PDFFilename(deckName string) string {
	return fileStem(deckName) + "_cards.pdf"
}

func fileStem(name string) string {
	stem := strings.Join(strings.Fields(name), "_")
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, stem)
	if stem == "" {
		return "deck"
	}
	return stem
}

// WriteCSVExport writes the card CSV to path, defaulting to [CSVFilename] of the deck.
func WriteCSVExport(deck *models.Deck, cards []models.CardWithSong, path string) (string, error) {
	if path == "" {
		path = CSVFilename(deck.Name)
	}

	data, err := ExportToCSV(cards)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}
