package formatter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Print layout in millimetres. Cards are square and laid out on A4 in a fixed grid.
const (
	CardSize = 64.0
	Columns  = 3
	Rows     = 4
	PerPage  = Columns * Rows

	pageWidth  = 210.0
	pageHeight = 297.0
	cardGap    = 1.0
	cardPad    = 4.0
	qrEdge     = 58.0
	lineHeight = 5.0
	font       = "Helvetica"
)

var (
	marginX = (pageWidth - Columns*CardSize - (Columns-1)*cardGap) / 2
	marginY = (pageHeight - Rows*CardSize - (Rows-1)*cardGap) / 2
)

// CardSlot is the top-left corner of card i on its page. Back pages mirror each row so that a
// long-edge duplex print puts every QR code behind its own card.
func CardSlot(i int, back bool) (x, y float64) {
	i %= PerPage
	row, col := i/Columns, i%Columns
	if back {
		col = Columns - 1 - col
	}
	return marginX + float64(col)*(CardSize+cardGap), marginY + float64(row)*(CardSize+cardGap)
}

// CardFace is the printed text of a card front: top line, large year, bottom line.
// Song cards show artist and title; other types show the song title and their own text.
func CardFace(c models.CardWithSong) (top, year, bottom string) {
	year = c.DisplayYear()
	songTitle := ""
	if c.Song != nil {
		songTitle = c.Song.Title
	}

	switch c.Card.Type {
	case models.CardOST, models.CardOpening, models.CardAd:
		return orDefault(songTitle, "Untitled"), year, orDefault(c.Card.Text(), c.Card.Type.Label())
	default:
		return orDefault(c.Artist(), "Unknown artist"), year, orDefault(songTitle, "Untitled")
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// DeckPDF lays out printable cards: each page of fronts is followed by its page of QR backs.
func DeckPDF(deckName string, cards []models.CardWithSong) (*fpdf.Fpdf, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: deck has no cards to print", shared.ErrValidation)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(deckName, true)
	pdf.SetCreator("cardquiz", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.35)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for start := 0; start < len(cards); start += PerPage {
		page := cards[start:min(start+PerPage, len(cards))]

		pdf.AddPage()
		for i, c := range page {
			x, y := CardSlot(i, false)
			drawFront(pdf, tr, x, y, c)
		}

		pdf.AddPage()
		for i, c := range page {
			x, y := CardSlot(i, true)
			if err := drawBack(pdf, x, y, c.SongID()); err != nil {
				return nil, err
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return pdf, nil
}

func drawFront(pdf *fpdf.Fpdf, tr func(string) string, x, y float64, c models.CardWithSong) {
	top, year, bottom := CardFace(c)
	w := CardSize - 2*cardPad
	pdf.Rect(x, y, CardSize, CardSize, "D")

	pdf.SetFont(font, "", 12)
	for j, line := range wrap(pdf, tr(top), w, 2) {
		pdf.SetXY(x+cardPad, y+cardPad+float64(j)*lineHeight)
		pdf.CellFormat(w, lineHeight, line, "", 0, "C", false, 0, "")
	}

	pdf.SetFont(font, "B", 36)
	pdf.SetXY(x+cardPad, y+CardSize/2-7)
	pdf.CellFormat(w, 14, tr(year), "", 0, "CM", false, 0, "")

	pdf.SetFont(font, "", 11)
	lines := wrap(pdf, tr(bottom), w, 2)
	base := y + CardSize - cardPad - float64(len(lines))*lineHeight
	for j, line := range lines {
		pdf.SetXY(x+cardPad, base+float64(j)*lineHeight)
		pdf.CellFormat(w, lineHeight, line, "", 0, "C", false, 0, "")
	}
}

// drawBack prints the song's QR code; cards without a song get an empty frame.
func drawBack(pdf *fpdf.Fpdf, x, y float64, songID string) error {
	pdf.Rect(x, y, CardSize, CardSize, "D")
	if songID == "" {
		return nil
	}

	name := "qr-" + songID
	if pdf.GetImageInfo(name) == nil {
		png, err := SongQR(songID, QRSize)
		if err != nil {
			return err
		}
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	}
	off := (CardSize - qrEdge) / 2
	pdf.ImageOptions(name, x+off, y+off, qrEdge, qrEdge, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

// wrap splits already translated text into at most maxLines lines no wider than w, ending a
// truncated last line with "...".
func wrap(pdf *fpdf.Fpdf, text string, w float64, maxLines int) []string {
	words := strings.Fields(text)
	var lines []string
	line := ""
	for i, word := range words {
		next := word
		if line != "" {
			next = line + " " + word
		}
		if line == "" || pdf.GetStringWidth(next) <= w {
			line = next
			continue
		}
		if len(lines) == maxLines-1 {
			line = ellipsize(pdf, strings.Join(append([]string{line}, words[i:]...), " "), w)
			break
		}
		lines = append(lines, line)
		line = word
	}
	if line != "" {
		lines = append(lines, ellipsize(pdf, line, w))
	}
	return lines
}

func ellipsize(pdf *fpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return strings.TrimRight(s, " ") + "..."
}

// WriteDeckPDF renders the deck to w.
func WriteDeckPDF(w io.Writer, deckName string, cards []models.CardWithSong) error {
	pdf, err := DeckPDF(deckName, cards)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// WritePDFExport writes the deck PDF to path, defaulting to [PDFFilename].
func WritePDFExport(deckName string, cards []models.CardWithSong, path string) (string, error) {
	if path == "" {
		path = PDFFilename(deckName)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create PDF file: %w", err)
	}
	if err := WriteDeckPDF(f, deckName, cards); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close PDF file: %w", err)
	}
	return path, nil
}
