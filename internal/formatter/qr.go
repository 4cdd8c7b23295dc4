package formatter

import (
	"fmt"
	"image"
	"os"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// QRSize is the default edge of a generated code in pixels.
const QRSize = 300

// SongQR encodes a song id as a PNG QR code with medium error recovery. The id is what the
// scanner resolves back to a song.
func SongQR(songID string, size int) ([]byte, error) {
	code, err := newCode(songID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = QRSize
	}
	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

// SongQRImage is [SongQR] as an image.
func SongQRImage(songID string, size int) (image.Image, error) {
	code, err := newCode(songID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = QRSize
	}
	return code.Image(size), nil
}

// WriteSongQR writes the PNG to path, defaulting to {songID}.png.
func WriteSongQR(songID, path string, size int) (string, error) {
	if path == "" {
		path = shared.SanitizeFilename(songID) + ".png"
	}
	png, err := SongQR(songID, size)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write QR file: %w", err)
	}
	return path, nil
}

func newCode(content string) (*qrcode.QRCode, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: QR content is empty", shared.ErrMissingArgument)
	}
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}
	return code, nil
}
