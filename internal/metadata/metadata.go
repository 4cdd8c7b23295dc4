// package metadata reads song details from audio files and their names
package metadata

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

var audioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac", ".wma", ".opus"}

var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// now is swapped in tests.
var now = time.Now

// Metadata is what could be learned about one audio file.
type Metadata struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   int    `json:"year"`
	Genre  string `json:"genre,omitempty"`
	// Tagged is true when the values came from embedded tags rather than the filename.
	Tagged bool `json:"tagged"`
}

// IsAudioFile reports whether a file looks like audio by its declared media type or its extension.
func IsAudioFile(name, mediaType string) bool {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil && strings.HasPrefix(mt, "audio/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range audioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Extract reads embedded tags from r and fills gaps from filename. The year falls back to one
// found in the filename and then to the current year. The returned error reports why tags could
// not be read; the metadata is usable either way.
func Extract(r io.ReadSeeker, filename string) (Metadata, error) {
	base := FromFilename(filename)
	year := YearFromFilename(filename)
	if year == 0 {
		year = now().Year()
	}

	m, err := tag.ReadFrom(r)
	if err != nil {
		base.Year = year
		return base, fmt.Errorf("failed to read tags from %s: %w", filepath.Base(filename), err)
	}

	out := Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Year:   m.Year(),
		Genre:  strings.TrimSpace(m.Genre()),
		Tagged: true,
	}
	if out.Title == "" {
		out.Title = base.Title
	}
	if out.Artist == "" {
		out.Artist = base.Artist
	}
	if out.Album == "" {
		out.Album = base.Album
	}
	if out.Year <= 0 {
		out.Year = year
	}
	return out, nil
}

// ExtractFile opens path and calls [Extract].
func ExtractFile(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Extract(f, path)
}

// FromFilename understands "Artist - Album - Title", "Artist - Title" and a bare title.
func FromFilename(filename string) Metadata {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	parts := strings.Split(name, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) >= 3:
		return Metadata{Artist: parts[0], Album: parts[1], Title: parts[2]}
	case len(parts) == 2:
		return Metadata{Artist: parts[0], Title: parts[1]}
	default:
		return Metadata{Title: name}
	}
}

// YearFromFilename returns the first 1900-2099 year in the name, or 0.
func YearFromFilename(filename string) int {
	match := yearPattern.FindStringSubmatch(filepath.Base(filename))
	if match == nil {
		return 0
	}
	year, _ := strconv.Atoi(match[1])
	return year
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
