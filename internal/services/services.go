package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// VideoService fetches video metadata and audio for URL imports.
type VideoService interface {
	Info(ctx context.Context, url string) (*VideoInfo, error)
	Download(ctx context.Context, url, encodingID string) (*Download, error)
	Name() string
}

// Encoding is one audio stream offered by the host. Bitrate is in kbps.
type Encoding struct {
	EncodingID   string `json:"encodingId"`
	QualityLabel string `json:"qualityLabel"`
	Bitrate      int    `json:"bitrate"`
	Codec        string `json:"codec"`
	Container    string `json:"container"`
}

// VideoInfo is what the operator sees before picking an encoding.
type VideoInfo struct {
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	DurationSeconds int        `json:"durationSeconds"`
	Description     string     `json:"description"`
	ThumbnailURL    string     `json:"thumbnailURL"`
	Encodings       []Encoding `json:"encodings"`
}

// Duration of the video.
func (v VideoInfo) Duration() time.Duration {
	return time.Duration(v.DurationSeconds) * time.Second
}

// Download is an audio stream ready to be copied. The caller closes Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// SortEncodings orders encodings by bitrate, highest first, keeping the host's order for ties.
func SortEncodings(encs []Encoding) {
	slices.SortStableFunc(encs, func(a, b Encoding) int { return b.Bitrate - a.Bitrate })
}

// SelectEncoding returns the encoding with id, or the highest bitrate one when id is empty.
func SelectEncoding(encs []Encoding, id string) (Encoding, error) {
	if len(encs) == 0 {
		return Encoding{}, &ImportError{Kind: KindNoAudio}
	}
	if id == "" {
		best := encs[0]
		for _, e := range encs[1:] {
			if e.Bitrate > best.Bitrate {
				best = e
			}
		}
		return best, nil
	}
	for _, e := range encs {
		if e.EncodingID == id {
			return e, nil
		}
	}
	return Encoding{}, fmt.Errorf("%w: encoding %q is not offered", shared.ErrInvalidArgument, id)
}

// DownloadFilename is the attachment name offered for a video title. The stored file is named
// by [AudioFormat.Filename] instead.
func DownloadFilename(title string) string {
	return shared.SanitizeFilename(title) + ".mp3"
}

// AudioFormat is how a downloaded stream is named and typed when stored.
type AudioFormat struct {
	Ext       string
	MediaType string
}

var mp3Format = AudioFormat{Ext: ".mp3", MediaType: "audio/mpeg"}

var containerFormats = map[string]AudioFormat{
	"webm": {Ext: ".webm", MediaType: "audio/webm"},
	"mp4":  {Ext: ".m4a", MediaType: "audio/mp4"},
	"mpeg": mp3Format,
	"ogg":  {Ext: ".ogg", MediaType: "audio/ogg"},
	"wav":  {Ext: ".wav", MediaType: "audio/wav"},
	"flac": {Ext: ".flac", MediaType: "audio/flac"},
}

// FormatForContainer maps an encoding's container to its storage format. Unknown containers
// are stored as mp3.
func FormatForContainer(container string) AudioFormat {
	if f, ok := containerFormats[strings.ToLower(container)]; ok {
		return f
	}
	return mp3Format
}

// FormatForMediaType finds the storage format with the given media type.
func FormatForMediaType(mediaType string) (AudioFormat, bool) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return AudioFormat{}, false
	}
	for _, f := range containerFormats {
		if f.MediaType == mt {
			return f, true
		}
	}
	return AudioFormat{}, false
}

// Filename is the sanitized title with the format's extension.
func (f AudioFormat) Filename(title string) string {
	return shared.SanitizeFilename(title) + f.Ext
}

// limitedBody caps reads at max bytes and fails past it.
type limitedBody struct {
	io.ReadCloser
	remaining int64
}

// LimitBody wraps rc so that reading more than max bytes returns [shared.ErrFileTooLarge].
// A max of zero or less disables the cap.
func LimitBody(rc io.ReadCloser, max int64) io.ReadCloser {
	if max <= 0 {
		return rc
	}
	return &limitedBody{ReadCloser: rc, remaining: max}
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var peek [1]byte
		if n, _ := l.ReadCloser.Read(peek[:]); n > 0 {
			return 0, fmt.Errorf("%w: download exceeds limit", shared.ErrFileTooLarge)
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.ReadCloser.Read(p)
	l.remaining -= int64(n)
	return n, err
}

var (
	_ VideoService = (*YouTubeService)(nil)
	_ VideoService = (*ImportClient)(nil)
)
