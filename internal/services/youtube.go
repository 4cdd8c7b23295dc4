// YouTube [VideoService] implementation backed by kkdai/youtube
package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
)

type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeService implements [VideoService] against YouTube directly.
type YouTubeService struct {
	client      videoClient
	maxDownload int64
}

type YouTubeOption func(*YouTubeService)

// WithHTTPClient sets the client used for metadata and stream requests.
func WithHTTPClient(c *http.Client) YouTubeOption {
	return func(y *YouTubeService) { y.client = &youtube.Client{HTTPClient: c} }
}

// WithMaxDownload caps download size in bytes.
func WithMaxDownload(n int64) YouTubeOption {
	return func(y *YouTubeService) { y.maxDownload = n }
}

// NewYouTubeService creates a new YouTube service instance.
func NewYouTubeService(opts ...YouTubeOption) *YouTubeService {
	y := &YouTubeService{client: &youtube.Client{}}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// ValidateURL checks that a video id can be extracted from rawURL.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return invalidURL(rawURL, fmt.Errorf("URL is required"))
	}
	if _, err := youtube.ExtractVideoID(rawURL); err != nil {
		return invalidURL(rawURL, err)
	}
	return nil
}

func (y *YouTubeService) video(ctx context.Context, rawURL string) (*youtube.Video, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	video, err := y.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to fetch video info: %w", err))
	}
	return video, nil
}

// Info fetches metadata and the audio-only encodings, highest bitrate first.
func (y *YouTubeService) Info(ctx context.Context, rawURL string) (*VideoInfo, error) {
	video, err := y.video(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	encodings := make([]Encoding, 0, len(video.Formats))
	for _, f := range audioFormats(video.Formats) {
		encodings = append(encodings, toEncoding(f))
	}
	if len(encodings) == 0 {
		return nil, &ImportError{Kind: KindNoAudio}
	}
	SortEncodings(encodings)

	info := &VideoInfo{
		Title:           video.Title,
		Author:          video.Author,
		DurationSeconds: int(video.Duration.Seconds()),
		Description:     video.Description,
		Encodings:       encodings,
	}
	if len(video.Thumbnails) > 0 {
		info.ThumbnailURL = video.Thumbnails[0].URL
	}
	return info, nil
}

// Download opens the stream for encodingID, or the best encoding when it is empty.
func (y *YouTubeService) Download(ctx context.Context, rawURL, encodingID string) (*Download, error) {
	video, err := y.video(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	formats := audioFormats(video.Formats)
	encodings := make([]Encoding, len(formats))
	for i, f := range formats {
		encodings[i] = toEncoding(f)
	}
	chosen, err := SelectEncoding(encodings, encodingID)
	if err != nil {
		return nil, err
	}

	var format *youtube.Format
	for i := range formats {
		if strconv.Itoa(formats[i].ItagNo) == chosen.EncodingID {
			format = &formats[i]
			break
		}
	}

	body, size, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to download audio: %w", err))
	}
	stored := FormatForContainer(chosen.Container)
	return &Download{
		Filename:    stored.Filename(video.Title),
		ContentType: stored.MediaType,
		Size:        size,
		Body:        LimitBody(body, y.maxDownload),
	}, nil
}

// audioFormats keeps audio-only formats that report a bitrate.
func audioFormats(formats youtube.FormatList) youtube.FormatList {
	var out youtube.FormatList
	for _, f := range formats.WithAudioChannels() {
		if !strings.HasPrefix(f.MimeType, "audio/") || bitrateKbps(f) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

func toEncoding(f youtube.Format) Encoding {
	container, codec := "unknown", "unknown"
	if mt, params, err := mime.ParseMediaType(f.MimeType); err == nil {
		if _, sub, ok := strings.Cut(mt, "/"); ok {
			container = sub
		}
		if c := params["codecs"]; c != "" {
			codec = c
		}
	}

	quality := f.QualityLabel
	if quality == "" && f.AudioQuality != "" {
		quality = strings.ToLower(strings.TrimPrefix(f.AudioQuality, "AUDIO_QUALITY_"))
	}
	if quality == "" {
		quality = "unknown"
	}

	return Encoding{
		EncodingID:   strconv.Itoa(f.ItagNo),
		QualityLabel: quality,
		Bitrate:      bitrateKbps(f),
		Codec:        codec,
		Container:    container,
	}
}

func bitrateKbps(f youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate / 1000
	}
	return f.Bitrate / 1000
}
