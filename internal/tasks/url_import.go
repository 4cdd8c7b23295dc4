package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/cardquiz/internal/metadata"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// URLImportRequest is the operator's choice after reviewing [services.VideoInfo]. Empty
// metadata fields default to the video's own: title, author as artist, and a year found in
// the title.
type URLImportRequest struct {
	URL        string
	EncodingID string
	Title      string
	Artist     string
	Album      string
	Year       int
}

// URLImportResult is the created song and the encoding that was downloaded.
type URLImportResult struct {
	Song     *models.Song        `json:"song"`
	Info     *services.VideoInfo `json:"info"`
	Encoding services.Encoding   `json:"encoding"`
}

// FetchInfo returns the video's metadata with encodings sorted by bitrate, highest first.
func (e *Engine) FetchInfo(ctx context.Context, url string) (*services.VideoInfo, error) {
	if e.video == nil {
		return nil, fmt.Errorf("%w: video service not initialized", shared.ErrServiceUnavailable)
	}
	info, err := e.video.Info(ctx, url)
	if err != nil {
		return nil, err
	}
	services.SortEncodings(info.Encodings)
	return info, nil
}

// Download streams one encoding of the video. The caller closes the body.
func (e *Engine) Download(ctx context.Context, url, encodingID string) (*services.Download, error) {
	if e.video == nil {
		return nil, fmt.Errorf("%w: video service not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(url) == "" || strings.TrimSpace(encodingID) == "" {
		return nil, fmt.Errorf("%w: url and encoding id are required", shared.ErrMissingArgument)
	}
	return e.video.Download(ctx, url, encodingID)
}

// ImportURL fetches info, downloads the chosen encoding and creates a song from it.
// Failures are returned as classified [services.ImportError] values and never retried.
func (e *Engine) ImportURL(ctx context.Context, prog chan<- ProgressUpdate, req URLImportRequest) (*URLImportResult, error) {
	if e.gw == nil {
		return nil, fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	e.sendProgress(prog, fetchInfoUpdate(1, 3, req.URL))
	info, err := e.FetchInfo(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	enc, err := services.SelectEncoding(info.Encodings, req.EncodingID)
	if err != nil {
		return nil, err
	}

	song := &models.Song{
		Title:  firstNonEmpty(req.Title, info.Title),
		Artist: firstNonEmpty(req.Artist, info.Author),
		Album:  strings.TrimSpace(req.Album),
		Year:   req.Year,
	}
	if song.Year == 0 {
		song.Year = metadata.YearFromFilename(info.Title)
	}
	if err := song.Validate(); err != nil {
		return nil, err
	}

	e.sendProgress(prog, downloadUpdate(2, 3, describeEncoding(enc)))
	dl, err := e.video.Download(ctx, req.URL, enc.EncodingID)
	if err != nil {
		return nil, err
	}
	defer dl.Body.Close()

	e.sendProgress(prog, createSongUpdate(3, 3, song.Title))
	file := models.File{
		Field:       "audio",
		Name:        firstNonEmpty(dl.Filename, services.DownloadFilename(song.Title)),
		ContentType: dl.ContentType,
		Reader:      dl.Body,
	}
	if err := e.gw.Songs().Create(ctx, song, file); err != nil {
		return nil, fmt.Errorf("failed to create song: %w", err)
	}

	e.logger.Info("imported song from url", "id", song.ID, "title", song.Title, "encoding", enc.EncodingID)
	return &URLImportResult{Song: song, Info: info, Encoding: enc}, nil
}

func describeEncoding(enc services.Encoding) string {
	if enc.QualityLabel != "" {
		return fmt.Sprintf("%s, %d kbps", enc.QualityLabel, enc.Bitrate)
	}
	return fmt.Sprintf("%d kbps", enc.Bitrate)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
