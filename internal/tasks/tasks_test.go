package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
	th "github.com/desertthunder/cardquiz/internal/testing"
)

type mockVideo struct {
	info        *services.VideoInfo
	infoErr     error
	downloadErr error
	data        string
	downloaded  string
}

func (m *mockVideo) Name() string { return "mock" }

func (m *mockVideo) Info(ctx context.Context, url string) (*services.VideoInfo, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	info := *m.info
	info.Encodings = append([]services.Encoding(nil), m.info.Encodings...)
	return &info, nil
}

func (m *mockVideo) Download(ctx context.Context, url, encodingID string) (*services.Download, error) {
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	m.downloaded = encodingID
	return &services.Download{
		Filename:    "clip.mp3",
		ContentType: "audio/mpeg",
		Size:        int64(len(m.data)),
		Body:        io.NopCloser(strings.NewReader(m.data)),
	}, nil
}

// failingGateway fails song creates whose title is in fail, and song lists when listErr is set.
type failingGateway struct {
	gateway.Gateway
	fail    map[string]bool
	listErr error
}

func (g failingGateway) Songs() models.Collection[models.Song] {
	return failingSongs{Collection: g.Gateway.Songs(), gw: g}
}

type failingSongs struct {
	models.Collection[models.Song]
	gw failingGateway
}

func (s failingSongs) Create(ctx context.Context, song *models.Song, files ...models.File) error {
	if s.gw.fail[song.Title] {
		return fmt.Errorf("%w: rejected %s", shared.ErrGateway, song.Title)
	}
	return s.Collection.Create(ctx, song, files...)
}

func (s failingSongs) List(ctx context.Context, opts models.ListOptions) (*models.Page[models.Song], error) {
	if s.gw.listErr != nil {
		return nil, s.gw.listErr
	}
	return s.Collection.List(ctx, opts)
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	close(ch)
	var out []ProgressUpdate
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{ScanFiles, "scan_files"},
		{ImportFiles, "import_files"},
		{SubmitBatch, "submit_batch"},
		{FetchInfo, "fetch_info"},
		{DownloadAudio, "download_audio"},
		{CreateSong, "create_song"},
		{CountRecords, "count_records"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestProgressUpdatePercent(t *testing.T) {
	tests := []struct {
		step, total, want int
	}{
		{0, 4, 0},
		{1, 4, 25},
		{4, 4, 100},
		{3, 0, 0},
	}
	for _, tt := range tests {
		u := ProgressUpdate{Step: tt.step, Total: tt.total}
		if got := u.Percent(); got != tt.want {
			t.Errorf("Percent(%d/%d) = %d, want %d", tt.step, tt.total, got, tt.want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	e := NewEngine(nil, nil, nil)

	t.Run("nil channel", func(t *testing.T) {
		e.sendProgress(nil, ProgressUpdate{})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		e.sendProgress(ch, ProgressUpdate{Step: 1})
		e.sendProgress(ch, ProgressUpdate{Step: 2})
		if got := (<-ch).Step; got != 1 {
			t.Errorf("expected first update to be kept, got step %d", got)
		}
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("counts songs and decks", func(t *testing.T) {
		gw := th.NewGateway(t)
		th.MustSong(t, gw, "One", 2001)
		th.MustSong(t, gw, "Two", 2002)
		th.MustDeck(t, gw, "Party")

		ch := make(chan ProgressUpdate, 4)
		stats, err := NewEngine(gw, nil, nil).Stats(ctx, ch)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Songs != 2 || stats.Decks != 1 {
			t.Errorf("expected 2 songs and 1 deck, got %+v", stats)
		}
		if got := len(drain(ch)); got != 2 {
			t.Errorf("expected 2 progress updates, got %d", got)
		}
	})

	t.Run("one failure fails the call", func(t *testing.T) {
		gw := failingGateway{Gateway: th.NewGateway(t), listErr: shared.ErrGateway}
		_, err := NewEngine(gw, nil, nil).Stats(ctx, nil)
		if !errors.Is(err, shared.ErrGateway) {
			t.Errorf("expected ErrGateway, got %v", err)
		}
	})

	t.Run("no gateway", func(t *testing.T) {
		_, err := NewEngine(nil, nil, nil).Stats(ctx, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestImportURL(t *testing.T) {
	ctx := context.Background()
	info := &services.VideoInfo{
		Title:           "Chrono Trigger - Corridors of Time (1995)",
		Author:          "Square",
		DurationSeconds: 190,
		Encodings: []services.Encoding{
			{EncodingID: "a", Bitrate: 128},
			{EncodingID: "b", Bitrate: 320},
		},
	}

	t.Run("defaults to highest bitrate", func(t *testing.T) {
		gw := th.NewGateway(t)
		video := &mockVideo{info: info, data: "ID3 audio"}
		ch := make(chan ProgressUpdate, 8)

		res, err := NewEngine(gw, video, nil).ImportURL(ctx, ch, URLImportRequest{URL: "https://youtu.be/abcdefghijk"})
		if err != nil {
			t.Fatalf("ImportURL failed: %v", err)
		}
		if res.Encoding.EncodingID != "b" || video.downloaded != "b" {
			t.Errorf("expected encoding b, got %q (downloaded %q)", res.Encoding.EncodingID, video.downloaded)
		}
		if res.Song.Title != info.Title || res.Song.Artist != "Square" {
			t.Errorf("expected video metadata, got %+v", res.Song)
		}
		if res.Song.Year != 1995 {
			t.Errorf("expected year from title, got %d", res.Song.Year)
		}
		if !res.Song.HasAudio() {
			t.Error("expected audio to be attached")
		}
		if res.Info.Encodings[0].EncodingID != "b" {
			t.Errorf("expected encodings sorted by bitrate, got %+v", res.Info.Encodings)
		}

		updates := drain(ch)
		if len(updates) != 3 || updates[2].Phase != CreateSong {
			t.Errorf("expected fetch, download and create updates, got %+v", updates)
		}
	})

	t.Run("operator metadata wins", func(t *testing.T) {
		gw := th.NewGateway(t)
		video := &mockVideo{info: info, data: "x"}
		req := URLImportRequest{URL: "https://youtu.be/abcdefghijk", EncodingID: "a", Title: " Corridors ", Artist: "Mitsuda", Year: 1999}

		res, err := NewEngine(gw, video, nil).ImportURL(ctx, nil, req)
		if err != nil {
			t.Fatalf("ImportURL failed: %v", err)
		}
		if res.Song.Title != "Corridors" || res.Song.Artist != "Mitsuda" || res.Song.Year != 1999 {
			t.Errorf("unexpected song %+v", res.Song)
		}
		if video.downloaded != "a" {
			t.Errorf("expected encoding a, got %q", video.downloaded)
		}
	})

	tests := []struct {
		name    string
		video   *mockVideo
		req     URLImportRequest
		wantErr error
		kind    services.ErrorKind
	}{
		{
			name:    "missing url",
			video:   &mockVideo{info: info},
			req:     URLImportRequest{},
			wantErr: shared.ErrMissingArgument,
		},
		{
			name:  "classified info error",
			video: &mockVideo{infoErr: &services.ImportError{Kind: services.KindPrivate}},
			req:   URLImportRequest{URL: "https://youtu.be/abcdefghijk"},
			kind:  services.KindPrivate,
		},
		{
			name:  "no audio encodings",
			video: &mockVideo{info: &services.VideoInfo{Title: "Silent"}},
			req:   URLImportRequest{URL: "https://youtu.be/abcdefghijk"},
			kind:  services.KindNoAudio,
		},
		{
			name:    "unknown encoding",
			video:   &mockVideo{info: info},
			req:     URLImportRequest{URL: "https://youtu.be/abcdefghijk", EncodingID: "zz"},
			wantErr: shared.ErrInvalidArgument,
		},
		{
			name:  "download blocked",
			video: &mockVideo{info: info, downloadErr: &services.ImportError{Kind: services.KindBlocked}},
			req:   URLImportRequest{URL: "https://youtu.be/abcdefghijk"},
			kind:  services.KindBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := th.NewGateway(t)
			_, err := NewEngine(gw, tt.video, nil).ImportURL(ctx, nil, tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.kind != "" {
				if got := services.KindOf(err); got != tt.kind {
					t.Errorf("expected kind %s, got %s (%v)", tt.kind, got, err)
				}
			}

			page, err := gw.Songs().List(ctx, models.ListOptions{})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if page.TotalItems != 0 {
				t.Errorf("expected no song to be created, got %d", page.TotalItems)
			}
		})
	}

	t.Run("no video service", func(t *testing.T) {
		_, err := NewEngine(th.NewGateway(t), nil, nil).FetchInfo(ctx, "https://youtu.be/abcdefghijk")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
