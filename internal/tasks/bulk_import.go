package tasks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/cardquiz/internal/metadata"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// MaxWorkers caps [BulkImportOpts.Workers].
const MaxWorkers = 10

// ItemStatus is where one file is in the bulk import.
type ItemStatus int

const (
	StatusPending ItemStatus = iota
	StatusProcessing
	StatusSuccess
	StatusError
)

func (s ItemStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Source is one candidate file. Open is called once, when the item is processed.
type Source struct {
	Name        string
	ContentType string
	Open        func() (io.ReadSeekCloser, error)
}

// FileSource reads path from disk.
func FileSource(path string) Source {
	return Source{
		Name:        path,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Open:        func() (io.ReadSeekCloser, error) { return os.Open(path) },
	}
}

type nopSeekCloser struct{ *bytes.Reader }

func (nopSeekCloser) Close() error { return nil }

// BytesSource serves an in-memory upload.
func BytesSource(name, contentType string, data []byte) Source {
	return Source{
		Name:        name,
		ContentType: contentType,
		Open:        func() (io.ReadSeekCloser, error) { return nopSeekCloser{bytes.NewReader(data)}, nil },
	}
}

// CollectFiles expands paths into sources, walking directories in lexical order.
func CollectFiles(paths []string) ([]Source, error) {
	var sources []Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		if !info.IsDir() {
			sources = append(sources, FileSource(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				sources = append(sources, FileSource(path))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	return sources, nil
}

// ImportItem is the per-file record of a bulk import.
type ImportItem struct {
	Index    int               `json:"index"`
	Name     string            `json:"name"`
	Status   ItemStatus        `json:"status"`
	Metadata metadata.Metadata `json:"metadata"`
	Song     *models.Song      `json:"song,omitempty"`
	Err      error             `json:"-"`
}

// BulkImportOpts contains configuration for bulk file imports.
type BulkImportOpts struct {
	Workers   int     // Concurrent creates; 0 or 1 imports one file at a time
	RateLimit float64 // Gateway creates per second; 0 disables pacing
}

// BulkImportResult summarizes a bulk import. Partial success is a normal result.
type BulkImportResult struct {
	Items        []ImportItem `json:"items"`
	Skipped      []string     `json:"skipped,omitempty"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"successCount"`
	FailedCount  int          `json:"failedCount"`
}

// Partial reports whether some but not all items succeeded.
func (r *BulkImportResult) Partial() bool {
	return r.SuccessCount > 0 && r.FailedCount > 0
}

// BulkImport creates one song per audio source.
//
// Non-audio sources are skipped. Each item moves pending → processing → success|error and a
// progress update with the overall step count follows every transition. A failing item never
// stops the rest; only cancellation ends the run early, leaving unprocessed items pending.
func (e *Engine) BulkImport(ctx context.Context, prog chan<- ProgressUpdate, sources []Source, opts BulkImportOpts) (*BulkImportResult, error) {
	if e.gw == nil {
		return nil, fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}

	result := &BulkImportResult{}
	var audio []Source
	for _, src := range sources {
		if metadata.IsAudioFile(src.Name, src.ContentType) {
			audio = append(audio, src)
		} else {
			result.Skipped = append(result.Skipped, src.Name)
		}
	}

	result.Total = len(audio)
	result.Items = make([]ImportItem, len(audio))
	for i, src := range audio {
		result.Items[i] = ImportItem{Index: i, Name: src.Name, Status: StatusPending}
	}
	e.sendProgress(prog, scanFilesUpdate(len(audio), len(result.Skipped)))

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	workers := min(max(opts.Workers, 1), MaxWorkers)
	var err error
	if workers == 1 {
		err = e.importSequential(ctx, prog, limiter, audio, result)
	} else {
		err = e.importPool(ctx, prog, limiter, workers, audio, result)
	}

	e.logger.Info("bulk import finished",
		"total", result.Total,
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"skipped", len(result.Skipped))
	return result, err
}

func (e *Engine) importSequential(ctx context.Context, prog chan<- ProgressUpdate, limiter *rate.Limiter, audio []Source, result *BulkImportResult) error {
	for i, src := range audio {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := &result.Items[i]
		item.Status = StatusProcessing
		e.sendProgress(prog, itemUpdate(i, result.Total, *item))

		if err := limiter.Wait(ctx); err != nil {
			item.Status = StatusPending
			return err
		}
		*item = e.importOne(ctx, *item, src)
		result.record(*item)
		e.sendProgress(prog, itemUpdate(i+1, result.Total, *item))
	}
	return nil
}

// importPool runs the same per-item contract over a bounded set of workers. Items are only
// written by the collecting goroutine.
func (e *Engine) importPool(ctx context.Context, prog chan<- ProgressUpdate, limiter *rate.Limiter, workers int, audio []Source, result *BulkImportResult) error {
	jobs := make(chan ImportItem)
	results := make(chan ImportItem, len(audio))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					item.Status = StatusPending
					results <- item
					continue
				}
				results <- e.importOne(ctx, item, audio[item.Index])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range result.Items {
			item := result.Items[i]
			item.Status = StatusProcessing
			select {
			case <-ctx.Done():
				return
			case jobs <- item:
				e.sendProgress(prog, itemUpdate(i, result.Total, item))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for item := range results {
		result.Items[item.Index] = item
		if item.Status == StatusPending {
			continue
		}
		done++
		result.record(item)
		e.sendProgress(prog, itemUpdate(done, result.Total, item))
	}
	return ctx.Err()
}

func (r *BulkImportResult) record(item ImportItem) {
	if item.Status == StatusSuccess {
		r.SuccessCount++
	} else {
		r.FailedCount++
	}
}

// importOne reads tags, falling back to the filename, and creates the song with its audio.
func (e *Engine) importOne(ctx context.Context, item ImportItem, src Source) ImportItem {
	fail := func(err error) ImportItem {
		item.Status = StatusError
		item.Err = err
		e.logger.Warn("import failed", "file", src.Name, "error", err)
		return item
	}

	rc, err := src.Open()
	if err != nil {
		return fail(fmt.Errorf("failed to open: %w", err))
	}
	defer rc.Close()

	md, tagErr := metadata.Extract(rc, src.Name)
	if tagErr != nil {
		e.logger.Debug("using filename metadata", "file", src.Name, "reason", tagErr)
	}
	item.Metadata = md

	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("failed to rewind: %w", err))
	}

	song := &models.Song{Title: md.Title, Artist: md.Artist, Album: md.Album, Year: md.Year}
	file := models.File{
		Field:       "audio",
		Name:        filepath.Base(src.Name),
		ContentType: src.ContentType,
		Reader:      rc,
	}
	if err := e.gw.Songs().Create(ctx, song, file); err != nil {
		return fail(err)
	}

	item.Status = StatusSuccess
	item.Song = song
	return item
}
