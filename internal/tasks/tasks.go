// package tasks implements the song import pipelines and dashboard counts.
//
// The core type is Engine, which orchestrates bulk file imports, batched creates, URL imports and stats.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Stats is the admin dashboard summary.
type Stats struct {
	Songs int `json:"songs"`
	Decks int `json:"decks"`
}

// Engine runs import and reporting tasks against a gateway.
type Engine struct {
	gw     gateway.Gateway
	video  services.VideoService
	logger *log.Logger
}

// NewEngine creates an Engine. video may be nil when URL imports are not needed.
func NewEngine(gw gateway.Gateway, video services.VideoService, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{gw: gw, video: video, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Stats counts songs and decks concurrently. Both counts are joined before returning; either
// failure fails the whole call.
func (e *Engine) Stats(ctx context.Context, progress chan<- ProgressUpdate) (*Stats, error) {
	if e.gw == nil {
		return nil, fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}

	var (
		wg                 sync.WaitGroup
		stats              Stats
		songsErr, decksErr error
	)
	one := models.ListOptions{Page: 1, PerPage: 1}

	wg.Add(2)
	go func() {
		defer wg.Done()
		page, err := e.gw.Songs().List(ctx, one)
		if err != nil {
			songsErr = fmt.Errorf("failed to count songs: %w", err)
			return
		}
		stats.Songs = page.TotalItems
		e.sendProgress(progress, countRecordsUpdate(1, 2, models.CollectionSongs))
	}()
	go func() {
		defer wg.Done()
		page, err := e.gw.Decks().List(ctx, one)
		if err != nil {
			decksErr = fmt.Errorf("failed to count decks: %w", err)
			return
		}
		stats.Decks = page.TotalItems
		e.sendProgress(progress, countRecordsUpdate(2, 2, models.CollectionDecks))
	}()
	wg.Wait()

	if err := errors.Join(songsErr, decksErr); err != nil {
		return nil, err
	}
	return &stats, nil
}
