package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/desertthunder/cardquiz/internal/metadata"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// MaxBatchSize is the most requests sent in one gateway batch.
const MaxBatchSize = 50

// SubmitBatch forwards prepared create/update requests to the gateway as one atomic batch.
func (e *Engine) SubmitBatch(ctx context.Context, reqs []models.BatchRequest) ([]models.BatchResult, error) {
	if e.gw == nil {
		return nil, fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", shared.ErrMissingArgument)
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d requests", shared.ErrInvalidArgument, len(reqs), MaxBatchSize)
	}

	results, err := e.gw.Batch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("batch submitted", "requests", len(reqs))
	return results, nil
}

// BatchImport reads every audio source and creates the songs in batches of [MaxBatchSize].
//
// Sources that cannot be read become error items and are left out of the batch. A failed batch
// marks all of its items as errors; earlier batches stay committed.
func (e *Engine) BatchImport(ctx context.Context, prog chan<- ProgressUpdate, sources []Source) (*BulkImportResult, error) {
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
	e.sendProgress(prog, scanFilesUpdate(len(audio), len(result.Skipped)))

	var (
		reqs    []models.BatchRequest
		pending []int
	)
	for i, src := range audio {
		item := ImportItem{Index: i, Name: src.Name, Status: StatusProcessing}
		req, md, err := songRequest(src)
		item.Metadata = md
		if err != nil {
			item.Status = StatusError
			item.Err = err
			result.record(item)
		} else {
			reqs = append(reqs, req)
			pending = append(pending, i)
		}
		result.Items[i] = item
	}

	chunks := (len(reqs) + MaxBatchSize - 1) / MaxBatchSize
	for c := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		lo, hi := c*MaxBatchSize, min((c+1)*MaxBatchSize, len(reqs))
		e.sendProgress(prog, submitBatchUpdate(c, chunks, hi-lo))

		results, err := e.SubmitBatch(ctx, reqs[lo:hi])
		for j, idx := range pending[lo:hi] {
			item := &result.Items[idx]
			switch {
			case err != nil:
				item.Status = StatusError
				item.Err = err
			case j >= len(results):
				item.Status = StatusError
				item.Err = fmt.Errorf("%w: missing batch result", shared.ErrBatchFailed)
			default:
				*item = batchItem(*item, results[j])
			}
			result.record(*item)
		}
		if err == nil {
			e.sendProgress(prog, submitBatchUpdate(c+1, chunks, hi-lo))
		}
	}
	return result, nil
}

// songRequest buffers the audio so the request can be replayed by the gateway.
func songRequest(src Source) (models.BatchRequest, metadata.Metadata, error) {
	rc, err := src.Open()
	if err != nil {
		return models.BatchRequest{}, metadata.FromFilename(src.Name), fmt.Errorf("failed to open: %w", err)
	}
	defer rc.Close()

	md, _ := metadata.Extract(rc, src.Name)
	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		return models.BatchRequest{}, md, fmt.Errorf("failed to rewind: %w", err)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return models.BatchRequest{}, md, fmt.Errorf("failed to read: %w", err)
	}

	return models.BatchRequest{
		Method: http.MethodPost,
		URL:    models.RecordsPath(models.CollectionSongs),
		Body: map[string]any{
			"title":  md.Title,
			"artist": md.Artist,
			"album":  md.Album,
			"year":   md.Year,
		},
		Files: []models.File{{
			Field:       "audio",
			Name:        filepath.Base(src.Name),
			ContentType: src.ContentType,
			Reader:      bytes.NewReader(data),
		}},
	}, md, nil
}

func batchItem(item ImportItem, res models.BatchResult) ImportItem {
	if res.Status >= http.StatusBadRequest {
		item.Status = StatusError
		item.Err = fmt.Errorf("%w: status %d: %s", shared.ErrBatchFailed, res.Status, res.Body)
		return item
	}
	var song models.Song
	if err := json.Unmarshal(res.Body, &song); err != nil {
		item.Status = StatusError
		item.Err = fmt.Errorf("failed to decode batch result: %w", err)
		return item
	}
	item.Status = StatusSuccess
	item.Song = &song
	return item
}
