package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Percent is the share of steps done, 0 when Total is unknown.
func (u ProgressUpdate) Percent() int {
	if u.Total <= 0 {
		return 0
	}
	return u.Step * 100 / u.Total
}

// Operation phase enumeration
type Phase int

const (
	ScanFiles Phase = iota
	ImportFiles
	SubmitBatch
	FetchInfo
	DownloadAudio
	CreateSong
	CountRecords
)

func (p Phase) String() string {
	switch p {
	case ScanFiles:
		return "scan_files"
	case ImportFiles:
		return "import_files"
	case SubmitBatch:
		return "submit_batch"
	case FetchInfo:
		return "fetch_info"
	case DownloadAudio:
		return "download_audio"
	case CreateSong:
		return "create_song"
	case CountRecords:
		return "count_records"
	default:
		return ""
	}
}

func scanFilesUpdate(found, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanFiles,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d audio files (%d skipped)", found, skipped),
	}
}

func itemUpdate(done, total int, item ImportItem) ProgressUpdate {
	var msg string
	switch item.Status {
	case StatusProcessing:
		msg = fmt.Sprintf("[%d/%d] Importing %s...", item.Index+1, total, item.Name)
	case StatusSuccess:
		msg = fmt.Sprintf("[%d/%d] ✓ %s", done, total, item.Song.Label())
	case StatusError:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", done, total, item.Name, item.Err)
	default:
		msg = fmt.Sprintf("[%d/%d] %s", done, total, item.Name)
	}
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    done,
		Total:   total,
		Message: msg,
		Data:    item,
	}
}

func submitBatchUpdate(step, total, requests int) ProgressUpdate {
	msg := fmt.Sprintf("Submitting batch of %d songs...", requests)
	if step == total {
		msg = fmt.Sprintf("Batch of %d songs created", requests)
	}
	return ProgressUpdate{
		Phase:   SubmitBatch,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func fetchInfoUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchInfo,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching video info for %s...", url),
	}
}

func downloadUpdate(step, total int, enc string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadAudio,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Downloading audio (%s)...", enc),
	}
}

func createSongUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateSong,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Creating song: %s", title),
	}
}

func countRecordsUpdate(step, total int, collection string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CountRecords,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Counted %s", collection),
	}
}
