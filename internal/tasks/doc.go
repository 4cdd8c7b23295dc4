// Package tasks orchestrates song imports and dashboard counts with real-time progress reporting.
//
// # Core Operations
//
// [Engine] exposes four operations:
//
//  1. [Engine.BulkImport] : Local audio files → one song each
//     - Filters candidates to audio by media type or extension
//     - Reads embedded tags, falling back to the filename and its year
//     - Creates songs one at a time, or over a bounded worker pool
//     - Records a status per item; partial success is a normal outcome
//
//  2. [Engine.BatchImport] : The same files as atomic gateway batches
//     - Buffers each file and sends creates through [gateway.Gateway.Batch]
//
//  3. [Engine.ImportURL] : Video URL → song
//     - Fetches info with encodings sorted by bitrate
//     - Defaults to the highest bitrate encoding
//     - Surfaces classified [services.ImportError] values without retrying
//
//  4. [Engine.Stats] : Song and deck totals fetched concurrently
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Bulk imports attach the [ImportItem] as Data on every status change.
// Updates use select with default to prevent blocking.
//
// # Pacing
//
// Gateway creates are paced with a [rate.Limiter] when [BulkImportOpts.RateLimit] is set.
package tasks
