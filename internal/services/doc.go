// package services talks to the outside world for song imports
//
// # Video
//
// [VideoService] describes what URL import needs from a video host: metadata with the
// available audio encodings, and a download of one of them. [YouTubeService] implements it with
// kkdai/youtube. [ImportClient] implements it over HTTP against a running cardquiz server, so
// the CLI can import through a deployed instance instead of reaching YouTube directly.
//
// Encodings are always sorted by bitrate, highest first, and [SelectEncoding] falls back to the
// first one when no id is chosen.
//
// # Errors
//
// Failures are classified into an [ImportError] whose [ErrorKind] maps to the message shown to
// the operator (blocked, unavailable, private, age restricted or generic). Nothing is retried.
package services
