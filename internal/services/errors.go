package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// ErrorKind groups import failures by what the operator can do about them.
type ErrorKind string

const (
	KindBlocked       ErrorKind = "blocked"
	KindUnavailable   ErrorKind = "unavailable"
	KindPrivate       ErrorKind = "private"
	KindAgeRestricted ErrorKind = "age_restricted"
	KindInvalidURL    ErrorKind = "invalid_url"
	KindNoAudio       ErrorKind = "no_audio"
	KindGeneric       ErrorKind = "generic"
)

// Message is the operator-facing text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindBlocked:
		return "The video host temporarily blocked the request. Try again later or use a different video."
	case KindUnavailable:
		return "This video is not available or has been removed."
	case KindPrivate:
		return "This is a private video and cannot be accessed."
	case KindAgeRestricted:
		return "This video is age-restricted and cannot be processed."
	case KindInvalidURL:
		return "Invalid YouTube URL"
	case KindNoAudio:
		return "No audio formats available for this video"
	default:
		return "Failed to fetch video information"
	}
}

// Status is the HTTP status the import endpoint answers with.
func (k ErrorKind) Status() int {
	switch k {
	case KindInvalidURL, KindNoAudio:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ImportError is a classified URL import failure.
type ImportError struct {
	Kind ErrorKind
	Err  error
}

func (e *ImportError) Error() string {
	if e.Err == nil || e.Kind != KindGeneric {
		return e.Kind.Message()
	}
	return e.Err.Error()
}

func (e *ImportError) Unwrap() error { return e.Err }

// Classify wraps err in an [ImportError]. Errors that are already classified pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	return &ImportError{Kind: kindOf(err), Err: err}
}

// KindOf returns the kind of a classified error, or the generic kind.
func KindOf(err error) ErrorKind {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindGeneric
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate):
		return KindPrivate
	case errors.Is(err, youtube.ErrLoginRequired):
		return KindAgeRestricted
	case errors.Is(err, shared.ErrUnsupportedURL):
		return KindInvalidURL
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not extract functions"),
		strings.Contains(msg, "cipher"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"):
		return KindBlocked
	case strings.Contains(msg, "private"):
		return KindPrivate
	case strings.Contains(msg, "age-restricted"), strings.Contains(msg, "age restricted"), strings.Contains(msg, "confirm your age"):
		return KindAgeRestricted
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "not available"), strings.Contains(msg, "removed"):
		return KindUnavailable
	}
	return KindGeneric
}

func invalidURL(raw string, err error) error {
	return &ImportError{Kind: KindInvalidURL, Err: fmt.Errorf("%w: %s: %v", shared.ErrUnsupportedURL, raw, err)}
}
