package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication and session errors
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrSessionExpired     = fmt.Errorf("session expired")

	// Gateway errors
	ErrGateway            = fmt.Errorf("gateway request failed")
	ErrNotFound           = fmt.Errorf("record not found")
	ErrStaleVersion       = fmt.Errorf("record was modified by another writer")
	ErrBatchFailed        = fmt.Errorf("batch request failed")
	ErrFileTooLarge       = fmt.Errorf("file exceeds size limit")
	ErrUnknownDriver      = fmt.Errorf("unknown gateway driver")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Media errors
	ErrMedia          = fmt.Errorf("media error")
	ErrUnsupportedURL = fmt.Errorf("unsupported URL")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
