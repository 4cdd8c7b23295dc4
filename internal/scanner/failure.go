package scanner

import (
	"errors"
	"fmt"
)

// Errors returned by [Camera] implementations. The session turns them into a [Failure].
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera found")
	ErrDeviceInUse      = errors.New("camera in use")
	ErrNotReady         = errors.New("view not ready")
	ErrSessionClosed    = errors.New("scan session closed")
	ErrNoCode           = errors.New("no QR code in frame")
	ErrNoTorch          = errors.New("torch not supported")
)

type Reason int

const (
	ReasonCameraStart Reason = iota
	ReasonPermissionDenied
	ReasonNoDevice
	ReasonDeviceInUse
	ReasonInsecureContext
	ReasonNotReady
	ReasonEnumeration
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonNoDevice:
		return "no device"
	case ReasonDeviceInUse:
		return "device in use"
	case ReasonInsecureContext:
		return "insecure context"
	case ReasonNotReady:
		return "not ready"
	case ReasonEnumeration:
		return "enumeration failed"
	default:
		return "camera start failed"
	}
}

// Guidance is the message shown to the user for the reason.
func (r Reason) Guidance() string {
	switch r {
	case ReasonPermissionDenied:
		return "Camera access was denied. Allow camera access in your settings and try again."
	case ReasonNoDevice:
		return "No camera was found on this device."
	case ReasonDeviceInUse:
		return "The camera is being used by another application. Close it and try again."
	case ReasonInsecureContext:
		return "The camera needs a secure connection. Open the app over HTTPS or from localhost."
	case ReasonNotReady:
		return "The scanner view is not ready yet. Try again in a moment."
	case ReasonEnumeration:
		return "Could not list the available cameras."
	default:
		return "Could not start the camera."
	}
}

// Failure is why a scan session could not start.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.Guidance()
	}
	return fmt.Sprintf("%s (%v)", f.Reason.Guidance(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsTransient reports whether err is a failure the caller may retry after a short delay.
func IsTransient(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Reason == ReasonNotReady
}

// classify maps a camera error onto the failure taxonomy, using fallback when the error is unknown.
func classify(err error, fallback Reason) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &Failure{Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, ErrNoDevice):
		return &Failure{Reason: ReasonNoDevice, Err: err}
	case errors.Is(err, ErrDeviceInUse):
		return &Failure{Reason: ReasonDeviceInUse, Err: err}
	case errors.Is(err, ErrNotReady):
		return &Failure{Reason: ReasonNotReady, Err: err}
	}
	return &Failure{Reason: fallback, Err: err}
}
