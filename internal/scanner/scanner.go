// Package scanner runs camera QR scan sessions that resolve card payloads to songs.
//
// A [Session] walks a fixed startup sequence (secure context, permission check, device
// enumeration and selection, stream start) and then decodes frames at a fixed rate. The first
// payload that validates stops the session and is handed to Navigate exactly once. Payloads that
// do not validate are reported and scanning continues. Sessions are single use; [Manager] builds
// a fresh one per start.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

const (
	DefaultFPS    = 10
	IdealWidth    = 1280
	IdealHeight   = 720
	narrowWidth   = 768
	facingBack    = "environment"
	minBoxNarrow  = 200
	minBoxDefault = 150
)

// Device is one video input.
type Device struct {
	ID    string
	Label string
}

// StreamConfig is requested from the camera when opening a device.
type StreamConfig struct {
	FPS        int
	Width      int
	Height     int
	FacingMode string
}

// Camera is the device capability a scan session needs.
type Camera interface {
	// RequestPermission acquires and immediately releases a capture to trigger the permission prompt.
	RequestPermission(ctx context.Context) error
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, deviceID string, cfg StreamConfig) (Stream, error)
}

// Stream is an open capture. Close must be safe to call while Frame is in progress.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	TorchCapable() bool
	SetTorch(on bool) error
	Close() error
}

// Decoder finds a QR payload inside box of img. It returns [ErrNoCode] when there is none.
type Decoder interface {
	Decode(img image.Image, box image.Rectangle) (string, error)
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(img image.Image, box image.Rectangle) (string, error)

func (f DecoderFunc) Decode(img image.Image, box image.Rectangle) (string, error) { return f(img, box) }

// Validator resolves a payload to a known entity; a nil error means the payload is a card.
type Validator func(ctx context.Context, payload string) error

// SongValidator accepts payloads that are the id of an existing song.
func SongValidator(songs models.Collection[models.Song]) Validator {
	return func(ctx context.Context, payload string) error {
		_, err := songs.Get(ctx, payload)
		return err
	}
}

// Environment describes where the scanner runs.
type Environment struct {
	Secure        bool
	ViewportWidth int
	// ViewReady reports whether the preview surface exists. Nil means always ready.
	ViewReady func() bool
}

// IsSecureOrigin accepts https origins and local hosts.
func IsSecureOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return u.Scheme == "https" || strings.Contains(host, "localhost") || host == "127.0.0.1"
}

// ScanBox returns the edge of the square decode region for a frame of w by h. Narrow viewports
// get a larger share of the frame and a larger minimum edge.
func ScanBox(w, h, viewportWidth int) int {
	minEdge := min(w, h)
	if viewportWidth < narrowWidth {
		return max(minBoxNarrow, minEdge*85/100)
	}
	return max(minBoxDefault, minEdge*70/100)
}

// scanRect centers a box of ScanBox size on bounds, clipped to it.
func scanRect(bounds image.Rectangle, viewportWidth int) image.Rectangle {
	edge := ScanBox(bounds.Dx(), bounds.Dy(), viewportWidth)
	c := image.Pt(bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2)
	r := image.Rect(c.X-edge/2, c.Y-edge/2, c.X-edge/2+edge, c.Y-edge/2+edge)
	return r.Intersect(bounds)
}

// SelectDevice prefers a rear camera by label and falls back to the first device.
func SelectDevice(devices []Device) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		if strings.Contains(label, "back") || strings.Contains(label, facingBack) {
			return d, true
		}
	}
	return devices[0], true
}

// Config wires a session to its collaborators. Camera, Decoder, Validate and Navigate are required.
type Config struct {
	Env      Environment
	FPS      int
	Camera   Camera
	Decoder  Decoder
	Validate Validator
	// Navigate receives the first valid payload after the session has stopped.
	Navigate func(payload string)
	// OnInvalid is called once per distinct payload that fails validation.
	OnInvalid func(payload string, err error)
	// OnTorchError is called when toggling the torch fails.
	OnTorchError func(err error)
	Logger       *log.Logger
}

// Session is one camera acquisition, decode loop and teardown. It cannot be restarted.
type Session struct {
	cfg    Config
	logger *log.Logger

	mu      sync.Mutex
	started bool
	stream  Stream
	device  Device
	torch   bool
	torchOn bool

	stopOnce sync.Once
	stopped  chan struct{}
	navOnce  sync.Once
	done     chan struct{}
	finish   func()
}

func NewSession(cfg Config) *Session {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	s := &Session{cfg: cfg, logger: logger, stopped: make(chan struct{}), done: make(chan struct{})}
	s.finish = sync.OnceFunc(func() { close(s.done) })
	return s
}

// Start runs the startup sequence and begins decoding in the background. Any failure is a
// [*Failure] and leaves the session stopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.isStopped() {
		if !s.started {
			s.finish()
		}
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.started = true
	s.mu.Unlock()

	stream, device, err := s.open(ctx)
	if err != nil {
		s.Stop()
		s.finish()
		return err
	}

	s.mu.Lock()
	if s.isStopped() {
		s.mu.Unlock()
		stream.Close()
		s.finish()
		return ErrSessionClosed
	}
	s.stream = stream
	s.device = device
	s.torch = stream.TorchCapable()
	s.mu.Unlock()

	s.logger.Info("scanner started", "device", device.Label, "fps", s.cfg.FPS, "torch", s.torch)
	go s.loop(stream)
	return nil
}

func (s *Session) open(ctx context.Context) (Stream, Device, error) {
	env := s.cfg.Env
	if env.ViewReady != nil && !env.ViewReady() {
		return nil, Device{}, &Failure{Reason: ReasonNotReady}
	}
	if !env.Secure {
		return nil, Device{}, &Failure{Reason: ReasonInsecureContext}
	}
	if err := s.cfg.Camera.RequestPermission(ctx); err != nil {
		return nil, Device{}, classify(err, ReasonPermissionDenied)
	}

	devices, err := s.cfg.Camera.Devices(ctx)
	if err != nil {
		return nil, Device{}, classify(err, ReasonEnumeration)
	}
	device, ok := SelectDevice(devices)
	if !ok {
		return nil, Device{}, &Failure{Reason: ReasonNoDevice}
	}

	stream, err := s.cfg.Camera.Open(ctx, device.ID, StreamConfig{
		FPS:        s.cfg.FPS,
		Width:      IdealWidth,
		Height:     IdealHeight,
		FacingMode: facingBack,
	})
	if err != nil {
		return nil, Device{}, classify(err, ReasonCameraStart)
	}
	return stream, device, nil
}

func (s *Session) isStopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

func (s *Session) loop(stream Stream) {
	defer s.finish()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	var lastInvalid string
	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
		}

		frame, err := stream.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("frame grab failed", "error", err)
			continue
		}

		payload, err := s.cfg.Decoder.Decode(frame, scanRect(frame.Bounds(), s.cfg.Env.ViewportWidth))
		if err != nil {
			if !errors.Is(err, ErrNoCode) {
				s.logger.Debug("decode failed", "error", err)
			}
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == lastInvalid {
			continue
		}

		if err := s.cfg.Validate(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			lastInvalid = payload
			s.logger.Warn("invalid card", "payload", payload, "error", err)
			if s.cfg.OnInvalid != nil {
				s.cfg.OnInvalid(payload, err)
			}
			continue
		}

		s.Stop()
		s.navOnce.Do(func() {
			s.logger.Info("card scanned", "payload", payload)
			s.cfg.Navigate(payload)
		})
		return
	}
}

// Stop releases the camera. It is safe to call any number of times, from any goroutine,
// including before Start and from Navigate.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)

		s.mu.Lock()
		stream := s.stream
		s.stream = nil
		s.mu.Unlock()

		if stream != nil {
			if err := stream.Close(); err != nil {
				s.logger.Warn("failed to release camera", "error", err)
			}
		}
	})
}

// Done is closed when the decode loop has exited, or Start has failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Active reports whether the session is started and not stopped.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && s.stream != nil && !s.isStopped()
}

func (s *Session) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// TorchCapable is the capability probed once at start.
func (s *Session) TorchCapable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torch
}

// TorchOn reports the last torch state that was applied.
func (s *Session) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torchOn
}

// ToggleTorch flips the torch. Failures are reported through OnTorchError and returned, and
// the session keeps scanning.
func (s *Session) ToggleTorch() error {
	s.mu.Lock()
	stream, capable, next := s.stream, s.torch, !s.torchOn
	s.mu.Unlock()

	if stream == nil {
		return ErrSessionClosed
	}
	if !capable {
		return ErrNoTorch
	}
	if err := stream.SetTorch(next); err != nil {
		err = fmt.Errorf("failed to toggle torch: %w", err)
		s.logger.Warn("torch toggle failed", "error", err)
		if s.cfg.OnTorchError != nil {
			s.cfg.OnTorchError(err)
		}
		return err
	}

	s.mu.Lock()
	s.torchOn = next
	s.mu.Unlock()
	return nil
}

// Manager hands out a fresh session for each start and stops the previous one.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	current *Session
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Start stops any running session and starts a new one.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	prev := m.current
	s := NewSession(m.cfg)
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Stop stops the current session, if any.
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// Current returns the most recent session or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
