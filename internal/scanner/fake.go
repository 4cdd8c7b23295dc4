package scanner

import (
	"context"
	"image"
	"sync"
)

// FakeCamera is a scriptable [Camera] for tests.
type FakeCamera struct {
	DeviceList    []Device
	PermissionErr error
	DevicesErr    error
	OpenErr       error
	Torch         bool
	TorchErr      error
	// Frames are served in order; the last one repeats.
	Frames []image.Image

	mu          sync.Mutex
	permissions int
	opened      []string
	streams     []*FakeStream
}

func (c *FakeCamera) RequestPermission(context.Context) error {
	c.mu.Lock()
	c.permissions++
	c.mu.Unlock()
	return c.PermissionErr
}

func (c *FakeCamera) Devices(context.Context) ([]Device, error) {
	if c.DevicesErr != nil {
		return nil, c.DevicesErr
	}
	return c.DeviceList, nil
}

func (c *FakeCamera) Open(_ context.Context, deviceID string, cfg StreamConfig) (Stream, error) {
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	s := &FakeStream{frames: c.Frames, torch: c.Torch, torchErr: c.TorchErr, Config: cfg}
	c.mu.Lock()
	c.opened = append(c.opened, deviceID)
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

// Opened lists the device ids passed to Open.
func (c *FakeCamera) Opened() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...)
}

// Streams lists every stream opened so far.
func (c *FakeCamera) Streams() []*FakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeStream(nil), c.streams...)
}

// FakeStream serves the camera's frames and counts Close calls.
type FakeStream struct {
	Config StreamConfig

	mu       sync.Mutex
	frames   []image.Image
	next     int
	torch    bool
	torchErr error
	torchOn  bool
	closes   int
}

func (s *FakeStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return nil, ErrSessionClosed
	}
	if len(s.frames) == 0 {
		return image.NewGray(image.Rect(0, 0, 64, 64)), nil
	}
	img := s.frames[min(s.next, len(s.frames)-1)]
	s.next++
	return img, nil
}

func (s *FakeStream) TorchCapable() bool { return s.torch }

func (s *FakeStream) SetTorch(on bool) error {
	if s.torchErr != nil {
		return s.torchErr
	}
	s.mu.Lock()
	s.torchOn = on
	s.mu.Unlock()
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

// Closes is the number of times the stream was released.
func (s *FakeStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// TorchOn reports the last torch state set.
func (s *FakeStream) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torchOn
}
