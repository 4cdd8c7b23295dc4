package scanner

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
)

// ImageCamera replays still images as camera frames, one per frame request, cycling. It lets the
// CLI scan printed cards from photos.
type ImageCamera struct {
	Paths []string
}

func (c *ImageCamera) RequestPermission(context.Context) error {
	for _, p := range c.Paths {
		f, err := os.Open(p)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			}
			continue
		}
		f.Close()
	}
	return nil
}

func (c *ImageCamera) Devices(context.Context) ([]Device, error) {
	if len(c.Paths) == 0 {
		return nil, nil
	}
	return []Device{{ID: "images", Label: fmt.Sprintf("%d image(s) from %s (back)", len(c.Paths), filepath.Dir(c.Paths[0]))}}, nil
}

func (c *ImageCamera) Open(_ context.Context, deviceID string, _ StreamConfig) (Stream, error) {
	if deviceID != "images" {
		return nil, fmt.Errorf("%w: unknown device %q", ErrNoDevice, deviceID)
	}
	frames := make([]image.Image, 0, len(c.Paths))
	for _, p := range c.Paths {
		img, err := loadImage(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	return &imageStream{frames: frames}, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

type imageStream struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	closed bool
}

func (s *imageStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	img := s.frames[s.next%len(s.frames)]
	s.next++
	return img, nil
}

func (s *imageStream) TorchCapable() bool  { return false }
func (s *imageStream) SetTorch(bool) error { return ErrNoTorch }

func (s *imageStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
