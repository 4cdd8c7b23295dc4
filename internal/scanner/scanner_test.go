package scanner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	qrgen "github.com/skip2/go-qrcode"

	"github.com/desertthunder/cardquiz/internal/shared"
	th "github.com/desertthunder/cardquiz/internal/testing"
)

var (
	backCam  = Device{ID: "cam-back", Label: "Back Camera"}
	frontCam = Device{ID: "cam-front", Label: "FaceTime HD"}
)

func frame() image.Image { return image.NewGray(image.Rect(0, 0, 640, 480)) }

// payloads decodes frames by identity.
func payloads(m map[image.Image]string) Decoder {
	return DecoderFunc(func(img image.Image, _ image.Rectangle) (string, error) {
		if p, ok := m[img]; ok {
			return p, nil
		}
		return "", ErrNoCode
	})
}

func validIDs(ids ...string) Validator {
	return func(_ context.Context, payload string) error {
		for _, id := range ids {
			if id == payload {
				return nil
			}
		}
		return shared.ErrNotFound
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

type recorder struct {
	mu       sync.Mutex
	navs     []string
	invalids []string
	torch    []error
	invalid  chan struct{}
}

func newRecorder() *recorder { return &recorder{invalid: make(chan struct{}, 16)} }

func (r *recorder) navigate(p string) {
	r.mu.Lock()
	r.navs = append(r.navs, p)
	r.mu.Unlock()
}

func (r *recorder) onInvalid(p string, _ error) {
	r.mu.Lock()
	r.invalids = append(r.invalids, p)
	r.mu.Unlock()
	r.invalid <- struct{}{}
}

func (r *recorder) onTorch(err error) {
	r.mu.Lock()
	r.torch = append(r.torch, err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (navs, invalids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navs...), append([]string(nil), r.invalids...)
}

func config(cam *FakeCamera, dec Decoder, rec *recorder, valid ...string) Config {
	return Config{
		Env:          Environment{Secure: true, ViewportWidth: 1024},
		FPS:          1000,
		Camera:       cam,
		Decoder:      dec,
		Validate:     validIDs(valid...),
		Navigate:     rec.navigate,
		OnInvalid:    rec.onInvalid,
		OnTorchError: rec.onTorch,
	}
}

func TestValidPayloadNavigatesOnce(t *testing.T) {
	blank, bogus, card := frame(), frame(), frame()
	cam := &FakeCamera{DeviceList: []Device{backCam}, Frames: []image.Image{blank, bogus, card}}
	rec := newRecorder()
	s := NewSession(config(cam, payloads(map[image.Image]string{bogus: "bogus", card: " song-1 "}), rec, "song-1"))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, s)
	s.Stop()

	navs, invalids := rec.snapshot()
	if len(navs) != 1 || navs[0] != "song-1" {
		t.Errorf("expected one navigation to song-1, got %v", navs)
	}
	if len(invalids) != 1 || invalids[0] != "bogus" {
		t.Errorf("expected bogus reported once, got %v", invalids)
	}
	streams := cam.Streams()
	if len(streams) != 1 || streams[0].Closes() != 1 {
		t.Errorf("expected the stream released exactly once")
	}
	if s.Active() {
		t.Error("expected session inactive")
	}
}

func TestInvalidPayloadKeepsScanning(t *testing.T) {
	bogus := frame()
	cam := &FakeCamera{DeviceList: []Device{backCam}, Frames: []image.Image{bogus}}
	rec := newRecorder()
	s := NewSession(config(cam, payloads(map[image.Image]string{bogus: "not-a-card"}), rec, "song-1"))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-rec.invalid:
	case <-time.After(2 * time.Second):
		t.Fatal("invalid card never reported")
	}
	time.Sleep(20 * time.Millisecond)

	if !s.Active() {
		t.Error("expected session to stay active")
	}
	if cam.Streams()[0].Closes() != 0 {
		t.Error("camera released on invalid card")
	}
	navs, invalids := rec.snapshot()
	if len(navs) != 0 {
		t.Errorf("unexpected navigation %v", navs)
	}
	if len(invalids) != 1 {
		t.Errorf("expected repeated payload reported once, got %d", len(invalids))
	}

	s.Stop()
	waitDone(t, s)
	if cam.Streams()[0].Closes() != 1 {
		t.Error("expected camera released on stop")
	}
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name   string
		env    Environment
		cam    *FakeCamera
		reason Reason
	}{
		{"not ready", Environment{Secure: true, ViewReady: func() bool { return false }}, &FakeCamera{DeviceList: []Device{backCam}}, ReasonNotReady},
		{"insecure", Environment{}, &FakeCamera{DeviceList: []Device{backCam}}, ReasonInsecureContext},
		{"permission denied", Environment{Secure: true}, &FakeCamera{PermissionErr: ErrPermissionDenied}, ReasonPermissionDenied},
		{"busy on permission check", Environment{Secure: true}, &FakeCamera{PermissionErr: ErrDeviceInUse}, ReasonDeviceInUse},
		{"enumeration", Environment{Secure: true}, &FakeCamera{DevicesErr: errors.New("boom")}, ReasonEnumeration},
		{"no devices", Environment{Secure: true}, &FakeCamera{}, ReasonNoDevice},
		{"busy on open", Environment{Secure: true}, &FakeCamera{DeviceList: []Device{backCam}, OpenErr: ErrDeviceInUse}, ReasonDeviceInUse},
		{"open failed", Environment{Secure: true}, &FakeCamera{DeviceList: []Device{backCam}, OpenErr: errors.New("boom")}, ReasonCameraStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config(tt.cam, payloads(nil), newRecorder())
			cfg.Env = tt.env
			s := NewSession(cfg)

			err := s.Start(context.Background())
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("expected *Failure, got %v", err)
			}
			if f.Reason != tt.reason {
				t.Errorf("expected reason %v, got %v", tt.reason, f.Reason)
			}
			if f.Error() == "" {
				t.Error("expected guidance text")
			}
			if IsTransient(err) != (tt.reason == ReasonNotReady) {
				t.Errorf("IsTransient = %v for %v", IsTransient(err), tt.reason)
			}
			waitDone(t, s)
			if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
				t.Errorf("expected ErrSessionClosed on reuse, got %v", err)
			}
		})
	}
}

func TestPermissionProbeBeforeEnumeration(t *testing.T) {
	cam := &FakeCamera{PermissionErr: ErrPermissionDenied, DevicesErr: errors.New("should not be reached")}
	s := NewSession(config(cam, payloads(nil), newRecorder()))
	err := s.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestDeviceSelection(t *testing.T) {
	tests := []struct {
		name    string
		devices []Device
		want    string
	}{
		{"prefers back", []Device{frontCam, backCam}, "cam-back"},
		{"environment label", []Device{frontCam, {ID: "env", Label: "camera2 0, facing ENVIRONMENT"}}, "env"},
		{"falls back to first", []Device{frontCam, {ID: "usb", Label: "USB Camera"}}, "cam-front"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := &FakeCamera{DeviceList: tt.devices}
			s := NewSession(config(cam, payloads(nil), newRecorder()))
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer s.Stop()

			if opened := cam.Opened(); len(opened) != 1 || opened[0] != tt.want {
				t.Errorf("expected %s opened, got %v", tt.want, opened)
			}
			if s.Device().ID != tt.want {
				t.Errorf("expected device %s, got %s", tt.want, s.Device().ID)
			}
			cfg := cam.Streams()[0].Config
			if cfg.Width != IdealWidth || cfg.Height != IdealHeight || cfg.FPS != 1000 {
				t.Errorf("unexpected stream config %+v", cfg)
			}
		})
	}

	if _, ok := SelectDevice(nil); ok {
		t.Error("expected no device from empty list")
	}
}

func TestScanBox(t *testing.T) {
	tests := []struct {
		name          string
		w, h, viewport int
		want          int
	}{
		{"desktop", 1280, 720, 1024, 504},
		{"desktop minimum", 100, 100, 1024, 150},
		{"mobile", 300, 400, 375, 255},
		{"mobile minimum", 200, 200, 375, 200},
		{"boundary is desktop", 1000, 1000, 768, 700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScanBox(tt.w, tt.h, tt.viewport); got != tt.want {
				t.Errorf("ScanBox(%d, %d, %d) = %d, want %d", tt.w, tt.h, tt.viewport, got, tt.want)
			}
		})
	}
}

func TestTorch(t *testing.T) {
	t.Run("toggles when capable", func(t *testing.T) {
		cam := &FakeCamera{DeviceList: []Device{backCam}, Torch: true}
		s := NewSession(config(cam, payloads(nil), newRecorder()))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer s.Stop()

		if !s.TorchCapable() {
			t.Fatal("expected torch capability")
		}
		if err := s.ToggleTorch(); err != nil {
			t.Fatalf("ToggleTorch failed: %v", err)
		}
		if !s.TorchOn() || !cam.Streams()[0].TorchOn() {
			t.Error("expected torch on")
		}
		s.ToggleTorch()
		if s.TorchOn() {
			t.Error("expected torch off")
		}
	})

	t.Run("failure is reported and scanning continues", func(t *testing.T) {
		cam := &FakeCamera{DeviceList: []Device{backCam}, Torch: true, TorchErr: errors.New("overconstrained")}
		rec := newRecorder()
		s := NewSession(config(cam, payloads(nil), rec))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer s.Stop()

		if err := s.ToggleTorch(); err == nil {
			t.Error("expected toggle error")
		}
		rec.mu.Lock()
		reported := len(rec.torch)
		rec.mu.Unlock()
		if reported != 1 {
			t.Errorf("expected torch error reported once, got %d", reported)
		}
		if !s.Active() {
			t.Error("expected session still active")
		}
	})

	t.Run("not capable", func(t *testing.T) {
		cam := &FakeCamera{DeviceList: []Device{backCam}}
		s := NewSession(config(cam, payloads(nil), newRecorder()))
		s.Start(context.Background())
		defer s.Stop()
		if err := s.ToggleTorch(); !errors.Is(err, ErrNoTorch) {
			t.Errorf("expected ErrNoTorch, got %v", err)
		}
	})
}

func TestStopIsIdempotent(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		s := NewSession(config(&FakeCamera{DeviceList: []Device{backCam}}, payloads(nil), newRecorder()))
		s.Stop()
		s.Stop()
		if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
		waitDone(t, s)
	})

	t.Run("after start", func(t *testing.T) {
		cam := &FakeCamera{DeviceList: []Device{backCam}}
		s := NewSession(config(cam, payloads(nil), newRecorder()))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		s.Stop()
		s.Stop()
		waitDone(t, s)
		if n := cam.Streams()[0].Closes(); n != 1 {
			t.Errorf("expected one release, got %d", n)
		}
		if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
		if err := s.ToggleTorch(); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	})
}

func TestManager(t *testing.T) {
	cam := &FakeCamera{DeviceList: []Device{backCam}}
	m := NewManager(config(cam, payloads(nil), newRecorder()))
	m.Stop()

	first, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh session")
	}
	waitDone(t, first)
	if first.Active() || !second.Active() {
		t.Error("expected only the newest session active")
	}
	if m.Current() != second {
		t.Error("expected current to be the newest session")
	}

	m.Stop()
	waitDone(t, second)
}

func TestIsSecureOrigin(t *testing.T) {
	tests := map[string]bool{
		"https://quiz.example.com":  true,
		"http://localhost:3000":     true,
		"http://127.0.0.1:3000":     true,
		"http://quiz.example.com":   false,
		"http://192.168.1.10:3000":  false,
		"::not a url":               false,
	}
	for origin, want := range tests {
		if got := IsSecureOrigin(origin); got != want {
			t.Errorf("IsSecureOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func qrFrame(t *testing.T, content string) image.Image {
	t.Helper()
	code, err := qrgen.New(content, qrgen.Medium)
	if err != nil {
		t.Fatalf("failed to generate QR: %v", err)
	}
	qr := code.Image(240)

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	off := image.Pt((640-240)/2, (480-240)/2)
	draw.Draw(img, qr.Bounds().Add(off), qr, image.Point{}, draw.Src)
	return img
}

func TestQRDecoder(t *testing.T) {
	dec := NewQRDecoder()

	img := qrFrame(t, "abc123song")
	got, err := dec.Decode(img, scanRect(img.Bounds(), 1024))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != "abc123song" {
		t.Errorf("expected abc123song, got %q", got)
	}

	blank := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if _, err := dec.Decode(blank, image.Rectangle{}); !errors.Is(err, ErrNoCode) {
		t.Errorf("expected ErrNoCode, got %v", err)
	}
}

func TestScanWithGatewayValidator(t *testing.T) {
	gw := th.NewGateway(t)
	song := th.MustSong(t, gw, "Scanned", 2001)

	cam := &FakeCamera{DeviceList: []Device{backCam}, Frames: []image.Image{qrFrame(t, song.ID)}}
	rec := newRecorder()
	cfg := config(cam, NewQRDecoder(), rec)
	cfg.Validate = SongValidator(gw.Songs())
	s := NewSession(cfg)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, s)

	navs, _ := rec.snapshot()
	if len(navs) != 1 || navs[0] != song.ID {
		t.Errorf("expected navigation to %s, got %v", song.ID, navs)
	}
}
