package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/desertthunder/cardquiz/internal/shared"
)

const tickInterval = 250 * time.Millisecond

// BeepOpener decodes mp3, wav, flac and ogg vorbis from an HTTP URL or a local path and plays them
// through the system speaker. The speaker is initialized on first use at that file's sample rate;
// later files are resampled to it.
type BeepOpener struct {
	Client *http.Client
	Logger *log.Logger

	once    sync.Once
	initErr error
	rate    beep.SampleRate
}

type seekCloser struct{ *bytes.Reader }

func (seekCloser) Close() error { return nil }

func (o *BeepOpener) Open(ctx context.Context, url string, emit func(Event)) (Media, error) {
	data, contentType, err := o.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decode(data, url, contentType)
	if err != nil {
		return nil, err
	}

	o.once.Do(func() {
		o.rate = format.SampleRate
		o.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if o.initErr != nil {
		streamer.Close()
		return nil, fmt.Errorf("failed to initialize speaker: %w", o.initErr)
	}

	logger := o.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	m := &beepMedia{
		streamer: streamer,
		format:   format,
		rate:     o.rate,
		emit:     emit,
		ended:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go m.watch()

	emit(Event{Kind: EventMetadata, Duration: format.SampleRate.D(streamer.Len())})
	return m, nil
}

func (o *BeepOpener) fetch(ctx context.Context, url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		data, err := os.ReadFile(url)
		return data, "", err
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// sniff names the container from its leading bytes, or returns "" when nothing matched.
func sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ".wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ".flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ".webm"
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return ".m4a"
	case bytes.HasPrefix(data, []byte("ID3")):
		return ".mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xF6 == 0xF0:
		return ".aac"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	}
	return ""
}

// kindOf prefers the content itself, then the declared type, then the file extension.
func kindOf(data []byte, url, contentType string) string {
	if kind := sniff(data); kind != "" {
		return kind
	}
	switch {
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "mpeg"):
		return ".mp3"
	}
	return strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
}

func decode(data []byte, url, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	rc := seekCloser{bytes.NewReader(data)}
	kind := kindOf(data, url, contentType)

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch kind {
	case ".wav":
		streamer, format, err = wav.Decode(rc)
	case ".flac":
		streamer, format, err = flac.Decode(rc)
	case ".ogg":
		streamer, format, err = vorbis.Decode(rc)
	case ".mp3", "":
		streamer, format, err = mp3.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: unsupported audio format %q (playable: mp3, wav, flac, ogg vorbis)", shared.ErrMedia, kind)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: failed to decode %s audio: %v", shared.ErrMedia, strings.TrimPrefix(kind, "."), err)
	}
	return streamer, format, nil
}

// beepMedia is one decoded file queued on the speaker. The speaker lock guards the streamer
// and the control; mu guards the rest.
type beepMedia struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	rate     beep.SampleRate
	emit     func(Event)
	logger   *log.Logger

	ctrl   *beep.Ctrl
	ended  chan struct{}
	done   chan struct{}
	mu     sync.Mutex
	queued bool
	closed bool
}

// queue hands a fresh control to the speaker. A drained sequence leaves the mixer, so every
// replay after the end needs a new one.
func (m *beepMedia) queue() {
	var s beep.Streamer = m.streamer
	if m.format.SampleRate != m.rate {
		s = beep.Resample(4, m.format.SampleRate, m.rate, s)
	}
	m.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() {
		select {
		case m.ended <- struct{}{}:
		default:
		}
	}))}
	speaker.Play(m.ctrl)
	m.queued = true
}

func (m *beepMedia) Play(context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: media closed", shared.ErrMedia)
	}
	if m.queued {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
	} else {
		m.queue()
	}
	m.mu.Unlock()

	m.emit(Event{Kind: EventPlay})
	return nil
}

func (m *beepMedia) Pause() error {
	m.mu.Lock()
	if !m.queued || m.closed {
		m.mu.Unlock()
		return nil
	}
	speaker.Lock()
	was := !m.ctrl.Paused
	m.ctrl.Paused = true
	speaker.Unlock()
	m.mu.Unlock()

	if was {
		m.emit(Event{Kind: EventPause})
	}
	return nil
}

func (m *beepMedia) Seek(t time.Duration) error {
	speaker.Lock()
	n := m.format.SampleRate.N(t)
	n = max(0, min(n, m.streamer.Len()))
	err := m.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("%w: seek failed: %v", shared.ErrMedia, err)
	}
	m.emit(Event{Kind: EventTimeUpdate, Time: m.format.SampleRate.D(n)})
	return nil
}

func (m *beepMedia) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return m.format.SampleRate.D(m.streamer.Position())
}

func (m *beepMedia) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.queued {
		speaker.Lock()
		m.ctrl.Paused = true
		m.ctrl.Streamer = nil
		speaker.Unlock()
	}
	m.mu.Unlock()

	close(m.done)
	return m.streamer.Close()
}

// watch reports position while playing and handles the end of the stream outside the
// speaker's callback.
func (m *beepMedia) watch() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-m.ended:
			m.mu.Lock()
			m.queued = false
			m.mu.Unlock()
			speaker.Lock()
			err := m.streamer.Seek(0)
			speaker.Unlock()
			if err != nil {
				m.logger.Warn("failed to rewind after end", "error", err)
			}
			m.emit(Event{Kind: EventEnded})
		case <-ticker.C:
			m.mu.Lock()
			active, ctrl := m.queued && !m.closed, m.ctrl
			m.mu.Unlock()
			if !active {
				continue
			}
			speaker.Lock()
			paused := ctrl.Paused
			pos := m.streamer.Position()
			speaker.Unlock()
			if !paused {
				m.emit(Event{Kind: EventTimeUpdate, Time: m.format.SampleRate.D(pos)})
			}
		}
	}
}
