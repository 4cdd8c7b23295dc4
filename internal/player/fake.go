package player

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FakeOpener creates [FakeMedia] for tests and for running without an audio device.
type FakeOpener struct {
	Duration time.Duration
	OpenErr  error
	PlayErr  error

	mu     sync.Mutex
	opened []*FakeMedia
}

func (o *FakeOpener) Open(_ context.Context, url string, emit func(Event)) (Media, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	m := &FakeMedia{URL: url, duration: o.Duration, playErr: o.PlayErr, emit: emit}

	o.mu.Lock()
	o.opened = append(o.opened, m)
	o.mu.Unlock()

	emit(Event{Kind: EventMetadata, Duration: o.Duration})
	return m, nil
}

// Opened returns every media created so far, oldest first.
func (o *FakeOpener) Opened() []*FakeMedia {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*FakeMedia(nil), o.opened...)
}

// Last returns the most recently opened media or nil.
func (o *FakeOpener) Last() *FakeMedia {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}

// FakeMedia keeps a virtual clock that tests move with Advance.
type FakeMedia struct {
	URL string

	mu       sync.Mutex
	duration time.Duration
	pos      time.Duration
	playing  bool
	closed   bool
	playErr  error
	emit     func(Event)
}

var errMediaClosed = errors.New("media closed")

func (m *FakeMedia) Play(context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMediaClosed
	}
	if m.playErr != nil {
		m.mu.Unlock()
		return m.playErr
	}
	m.playing = true
	m.mu.Unlock()
	m.emit(Event{Kind: EventPlay})
	return nil
}

func (m *FakeMedia) Pause() error {
	m.mu.Lock()
	was := m.playing
	m.playing = false
	m.mu.Unlock()
	if was {
		m.emit(Event{Kind: EventPause})
	}
	return nil
}

func (m *FakeMedia) Seek(t time.Duration) error {
	m.mu.Lock()
	m.pos = max(0, min(t, m.duration))
	pos := m.pos
	m.mu.Unlock()
	m.emit(Event{Kind: EventTimeUpdate, Time: pos})
	return nil
}

func (m *FakeMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *FakeMedia) Close() error {
	m.mu.Lock()
	m.closed = true
	m.playing = false
	m.mu.Unlock()
	return nil
}

// Closed reports whether the media was released.
func (m *FakeMedia) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Playing reports whether the media is currently playing.
func (m *FakeMedia) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Advance plays d of audio. Reaching the end rewinds and reports EventEnded.
func (m *FakeMedia) Advance(d time.Duration) {
	m.mu.Lock()
	if !m.playing {
		m.mu.Unlock()
		return
	}
	m.pos += d
	if m.pos >= m.duration {
		m.pos = 0
		m.playing = false
		m.mu.Unlock()
		m.emit(Event{Kind: EventEnded})
		return
	}
	pos := m.pos
	m.mu.Unlock()
	m.emit(Event{Kind: EventTimeUpdate, Time: pos})
}

// Fail reports a decode or network error.
func (m *FakeMedia) Fail(err error) {
	m.emit(Event{Kind: EventError, Err: err})
}
