// Package player drives audio playback through a small state machine.
//
// A [Player] owns at most one [Media] at a time. Media report what happened through [Event]
// values and the player folds them into a [Status] that observers receive through
// [Player.OnChange]. Media errors are terminal for the loaded resource; loading again recovers.
package player

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// DefaultSkip is the step used by Forward and Backward.
const DefaultSkip = 10 * time.Second

type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of playback.
type Status struct {
	State       State
	CurrentTime time.Duration
	Duration    time.Duration
	IsPlaying   bool
	URL         string
	Err         error
}

type EventKind int

const (
	EventMetadata EventKind = iota
	EventTimeUpdate
	EventPlay
	EventPause
	EventEnded
	EventError
)

// Event is reported by a media resource. Time is set for time updates, Duration for metadata
// and Err for errors.
type Event struct {
	Kind     EventKind
	Time     time.Duration
	Duration time.Duration
	Err      error
}

// Media is one loaded audio resource.
//
// Implementations report Play, Pause and Seek effects through their event callback before
// those methods return. Seek clamps to the media's own bounds.
type Media interface {
	Play(ctx context.Context) error
	Pause() error
	Seek(t time.Duration) error
	Position() time.Duration
	Close() error
}

// Opener creates media for a source URL. emit may be called from any goroutine, including
// synchronously from Open.
type Opener interface {
	Open(ctx context.Context, url string, emit func(Event)) (Media, error)
}

type Option func(*Player)

// WithSkip sets the step for Forward and Backward.
func WithSkip(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.skip = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// Player is safe for concurrent use.
type Player struct {
	opener Opener
	skip   time.Duration
	logger *log.Logger

	mu      sync.Mutex
	media   Media
	gen     int
	status  Status
	subs    map[int]func(Status)
	nextSub int
}

func New(opener Opener, opts ...Option) *Player {
	p := &Player{
		opener: opener,
		skip:   DefaultSkip,
		logger: shared.NewLogger(io.Discard),
		subs:   make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status returns the current snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// OnChange registers fn for every status change and returns a function that removes it.
// fn runs without the player's lock held.
func (p *Player) OnChange(fn func(Status)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers when it reports a change.
func (p *Player) update(fn func(s *Status) bool) {
	p.mu.Lock()
	if !fn(&p.status) {
		p.mu.Unlock()
		return
	}
	snapshot := p.status
	subs := make([]func(Status), 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s(snapshot)
	}
}

// Load opens url, tearing down any previously loaded media. Loading the URL that is already
// loaded does nothing unless the player is in the error state.
func (p *Player) Load(ctx context.Context, url string) error {
	p.mu.Lock()
	if p.media != nil && p.status.URL == url && p.status.State != StateError {
		p.mu.Unlock()
		return nil
	}
	old := p.media
	p.media = nil
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	teardown(old, p.logger)

	p.update(func(s *Status) bool {
		*s = Status{State: StateLoading, URL: url}
		return true
	})

	media, err := p.opener.Open(ctx, url, p.handler(gen))
	if err != nil {
		p.update(func(s *Status) bool {
			if p.gen != gen {
				return false
			}
			s.State = StateError
			s.Err = fmt.Errorf("%w: %v", shared.ErrMedia, err)
			return true
		})
		return fmt.Errorf("%w: failed to load %s: %v", shared.ErrMedia, url, err)
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		teardown(media, p.logger)
		return nil
	}
	p.media = media
	p.mu.Unlock()
	p.logger.Debug("media loaded", "url", url)
	return nil
}

// handler folds media events for one load generation into the status.
func (p *Player) handler(gen int) func(Event) {
	return func(e Event) {
		p.update(func(s *Status) bool {
			if p.gen != gen || (s.State == StateError && e.Kind != EventError) {
				return false
			}
			switch e.Kind {
			case EventMetadata:
				s.Duration = e.Duration
				if s.State == StateLoading {
					s.State = StateIdle
				}
			case EventTimeUpdate:
				s.CurrentTime = e.Time
			case EventPlay:
				s.State = StatePlaying
				s.IsPlaying = true
			case EventPause:
				s.State = StatePaused
				s.IsPlaying = false
			case EventEnded:
				s.State = StateStopped
				s.IsPlaying = false
				s.CurrentTime = 0
			case EventError:
				s.State = StateError
				s.IsPlaying = false
				s.Err = fmt.Errorf("%w: %v", shared.ErrMedia, e.Err)
			}
			return true
		})
	}
}

func (p *Player) current() (Media, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return nil, 0, fmt.Errorf("%w: nothing loaded", shared.ErrMedia)
	}
	return p.media, p.gen, nil
}

// Play starts or resumes playback. A rejection moves the player to the error state.
func (p *Player) Play(ctx context.Context) error {
	media, gen, err := p.current()
	if err != nil {
		return err
	}
	if err := media.Play(ctx); err != nil {
		p.handler(gen)(Event{Kind: EventError, Err: err})
		return fmt.Errorf("%w: play rejected: %v", shared.ErrMedia, err)
	}
	return nil
}

func (p *Player) Pause() error {
	media, _, err := p.current()
	if err != nil {
		return err
	}
	return media.Pause()
}

// Stop pauses and rewinds to the start.
func (p *Player) Stop() error {
	media, gen, err := p.current()
	if err != nil {
		return err
	}
	if err := media.Pause(); err != nil {
		return err
	}
	if err := media.Seek(0); err != nil {
		return err
	}
	p.update(func(s *Status) bool {
		if p.gen != gen || s.State == StateError {
			return false
		}
		s.State = StateStopped
		s.IsPlaying = false
		s.CurrentTime = 0
		return true
	})
	return nil
}

// Seek moves to t. Bounds are the media's concern.
func (p *Player) Seek(t time.Duration) error {
	media, _, err := p.current()
	if err != nil {
		return err
	}
	return media.Seek(t)
}

// Forward skips ahead, never past the duration.
func (p *Player) Forward() error { return p.skipBy(p.skip) }

// Backward skips back, never before the start.
func (p *Player) Backward() error { return p.skipBy(-p.skip) }

func (p *Player) skipBy(d time.Duration) error {
	media, _, err := p.current()
	if err != nil {
		return err
	}
	duration := p.Status().Duration
	target := media.Position() + d
	if target > duration {
		target = duration
	}
	if target < 0 {
		target = 0
	}
	return media.Seek(target)
}

// Close releases the loaded media and resets the status.
func (p *Player) Close() error {
	p.mu.Lock()
	media := p.media
	p.media = nil
	p.gen++
	p.mu.Unlock()

	p.update(func(s *Status) bool {
		*s = Status{}
		return true
	})
	if media == nil {
		return nil
	}
	media.Pause()
	return media.Close()
}

func teardown(m Media, logger *log.Logger) {
	if m == nil {
		return
	}
	if err := m.Pause(); err != nil {
		logger.Debug("pause on teardown failed", "error", err)
	}
	if err := m.Close(); err != nil {
		logger.Warn("failed to release media", "error", err)
	}
}
