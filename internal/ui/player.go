package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cardquiz/internal/metadata"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/player"
)

// PlayerModel plays a single song. When embedded in the browser, quitting is left to the browser.
type PlayerModel struct {
	ctx      context.Context
	player   *player.Player
	song     *models.Song
	url      string
	status   player.Status
	updates  chan player.Status
	done     chan struct{}
	stopOnce sync.Once
	unsub    func()
	embedded bool
	err      error
	bar      progress.Model
	help     help.Model
	keys     keyMap
}

// NewPlayerModel creates a player view for song, whose audio is read from url.
func NewPlayerModel(ctx context.Context, p *player.Player, song *models.Song, url string) *PlayerModel {
	return &PlayerModel{
		ctx:     ctx,
		player:  p,
		song:    song,
		url:     url,
		updates: make(chan player.Status, 1),
		done:    make(chan struct{}),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init subscribes to the player and starts loading the song.
func (m *PlayerModel) Init() tea.Cmd {
	m.unsub = m.player.OnChange(m.publish)
	return tea.Batch(m.load(), m.waitForStatus())
}

// publish keeps only the newest status in the channel.
func (m *PlayerModel) publish(s player.Status) {
	for {
		select {
		case m.updates <- s:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

// Close unsubscribes from the player and stops playback. Safe to call more than once.
func (m *PlayerModel) Close() {
	m.stopOnce.Do(func() {
		if m.unsub != nil {
			m.unsub()
		}
		close(m.done)
		m.player.Stop()
	})
}

// Update handles incoming messages and updates the model state.
func (m *PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgSongLoaded:
			if err, _ := msg.data.(error); err != nil {
				m.err = err
			}
			return m, nil
		case MsgStatusChanged:
			m.status = msg.data.(player.Status)
			if m.status.Err != nil {
				m.err = m.status.Err
			}
			return m, m.waitForStatus()
		}
	}
	return m, nil
}

func (m *PlayerModel) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, m.keys.quit):
		if !m.embedded {
			m.Close()
			return m, tea.Quit
		}
	case key.Matches(msg, m.keys.toggle):
		if m.player.Status().IsPlaying {
			err = m.player.Pause()
		} else {
			err = m.player.Play(m.ctx)
		}
	case key.Matches(msg, m.keys.stop):
		err = m.player.Stop()
	case key.Matches(msg, m.keys.backward):
		err = m.player.Backward()
	case key.Matches(msg, m.keys.forward):
		err = m.player.Forward()
	}
	m.err = err
	m.status = m.player.Status()
	return m, nil
}

// load opens the song and starts playing it right away.
func (m *PlayerModel) load() tea.Cmd {
	return func() tea.Msg {
		if err := m.player.Load(m.ctx, m.url); err != nil {
			return songLoadedMsg(err)
		}
		return songLoadedMsg(m.player.Play(m.ctx))
	}
}

// waitForStatus blocks until the next status change. It returns nil once the model is closed.
func (m *PlayerModel) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.updates:
			return statusChangedMsg(s)
		case <-m.done:
			return nil
		case <-m.ctx.Done():
			return nil
		}
	}
}

// View renders the song, the transport state and a progress bar.
func (m *PlayerModel) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(m.song.Title))
	b.WriteString("\n")
	b.WriteString(m.song.Artist)
	if m.song.Album != "" {
		b.WriteString(" • " + m.song.Album)
	}
	if m.song.Year > 0 {
		b.WriteString("\n" + styles.year.Render(fmt.Sprint(m.song.Year)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderState())
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.ratio()))
	b.WriteString(fmt.Sprintf("  %s / %s",
		metadata.FormatDuration(m.status.CurrentTime), metadata.FormatDuration(m.status.Duration)))

	if m.err != nil {
		b.WriteString("\n\n" + styles.err.Render(m.err.Error()))
	}

	helpKeys := []key.Binding{m.keys.toggle, m.keys.stop, m.keys.backward, m.keys.forward}
	if m.embedded {
		helpKeys = append(helpKeys, m.keys.back)
	} else {
		helpKeys = append(helpKeys, m.keys.quit)
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *PlayerModel) renderState() string {
	switch m.status.State {
	case player.StatePlaying:
		return styles.ok.Render("▶ playing")
	case player.StatePaused:
		return styles.warn.Render("⏸ paused")
	case player.StateLoading:
		return styles.help.Render("loading...")
	case player.StateError:
		return styles.err.Render("✗ error")
	default:
		return styles.help.Render("■ " + m.status.State.String())
	}
}

func (m *PlayerModel) ratio() float64 {
	if m.status.Duration <= 0 {
		return 0
	}
	r := float64(m.status.CurrentTime) / float64(m.status.Duration)
	return min(1, max(0, r))
}
