package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/player"
	th "github.com/desertthunder/cardquiz/internal/testing"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestPlayer(t *testing.T) (*PlayerModel, *player.FakeOpener) {
	t.Helper()
	opener := &player.FakeOpener{Duration: 3 * time.Minute}
	p := player.New(opener)
	song := &models.Song{ID: "s1", Title: "Hey Ya", Artist: "Outkast", Year: 2003, Audio: "hey.mp3"}
	m := NewPlayerModel(context.Background(), p, song, "fake://hey.mp3")
	m.Init()
	t.Cleanup(m.Close)
	return m, opener
}

func TestPlayerModel(t *testing.T) {
	t.Run("load starts playback", func(t *testing.T) {
		m, opener := newTestPlayer(t)
		m.Update(m.load()())
		if m.err != nil {
			t.Fatalf("unexpected error: %v", m.err)
		}
		if opener.Last() == nil || !opener.Last().Playing() {
			t.Fatal("expected the media to be playing")
		}

		msg := m.waitForStatus()()
		m.Update(msg)
		if m.status.State != player.StatePlaying {
			t.Errorf("expected playing, got %v", m.status.State)
		}
		if !strings.Contains(m.View(), "playing") {
			t.Error("expected the view to show the playing state")
		}
	})

	t.Run("transport keys", func(t *testing.T) {
		m, _ := newTestPlayer(t)
		m.Update(m.load()())

		m.Update(runes(" "))
		if m.status.State != player.StatePaused {
			t.Errorf("space should pause, got %v", m.status.State)
		}
		m.Update(runes(" "))
		if m.status.State != player.StatePlaying {
			t.Errorf("space should resume, got %v", m.status.State)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyRight})
		if m.status.CurrentTime != 10*time.Second {
			t.Errorf("right should skip ahead 10s, got %v", m.status.CurrentTime)
		}
		m.Update(tea.KeyMsg{Type: tea.KeyLeft})
		m.Update(tea.KeyMsg{Type: tea.KeyLeft})
		if m.status.CurrentTime != 0 {
			t.Errorf("left should clamp at the start, got %v", m.status.CurrentTime)
		}

		m.Update(runes("s"))
		if m.status.State != player.StateStopped {
			t.Errorf("s should stop, got %v", m.status.State)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m, _ := newTestPlayer(t)
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected a quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if msg := m.waitForStatus()(); msg != nil {
			t.Errorf("expected no status after close, got %v", msg)
		}
	})

	t.Run("load failure is shown", func(t *testing.T) {
		opener := &player.FakeOpener{OpenErr: context.DeadlineExceeded}
		m := NewPlayerModel(context.Background(), player.New(opener), &models.Song{Title: "X"}, "fake://x")
		m.Init()
		defer m.Close()

		m.Update(m.load()())
		if m.err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(m.View(), "deadline") {
			t.Error("expected the view to show the error")
		}
	})

	t.Run("publish keeps the newest status", func(t *testing.T) {
		m, _ := newTestPlayer(t)
		m.publish(player.Status{State: player.StateLoading})
		m.publish(player.Status{State: player.StatePaused})
		got := m.waitForStatus()().(Msg)
		if got.data.(player.Status).State != player.StatePaused {
			t.Errorf("expected the newest status, got %v", got.data)
		}
	})
}

func TestBrowserModel(t *testing.T) {
	gw := th.NewGateway(t)
	playable := th.MustSong(t, gw, "Crazy", 2006, models.File{Field: "audio", Name: "crazy.mp3", Reader: strings.NewReader("ID3")})
	silent := th.MustSong(t, gw, "Silent", 1999)
	c1 := th.MustCard(t, gw, playable.ID)
	c2 := th.MustCard(t, gw, silent.ID)
	deck := th.MustDeck(t, gw, "Party", c1.ID, c2.ID)

	opener := &player.FakeOpener{Duration: time.Minute}
	var played string
	source := func(s *models.Song) string {
		played = s.ID
		return "fake://" + s.Audio
	}

	m := NewBrowserModel(context.Background(), decks.NewComposer(gw, nil), deck.ID, player.New(opener), source)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m.Update(m.Init()())

	if m.view != CardListView {
		t.Fatalf("expected the card list, got view %d (err %v)", m.view, m.err)
	}
	if n := len(m.cardList.Items()); n != 2 {
		t.Fatalf("expected 2 cards, got %d", n)
	}
	if !strings.Contains(m.View(), "Crazy") {
		t.Error("expected the first card in the view")
	}

	t.Run("card without audio", func(t *testing.T) {
		m.cardList.Select(1)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != CardListView || m.err == nil {
			t.Errorf("expected to stay on the list with an error, got view %d", m.view)
		}
	})

	t.Run("play and return", func(t *testing.T) {
		m.cardList.Select(0)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != PlayerView || m.active == nil {
			t.Fatalf("expected the player view, got %d", m.view)
		}
		if played != playable.ID {
			t.Errorf("expected %s to be played, got %q", playable.ID, played)
		}

		m.Update(m.active.load()())
		if opener.Last() == nil || !opener.Last().Playing() {
			t.Fatal("expected playback to start")
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != CardListView || m.active != nil {
			t.Errorf("esc should return to the list, got view %d", m.view)
		}
		if opener.Last().Playing() {
			t.Error("leaving the player should stop playback")
		}
	})
}
