package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/player"
)

// AudioSource maps a song to the URL or path its audio is played from.
type AudioSource func(song *models.Song) string

// ViewState represents the current view in the browser.
type ViewState int

const (
	LoadingView ViewState = iota
	CardListView
	PlayerView
)

// BrowserModel lists the cards of one deck in order and plays the selected card's song.
type BrowserModel struct {
	ctx      context.Context
	view     ViewState
	composer *decks.Composer
	deckID   string
	player   *player.Player
	source   AudioSource
	deck     *models.Deck
	cardList list.Model
	active   *PlayerModel
	width    int
	height   int
	err      error
	help     help.Model
	keys     keyMap
}

// NewBrowserModel creates a browser for deckID. Songs are played on p.
func NewBrowserModel(ctx context.Context, composer *decks.Composer, deckID string, p *player.Player, source AudioSource) *BrowserModel {
	return &BrowserModel{
		ctx:      ctx,
		view:     LoadingView,
		composer: composer,
		deckID:   deckID,
		player:   p,
		source:   source,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init fetches the deck's cards.
func (m *BrowserModel) Init() tea.Cmd {
	return m.fetchCards()
}

// Update handles incoming messages and updates the model state.
func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view != LoadingView {
			m.cardList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.active != nil {
			m.active.Update(msg)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CardListView:
			return m.handleListKeys(msg)
		case PlayerView:
			return m.handlePlayerKeys(msg)
		default:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		}
		return m, nil

	case Msg:
		switch msg.kind {
		case MsgCardsFetched:
			return m.cardsFetched(msg.data.(cardsFetched))
		case MsgSongLoaded, MsgStatusChanged:
			if m.active == nil {
				return m, nil
			}
			_, cmd := m.active.Update(msg)
			return m, cmd
		}
	}

	if m.view == CardListView {
		var cmd tea.Cmd
		m.cardList, cmd = m.cardList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *BrowserModel) cardsFetched(data cardsFetched) (tea.Model, tea.Cmd) {
	if data.err != nil {
		m.err = data.err
		return m, nil
	}
	m.deck = data.deck
	items := make([]list.Item, len(data.cards))
	for i, c := range data.cards {
		items[i] = cardItem{pos: i + 1, card: c}
	}
	m.cardList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.cardList.Title = fmt.Sprintf("%s (%d cards)", data.deck.Name, len(data.cards))
	m.cardList.SetSize(m.width-4, m.height-8)
	m.view = CardListView
	return m, nil
}

func (m *BrowserModel) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.cardList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.cardList, cmd = m.cardList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		item, ok := m.cardList.SelectedItem().(cardItem)
		if !ok {
			return m, nil
		}
		if !item.playable() {
			m.err = fmt.Errorf("card %d has no playable song", item.pos)
			return m, nil
		}
		m.err = nil
		m.active = NewPlayerModel(m.ctx, m.player, item.card.Song, m.source(item.card.Song))
		m.active.embedded = true
		m.view = PlayerView
		return m, m.active.Init()
	}

	var cmd tea.Cmd
	m.cardList, cmd = m.cardList.Update(msg)
	return m, cmd
}

func (m *BrowserModel) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.closePlayer()
		m.view = CardListView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		m.closePlayer()
		return m, tea.Quit
	}
	_, cmd := m.active.Update(msg)
	return m, cmd
}

func (m *BrowserModel) closePlayer() {
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}

func (m *BrowserModel) fetchCards() tea.Cmd {
	return func() tea.Msg {
		deck, cards, err := m.composer.Cards(m.ctx, m.deckID)
		return cardsFetchedMsg(deck, cards, err)
	}
}

// View renders the UI based on the current view state.
func (m *BrowserModel) View() string {
	if m.err != nil && m.view == LoadingView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LoadingView:
		return styles.help.Render("Loading deck...")
	case CardListView:
		view := m.cardList.View()
		if m.err != nil {
			view += "\n" + styles.warn.Render(m.err.Error())
		}
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", view, helpView)
	case PlayerView:
		return m.active.View()
	default:
		return ""
	}
}
