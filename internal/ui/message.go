package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/player"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSongLoaded MsgKind = iota
	MsgStatusChanged
	MsgCardsFetched
)

type cardsFetched struct {
	deck  *models.Deck
	cards []models.CardWithSong
	err   error
}

// songLoadedMsg is the constructor for [MsgSongLoaded]
func songLoadedMsg(err error) Msg {
	return Msg{kind: MsgSongLoaded, data: err}
}

// statusChangedMsg is the constructor for [MsgStatusChanged]
func statusChangedMsg(status player.Status) Msg {
	return Msg{kind: MsgStatusChanged, data: status}
}

// cardsFetchedMsg is the constructor for [MsgCardsFetched]
func cardsFetchedMsg(deck *models.Deck, cards []models.CardWithSong, err error) Msg {
	return Msg{kind: MsgCardsFetched, data: cardsFetched{deck, cards, err}}
}
