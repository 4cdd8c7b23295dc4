// Package ui implements the terminal player and deck browser using bubbletea's Elm architecture.
//
// Two models are provided:
//  1. [PlayerModel] : plays one song with a progress bar and transport keys
//  2. [BrowserModel] : lists a deck's cards and opens the player on the selected card's song
//
// Both implement bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Player status flows from [player.Player.OnChange] through a one-slot channel that always holds the latest
// snapshot, so rendering never blocks playback.
//
// Keys: space play/pause, s stop, ←/→ skip, enter select, esc back, q quit. Contextual help is displayed via
// charmbracelet/bubbles/help.
package ui
