// Package models defines the records shared by every backend and the contracts used to persist them.
//
// Records:
//   - [Song] : a track with title/artist/album/year and an optional stored audio file
//   - [Deck] : a named, ordered list of card ids; the order is the print order
//   - [Card] : one quiz card of a [CardType] (song, ost, opening, ad) referencing a song
//   - [User] : an admin account
//
// [CardWithSong] is the denormalized view used for listing, printing and exporting deck cards.
// Its display helpers encode the title and year fallbacks shown on printed cards.
//
// [Collection] is the typed CRUD contract over one record kind, implemented by the hosted
// backend client and the local sqlite repositories alike. [ListOptions] and [Page] carry paging.
package models
