// Package repositories implements the local SQLite backend for songs, decks, cards and users.
//
// [Local] bundles the repositories into a gateway usable in place of the hosted backend: offline
// editing, development, and tests. Each repository implements [models.Collection] with soft
// deletes via deleted_at timestamps, excluding deleted records from queries by default.
//
// Key Implementations:
//   - [SongRepository] : songs with their audio files kept by a [FileStore]
//   - [DeckRepository] : decks whose card order is written through the version-checked [DeckRepository.SetCards]
//   - [CardRepository] : cards, rejecting references to missing songs
//   - [UserRepository] : admin accounts with bcrypt password hashes
//   - [LocalAuth] : HS256 session tokens for local users
//
// Sequence numbers give stable newest-first ordering independent of UUIDs and timestamp resolution.
// [NextSequence] increments per-table counters on the caller's transaction.
package repositories
