package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// SongRepository implements [models.Collection] for songs with soft delete and attached audio files.
type SongRepository struct {
	db    querier
	files *FileStore
}

// NewSongRepository creates a SongRepository. files may be nil when uploads are not needed.
func NewSongRepository(db querier, files *FileStore) *SongRepository {
	return &SongRepository{db: db, files: files}
}

const songColumns = "id, title, artist, album, year, audio, created_at, updated_at"

var songSortColumns = withColumns(map[string]string{"title": "title", "artist": "artist", "year": "year"})

// List returns a page of songs matching Filter against title, artist and album.
func (r *SongRepository) List(ctx context.Context, opts models.ListOptions) (*models.Page[models.Song], error) {
	opts = opts.Normalize()

	where := "deleted_at IS NULL"
	var args []any
	if opts.Filter != "" {
		where += ` AND (title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\')`
		p := likePattern(opts.Filter)
		args = append(args, p, p, p)
	}

	total, err := countRows(ctx, r.db, "SELECT COUNT(*) FROM songs WHERE "+where, args...)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM songs WHERE %s ORDER BY %s LIMIT ? OFFSET ?", songColumns, where, orderBy(opts.Sort, songSortColumns))
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate songs: %w", err)
	}
	return models.NewPage(opts, total, songs), nil
}

// Get retrieves a song by id, excluding soft-deleted songs.
func (r *SongRepository) Get(ctx context.Context, id string) (*models.Song, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE id = ? AND deleted_at IS NULL", id)
	s, err := r.scanRow(row)
	if err != nil {
		return nil, notFound(err, "song", id)
	}
	return s, nil
}

// Create inserts a song with a generated id and sequence; an "audio" file is stored alongside.
func (r *SongRepository) Create(ctx context.Context, song *models.Song, files ...models.File) error {
	if err := song.Validate(); err != nil {
		return err
	}

	id := shared.GenerateID()
	now := time.Now().UTC()

	audio, err := r.saveAudio(id, files)
	if err != nil {
		return err
	}

	err = inTx(ctx, r.db, func(q querier) error {
		sequence, err := NextSequence(ctx, q, "songs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO songs (id, sequence, title, artist, album, year, audio, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sequence, song.Title, song.Artist, song.Album, song.Year, coalesce(audio, song.Audio), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert song: %w", err)
		}
		return nil
	})
	if err != nil {
		if audio != "" {
			r.files.Remove(models.CollectionSongs, id, audio)
		}
		return err
	}

	song.ID = id
	song.Audio = coalesce(audio, song.Audio)
	song.CreatedAt = models.Timestamp{Time: now}
	song.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

// Update modifies a song; a new "audio" file replaces the stored one.
func (r *SongRepository) Update(ctx context.Context, song *models.Song, files ...models.File) error {
	if err := song.Validate(); err != nil {
		return err
	}

	current, err := r.Get(ctx, song.ID)
	if err != nil {
		return err
	}

	audio, err := r.saveAudio(song.ID, files)
	if err != nil {
		return err
	}
	if audio == "" {
		audio = song.Audio
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE songs
		SET title = ?, artist = ?, album = ?, year = ?, audio = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		song.Title, song.Artist, song.Album, song.Year, audio, now, song.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}
	if err := mustAffect(result, "song", song.ID); err != nil {
		return err
	}

	if current.Audio != "" && current.Audio != audio && r.files != nil {
		r.files.Remove(models.CollectionSongs, song.ID, current.Audio)
	}
	song.Audio = audio
	song.CreatedAt = current.CreatedAt
	song.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

// Delete soft-deletes a song by id.
func (r *SongRepository) Delete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, "UPDATE songs SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	return mustAffect(result, "song", id)
}

func (r *SongRepository) saveAudio(id string, files []models.File) (string, error) {
	for _, f := range files {
		if f.Field != "audio" {
			continue
		}
		if r.files == nil {
			return "", fmt.Errorf("%w: file storage is not configured", shared.ErrInvalidArgument)
		}
		return r.files.Save(models.CollectionSongs, id, f)
	}
	return "", nil
}

func (r *SongRepository) scanRow(row scanner) (*models.Song, error) {
	var (
		s                models.Song
		created, updated time.Time
	)
	if err := row.Scan(&s.ID, &s.Title, &s.Artist, &s.Album, &s.Year, &s.Audio, &created, &updated); err != nil {
		return nil, err
	}
	s.CreatedAt = models.Timestamp{Time: created}
	s.UpdatedAt = models.Timestamp{Time: updated}
	return &s, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
