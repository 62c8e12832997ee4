package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vlad-lazar/sokrati/internal/models"
)

var ErrNotFound = errors.New("note not found")

// NoteQuery selects notes by owner, optionally by favourite flag and a
// creation-time window, ordered by creation time.
type NoteQuery struct {
	OwnerID        string
	FavouritesOnly bool
	// CreatedFrom and CreatedTo are inclusive bounds; zero values are open.
	CreatedFrom time.Time
	CreatedTo   time.Time
	Ascending   bool
}

type Storage interface {
	// CreateNote assigns note.ID and persists the note.
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	// UpdateNote replaces the stored document; ErrNotFound if it is gone.
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, q NoteQuery) ([]*models.Note, error)
	Close() error
}

func (q NoteQuery) matches(n *models.Note) bool {
	if n.OwnerID != q.OwnerID {
		return false
	}
	if q.FavouritesOnly && !n.IsFavourite {
		return false
	}
	if !q.CreatedFrom.IsZero() && n.CreatedAt.Before(q.CreatedFrom) {
		return false
	}
	if !q.CreatedTo.IsZero() && n.CreatedAt.After(q.CreatedTo) {
		return false
	}
	return true
}

func sortNotes(notes []*models.Note, ascending bool) {
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		// Ties break on id in the same direction, as the SQL store does.
		if a.CreatedAt.Equal(b.CreatedAt) {
			if ascending {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if ascending {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
