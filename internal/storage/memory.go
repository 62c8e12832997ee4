package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vlad-lazar/sokrati/internal/models"
)

type MemoryStorage struct {
	mu    sync.RWMutex
	notes map[string]*models.Note
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notes: make(map[string]*models.Note),
	}
}

func (s *MemoryStorage) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note.ID = uuid.New().String()
	s.notes[note.ID] = note.Clone()
	return nil
}

func (s *MemoryStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, exists := s.notes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return note.Clone(), nil
}

func (s *MemoryStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[note.ID]; !exists {
		return ErrNotFound
	}
	s.notes[note.ID] = note.Clone()
	return nil
}

func (s *MemoryStorage) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[id]; !exists {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStorage) ListNotes(ctx context.Context, q NoteQuery) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]*models.Note, 0)
	for _, note := range s.notes {
		if q.matches(note) {
			notes = append(notes, note.Clone())
		}
	}
	sortNotes(notes, q.Ascending)
	return notes, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
