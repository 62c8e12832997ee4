package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/vlad-lazar/sokrati/internal/models"
	"go.uber.org/zap"
)

const (
	notePrefix  = "note:"
	ownerPrefix = "owner:"
)

// BadgerStorage keeps notes as JSON under note:<id> with an
// owner:<len>:<owner>:<id> index key per note. The length prefix keeps owner
// ids that contain ':' from sharing a scan prefix.
type BadgerStorage struct {
	kv     *badger.DB
	logger *zap.Logger
}

// NewBadgerStorage opens a store at path; an empty path keeps everything in memory.
func NewBadgerStorage(path string, logger *zap.Logger) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	kv, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	logger.Info("Opened badger storage", zap.String("path", path))
	return &BadgerStorage{kv: kv, logger: logger}, nil
}

func noteKey(id string) []byte {
	return []byte(notePrefix + id)
}

func ownerIndexPrefix(ownerID string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", ownerPrefix, len(ownerID), ownerID))
}

func ownerKey(ownerID, id string) []byte {
	return append(ownerIndexPrefix(ownerID), id...)
}

func (s *BadgerStorage) CreateNote(ctx context.Context, note *models.Note) error {
	note.ID = uuid.New().String()
	encoded, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	return s.kv.Update(func(txn *badger.Txn) error {
		if err := txn.Set(noteKey(note.ID), encoded); err != nil {
			return err
		}
		return txn.Set(ownerKey(note.OwnerID, note.ID), nil)
	})
}

func (s *BadgerStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note *models.Note
	err := s.kv.View(func(txn *badger.Txn) error {
		var err error
		note, err = getNote(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *BadgerStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	encoded, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	return s.kv.Update(func(txn *badger.Txn) error {
		if _, err := getNote(txn, note.ID); err != nil {
			return err
		}
		return txn.Set(noteKey(note.ID), encoded)
	})
}

func (s *BadgerStorage) DeleteNote(ctx context.Context, id string) error {
	return s.kv.Update(func(txn *badger.Txn) error {
		note, err := getNote(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(ownerKey(note.OwnerID, id)); err != nil {
			return err
		}
		return txn.Delete(noteKey(id))
	})
}

func (s *BadgerStorage) ListNotes(ctx context.Context, q NoteQuery) ([]*models.Note, error) {
	notes := make([]*models.Note, 0)
	prefix := ownerIndexPrefix(q.OwnerID)

	err := s.kv.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(it.Item().Key()[len(prefix):])
			note, err := getNote(txn, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					s.logger.Warn("Dangling owner index entry", zap.String("note_id", id))
					continue
				}
				return err
			}
			if q.matches(note) {
				notes = append(notes, note)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNotes(notes, q.Ascending)
	return notes, nil
}

func (s *BadgerStorage) Close() error {
	return s.kv.Close()
}

func getNote(txn *badger.Txn, id string) (*models.Note, error) {
	item, err := txn.Get(noteKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var note models.Note
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &note)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal note: %w", err)
	}
	return &note, nil
}
