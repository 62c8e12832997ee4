package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vlad-lazar/sokrati/internal/models"
	"github.com/vlad-lazar/sokrati/internal/sentiment"
	"github.com/vlad-lazar/sokrati/internal/storage"
	"go.uber.org/zap"
)

const DefaultAnalysisTimeout = 5 * time.Second

// Service owns the note lifecycle: validation, ownership checks, sentiment
// enrichment and persistence. It keeps no per-request state.
type Service struct {
	store           storage.Storage
	analyzer        sentiment.Analyzer
	logger          *zap.Logger
	now             func() time.Time
	analysisTimeout time.Duration
	location        *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.analysisTimeout = d
		}
	}
}

// WithLocation sets the time zone used for calendar buckets.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(store storage.Storage, analyzer sentiment.Analyzer, logger *zap.Logger, opts ...Option) *Service {
	if analyzer == nil {
		analyzer = sentiment.Nop{}
	}
	s := &Service{
		store:           store,
		analyzer:        analyzer,
		logger:          logger,
		now:             time.Now,
		analysisTimeout: DefaultAnalysisTimeout,
		location:        time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListFilter narrows ListNotes. OwnerID is advisory: only the caller's own
// notes are ever returned.
type ListFilter struct {
	OwnerID        string
	FavouritesOnly bool
}

func (s *Service) CreateNote(ctx context.Context, callerID string, in models.CreateNoteInput) (*models.Note, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, newError(KindInvalidInput, err.Error(), nil)
	}

	note := &models.Note{
		OwnerID:     callerID,
		Text:        strings.TrimSpace(in.Text),
		Attachments: in.Attachments,
		Version:     1,
		CreatedAt:   s.now().UTC(),
	}
	if note.Attachments == nil {
		note.Attachments = []models.Attachment{}
	}
	note.Sentiment = s.enrich(ctx, in.Text)

	if err := s.store.CreateNote(ctx, note); err != nil {
		s.logger.Error("Failed to save note",
			zap.Error(err),
			zap.String("owner_id", callerID))
		return nil, newError(KindDependency, "failed to save note", err)
	}

	s.logger.Info("Note created",
		zap.String("note_id", note.ID),
		zap.String("owner_id", callerID),
		zap.Bool("has_sentiment", note.HasSentiment()))
	return note, nil
}

func (s *Service) GetNote(ctx context.Context, callerID, noteID string) (*models.Note, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	return s.loadOwned(ctx, callerID, noteID)
}

func (s *Service) UpdateNote(ctx context.Context, callerID, noteID string, in models.UpdateNoteInput) (*models.Note, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, newError(KindInvalidInput, err.Error(), nil)
	}

	note, err := s.loadOwned(ctx, callerID, noteID)
	if err != nil {
		return nil, err
	}

	if in.Empty() {
		s.logger.Warn("Update without fields, nothing written", zap.String("note_id", noteID))
		return note, nil
	}

	if in.Text != nil {
		note.Text = strings.TrimSpace(*in.Text)
		note.Sentiment = s.enrich(ctx, *in.Text)
	}
	if in.IsFavourite != nil {
		note.IsFavourite = *in.IsFavourite
	}
	updatedAt := s.now().UTC()
	note.UpdatedAt = &updatedAt
	note.Version++

	if err := s.store.UpdateNote(ctx, note); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "note not found", nil)
		}
		s.logger.Error("Failed to update note",
			zap.Error(err),
			zap.String("note_id", noteID))
		return nil, newError(KindDependency, "failed to update note", err)
	}

	s.logger.Info("Note updated",
		zap.String("note_id", noteID),
		zap.String("owner_id", callerID),
		zap.Int64("version", note.Version))
	return note, nil
}

func (s *Service) DeleteNote(ctx context.Context, callerID, noteID string) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	if _, err := s.loadOwned(ctx, callerID, noteID); err != nil {
		return err
	}

	if err := s.store.DeleteNote(ctx, noteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newError(KindNotFound, "note not found", nil)
		}
		s.logger.Error("Failed to delete note",
			zap.Error(err),
			zap.String("note_id", noteID))
		return newError(KindDependency, "failed to delete note", err)
	}

	s.logger.Info("Note deleted",
		zap.String("note_id", noteID),
		zap.String("owner_id", callerID))
	return nil
}

func (s *Service) ListNotes(ctx context.Context, callerID string, filter ListFilter) ([]*models.Note, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if filter.OwnerID != "" && filter.OwnerID != callerID {
		s.logger.Warn("Ignoring request for another user's notes",
			zap.String("caller_id", callerID),
			zap.String("requested_owner_id", filter.OwnerID))
	}

	notes, err := s.store.ListNotes(ctx, storage.NoteQuery{
		OwnerID:        callerID,
		FavouritesOnly: filter.FavouritesOnly,
	})
	if err != nil {
		s.logger.Error("Failed to list notes",
			zap.Error(err),
			zap.String("owner_id", callerID))
		return nil, newError(KindDependency, "failed to fetch notes", err)
	}
	return notes, nil
}

func (s *Service) loadOwned(ctx context.Context, callerID, noteID string) (*models.Note, error) {
	if strings.TrimSpace(noteID) == "" {
		return nil, newError(KindInvalidInput, "missing note id", nil)
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "note not found", nil)
		}
		s.logger.Error("Failed to load note",
			zap.Error(err),
			zap.String("note_id", noteID))
		return nil, newError(KindDependency, "failed to load note", err)
	}
	if note.OwnerID != callerID {
		s.logger.Warn("Caller does not own note",
			zap.String("caller_id", callerID),
			zap.String("note_id", noteID))
		return nil, newError(KindForbidden, "you do not have permission to access this note", nil)
	}
	return note, nil
}

// AnalyzeText scores text without storing anything. Input beyond
// MaxTextLength is cut off before it reaches the analyzer.
func (s *Service) AnalyzeText(ctx context.Context, callerID, text string) (*models.Sentiment, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindInvalidInput, "text must be a non-empty string", nil)
	}

	result := s.analyze(ctx, text)
	if result == nil {
		return nil, newError(KindDependency, "failed to analyze sentiment", nil)
	}
	return result, nil
}

// enrich returns nil unless the trimmed text is long enough and the analyzer
// answers within the timeout. The untrimmed text is what gets analyzed.
func (s *Service) enrich(ctx context.Context, text string) *models.Sentiment {
	if models.TextLength(strings.TrimSpace(text)) < models.MinAnalysisLength {
		return nil
	}
	return s.analyze(ctx, text)
}

func (s *Service) analyze(ctx context.Context, text string) *models.Sentiment {
	text = models.Truncate(text, models.MaxTextLength)

	ctx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()

	type reading struct {
		result sentiment.Result
		ok     bool
	}
	done := make(chan reading, 1)
	go func() {
		result, ok := s.analyzer.Analyze(ctx, text)
		done <- reading{result, ok}
	}()

	select {
	case r := <-done:
		if !r.ok {
			s.logger.Warn("No sentiment for note text", zap.Int("length", len(text)))
			return nil
		}
		return &models.Sentiment{Score: r.result.Score, Magnitude: r.result.Magnitude}
	case <-ctx.Done():
		s.logger.Warn("Sentiment analysis timed out",
			zap.Duration("timeout", s.analysisTimeout),
			zap.Error(ctx.Err()))
		return nil
	}
}
