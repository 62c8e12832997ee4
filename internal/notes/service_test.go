package notes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vlad-lazar/sokrati/internal/models"
	"github.com/vlad-lazar/sokrati/internal/sentiment"
	"github.com/vlad-lazar/sokrati/internal/storage"
	"go.uber.org/zap"
)

// scriptedAnalyzer returns a fixed reading and records what it was asked.
type scriptedAnalyzer struct {
	mu     sync.Mutex
	result sentiment.Result
	ok     bool
	delay  time.Duration
	calls  []string
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, text string) (sentiment.Result, bool) {
	a.mu.Lock()
	a.calls = append(a.calls, text)
	a.mu.Unlock()
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return sentiment.Result{}, false
		}
	}
	return a.result, a.ok
}

func (a *scriptedAnalyzer) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore fails every call with a connection error.
type failingStore struct{ storage.MemoryStorage }

var errDown = errors.New("connection refused")

func (*failingStore) CreateNote(context.Context, *models.Note) error { return errDown }
func (*failingStore) GetNote(context.Context, string) (*models.Note, error) {
	return nil, errDown
}
func (*failingStore) ListNotes(context.Context, storage.NoteQuery) ([]*models.Note, error) {
	return nil, errDown
}

type fixture struct {
	svc      *Service
	store    *storage.MemoryStorage
	analyzer *scriptedAnalyzer
	clock    *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    storage.NewMemoryStorage(),
		analyzer: &scriptedAnalyzer{result: sentiment.Result{Score: 0.8, Magnitude: 1.6}, ok: true},
		clock:    &clock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc = NewService(f.store, f.analyzer, zap.NewNop(), opts...)
	return f
}

func (f *fixture) create(t *testing.T, owner, text string) *models.Note {
	t.Helper()
	note, err := f.svc.CreateNote(context.Background(), owner, models.CreateNoteInput{Text: text})
	require.NoError(t, err)
	return note
}

var image = models.Attachment{URL: "x", Name: "a.png", MimeType: "image/png"}

func TestCreateNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.svc.CreateNote(ctx, "u1", models.CreateNoteInput{Text: "  I love this app so much today  "})
	require.NoError(t, err)

	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "u1", note.OwnerID)
	assert.Equal(t, "I love this app so much today", note.Text)
	assert.False(t, note.IsFavourite)
	assert.Equal(t, f.clock.Now(), note.CreatedAt)
	assert.Nil(t, note.UpdatedAt)
	assert.Equal(t, int64(1), note.Version)
	require.NotNil(t, note.Sentiment)
	assert.InDelta(t, 0.8, note.Sentiment.Score, 1e-9)
	assert.GreaterOrEqual(t, note.Sentiment.Magnitude, 0.0)

	// The analyzer sees the text exactly as submitted.
	assert.Equal(t, []string{"  I love this app so much today  "}, f.analyzer.Calls())

	stored, err := f.store.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note, stored)
}

func TestCreateNoteAttachmentOnly(t *testing.T) {
	f := newFixture(t)

	note, err := f.svc.CreateNote(context.Background(), "u1", models.CreateNoteInput{
		Text:        "",
		Attachments: []models.Attachment{image},
	})
	require.NoError(t, err)
	assert.Equal(t, "", note.Text)
	assert.Equal(t, []models.Attachment{image}, note.Attachments)
	assert.Nil(t, note.Sentiment)
	assert.Empty(t, f.analyzer.Calls())
}

func TestCreateNoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateNote(ctx, "u1", models.CreateNoteInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateNote(ctx, "u1", models.CreateNoteInput{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Identity is checked before the body.
	_, err = f.svc.CreateNote(ctx, "", models.CreateNoteInput{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	list, err := f.store.ListNotes(ctx, storage.NoteQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateNoteShortTextSkipsAnalysis(t *testing.T) {
	f := newFixture(t)

	note := f.create(t, "u1", "  tiny   ")
	assert.Nil(t, note.Sentiment)
	assert.Empty(t, f.analyzer.Calls())

	note = f.create(t, "u1", "ten chars!")
	assert.NotNil(t, note.Sentiment)
}

func TestCreateNoteSurvivesEnrichmentFailure(t *testing.T) {
	f := newFixture(t)
	f.analyzer.ok = false

	note := f.create(t, "u1", "A long enough sentence to analyse")
	assert.Nil(t, note.Sentiment)
	assert.NotEmpty(t, note.ID)
}

func TestCreateNoteEnrichmentTimeout(t *testing.T) {
	f := newFixture(t, WithAnalysisTimeout(20*time.Millisecond))
	f.analyzer.delay = time.Second

	start := time.Now()
	note := f.create(t, "u1", "A long enough sentence to analyse")
	assert.Nil(t, note.Sentiment)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCreateNoteStoreFailure(t *testing.T) {
	svc := NewService(&failingStore{}, sentiment.Nop{}, zap.NewNop())

	_, err := svc.CreateNote(context.Background(), "u1", models.CreateNoteInput{Text: "hello there"})
	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, KindDependency, KindOf(err))
}

func TestUpdateNoteText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.create(t, "u1", "A pleasant start to the week")

	f.clock.Advance(time.Hour)
	f.analyzer.result = sentiment.Result{Score: -0.6, Magnitude: 0.9}
	text := "Actually it turned into a rough week"
	updated, err := f.svc.UpdateNote(ctx, "u1", note.ID, models.UpdateNoteInput{Text: &text})
	require.NoError(t, err)

	assert.Equal(t, text, updated.Text)
	require.NotNil(t, updated.Sentiment)
	assert.InDelta(t, -0.6, updated.Sentiment.Score, 1e-9)
	assert.InDelta(t, 0.9, updated.Sentiment.Magnitude, 1e-9)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, f.clock.Now(), *updated.UpdatedAt)
	assert.Equal(t, note.CreatedAt, updated.CreatedAt)
	assert.Equal(t, note.ID, updated.ID)
	assert.Equal(t, int64(2), updated.Version)

	stored, err := f.store.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpdateNoteShortTextClearsSentiment(t *testing.T) {
	f := newFixture(t)
	note := f.create(t, "u1", "A pleasant start to the week")
	require.NotNil(t, note.Sentiment)

	short := "meh"
	updated, err := f.svc.UpdateNote(context.Background(), "u1", note.ID, models.UpdateNoteInput{Text: &short})
	require.NoError(t, err)
	assert.Nil(t, updated.Sentiment)
}

func TestUpdateNoteNoOpinionClearsSentiment(t *testing.T) {
	f := newFixture(t)
	note := f.create(t, "u1", "A pleasant start to the week")

	f.analyzer.ok = false
	text := "Something else entirely now"
	updated, err := f.svc.UpdateNote(context.Background(), "u1", note.ID, models.UpdateNoteInput{Text: &text})
	require.NoError(t, err)
	assert.Nil(t, updated.Sentiment)
}

func TestUpdateNoteFavouriteKeepsSentiment(t *testing.T) {
	f := newFixture(t)
	note := f.create(t, "u1", "A pleasant start to the week")
	calls := len(f.analyzer.Calls())

	fav := true
	updated, err := f.svc.UpdateNote(context.Background(), "u1", note.ID, models.UpdateNoteInput{IsFavourite: &fav})
	require.NoError(t, err)
	assert.True(t, updated.IsFavourite)
	assert.Equal(t, note.Sentiment, updated.Sentiment)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Len(t, f.analyzer.Calls(), calls)
}

func TestUpdateNoteWithoutFieldsWritesNothing(t *testing.T) {
	f := newFixture(t)
	note := f.create(t, "u1", "A pleasant start to the week")

	f.clock.Advance(time.Hour)
	got, err := f.svc.UpdateNote(context.Background(), "u1", note.ID, models.UpdateNoteInput{})
	require.NoError(t, err)
	assert.Equal(t, note, got)
	assert.Nil(t, got.UpdatedAt)
}

func TestUpdateNoteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.create(t, "u1", "A pleasant start to the week")
	before, err := f.store.GetNote(ctx, note.ID)
	require.NoError(t, err)

	blank := "   "
	text := "An intruder trying to rewrite this"
	fav := true

	_, err = f.svc.UpdateNote(ctx, "u1", note.ID, models.UpdateNoteInput{Text: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UpdateNote(ctx, "", note.ID, models.UpdateNoteInput{Text: &text})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.UpdateNote(ctx, "u2", note.ID, models.UpdateNoteInput{Text: &text, IsFavourite: &fav})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateNote(ctx, "u1", "missing", models.UpdateNoteInput{Text: &text})
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := f.store.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.create(t, "u1", "A note to throw away")

	err := f.svc.DeleteNote(ctx, "u2", note.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.DeleteNote(ctx, "u1", note.ID))
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, "u1", note.ID), ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, "u1", "never-existed"), ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, "", note.ID), ErrUnauthenticated)
}

func TestListNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n1 := f.create(t, "u1", "first note of the day")
	f.clock.Advance(time.Minute)
	n2 := f.create(t, "u1", "second note of the day")
	f.clock.Advance(time.Minute)
	n3 := f.create(t, "u1", "third note of the day")
	f.create(t, "u2", "someone else entirely")

	fav := true
	_, err := f.svc.UpdateNote(ctx, "u1", n2.ID, models.UpdateNoteInput{IsFavourite: &fav})
	require.NoError(t, err)

	list, err := f.svc.ListNotes(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{n3.ID, n2.ID, n1.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	favs, err := f.svc.ListNotes(ctx, "u1", ListFilter{FavouritesOnly: true})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, n2.ID, favs[0].ID)

	// Asking for another owner still yields only the caller's notes.
	spoofed, err := f.svc.ListNotes(ctx, "u1", ListFilter{OwnerID: "u2"})
	require.NoError(t, err)
	for _, n := range spoofed {
		assert.Equal(t, "u1", n.OwnerID)
	}

	_, err = f.svc.ListNotes(ctx, "", ListFilter{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.create(t, "u1", "A note worth reading")

	got, err := f.svc.GetNote(ctx, "u1", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note, got)

	_, err = f.svc.GetNote(ctx, "u2", note.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetNote(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoadFailureIsDependencyError(t *testing.T) {
	svc := NewService(&failingStore{}, sentiment.Nop{}, zap.NewNop())
	ctx := context.Background()

	err := svc.DeleteNote(ctx, "u1", "n1")
	assert.Equal(t, KindDependency, KindOf(err))

	_, err = svc.ListNotes(ctx, "u1", ListFilter{})
	assert.Equal(t, KindDependency, KindOf(err))
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindForbidden, "nope", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "forbidden: nope", err.Error())
	assert.Equal(t, "unauthenticated", ErrUnauthenticated.Error())
	assert.Equal(t, KindDependency, KindOf(errors.New("plain")))
}

func TestCreateNoteCapsAnalyzerInput(t *testing.T) {
	f := newFixture(t)
	text := "   " + strings.Repeat("a", models.MaxTextLength) + "   "

	note := f.create(t, "u1", text)
	assert.Equal(t, models.MaxTextLength, models.TextLength(note.Text))

	calls := f.analyzer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.MaxTextLength, models.TextLength(calls[0]))
}

func TestAnalyzeText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.AnalyzeText(ctx, "u1", "ok")
	require.NoError(t, err)
	assert.Equal(t, &models.Sentiment{Score: 0.8, Magnitude: 1.6}, got)

	_, err = f.svc.AnalyzeText(ctx, "u1", strings.Repeat("b", 700))
	require.NoError(t, err)
	calls := f.analyzer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "ok", calls[0])
	assert.Len(t, calls[1], models.MaxTextLength)

	_, err = f.svc.AnalyzeText(ctx, "u1", "  \n ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.AnalyzeText(ctx, "", "hello there")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.analyzer.ok = false
	_, err = f.svc.AnalyzeText(ctx, "u1", "hello there")
	assert.ErrorIs(t, err, ErrDependency)

	stored, err := f.store.ListNotes(ctx, storage.NoteQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, stored)
}
