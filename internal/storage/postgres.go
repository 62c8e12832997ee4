package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vlad-lazar/sokrati/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

const noteColumns = `id, owner_id, text, attachments, is_favourite, sentiment_score, sentiment_magnitude, version, created_at, updated_at`

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	return OpenPostgres(ctx, config.DSN(), logger)
}

// OpenPostgres connects using a libpq connection string or URL and applies
// the embedded schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL")
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", wrapPQ(err))
	}
	return nil
}

func (s *PostgresStorage) CreateNote(ctx context.Context, note *models.Note) error {
	attachments, err := encodeAttachments(note.Attachments)
	if err != nil {
		return err
	}
	score, magnitude := sentimentColumns(note.Sentiment)

	id := uuid.New()
	query := `
		INSERT INTO notes (id, owner_id, text, attachments, is_favourite, sentiment_score, sentiment_magnitude, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.ExecContext(ctx, query,
		id,
		note.OwnerID,
		note.Text,
		attachments,
		note.IsFavourite,
		score,
		magnitude,
		note.Version,
		note.CreatedAt,
		nullTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating note: %w", wrapPQ(err))
	}

	note.ID = id.String()
	return nil
}

func (s *PostgresStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting note: %w", wrapPQ(err))
	}
	return note, nil
}

func (s *PostgresStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	if _, err := uuid.Parse(note.ID); err != nil {
		return ErrNotFound
	}
	attachments, err := encodeAttachments(note.Attachments)
	if err != nil {
		return err
	}
	score, magnitude := sentimentColumns(note.Sentiment)

	query := `
		UPDATE notes
		SET text = $1, attachments = $2, is_favourite = $3, sentiment_score = $4,
		    sentiment_magnitude = $5, version = $6, updated_at = $7
		WHERE id = $8`

	result, err := s.db.ExecContext(ctx, query,
		note.Text,
		attachments,
		note.IsFavourite,
		score,
		magnitude,
		note.Version,
		nullTime(note.UpdatedAt),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating note: %w", wrapPQ(err))
	}
	return expectOneRow(result)
}

func (s *PostgresStorage) DeleteNote(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", wrapPQ(err))
	}
	return expectOneRow(result)
}

func (s *PostgresStorage) ListNotes(ctx context.Context, q NoteQuery) ([]*models.Note, error) {
	conds := []string{"owner_id = $1"}
	args := []any{q.OwnerID}
	if q.FavouritesOnly {
		conds = append(conds, "is_favourite")
	}
	if !q.CreatedFrom.IsZero() {
		args = append(args, q.CreatedFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !q.CreatedTo.IsZero() {
		args = append(args, q.CreatedTo)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM notes WHERE %s ORDER BY created_at %s, id %s`,
		noteColumns, strings.Join(conds, " AND "), order, order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", wrapPQ(err))
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", wrapPQ(err))
	}
	return notes, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		note        models.Note
		attachments []byte
		score       sql.NullFloat64
		magnitude   sql.NullFloat64
		updatedAt   sql.NullTime
	)
	err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Text,
		&attachments,
		&note.IsFavourite,
		&score,
		&magnitude,
		&note.Version,
		&note.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &note.Attachments); err != nil {
			return nil, fmt.Errorf("error decoding attachments: %w", err)
		}
	}
	if score.Valid && magnitude.Valid {
		note.Sentiment = &models.Sentiment{Score: score.Float64, Magnitude: magnitude.Float64}
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		note.UpdatedAt = &t
	}
	return &note, nil
}

func encodeAttachments(attachments []models.Attachment) ([]byte, error) {
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("error encoding attachments: %w", err)
	}
	return data, nil
}

func sentimentColumns(s *models.Sentiment) (sql.NullFloat64, sql.NullFloat64) {
	if s == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: s.Score, Valid: true}, sql.NullFloat64{Float64: s.Magnitude, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// wrapPQ adds the postgres condition name to driver errors.
func wrapPQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
