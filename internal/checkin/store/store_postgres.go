package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"esupervision/internal/checkin/models"
	offendermodels "esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
	txcontext "esupervision/pkg/platform/tx"
)

// PostgresStore persists check-ins in PostgreSQL. The uniqueness invariant is
// backed by a partial unique index on (offender_id, due_date) over the live
// statuses; batch inserts lean on ON CONFLICT DO NOTHING so a re-run of the
// creation worker is a no-op.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertCheckin = `
	INSERT INTO checkins (
		id, offender_id, due_date, status, survey,
		auto_id_check, manual_id_check,
		checkin_started_at, submitted_at, review_started_at, reviewed_at,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (s *PostgresStore) Save(ctx context.Context, checkin models.Checkin) error {
	args, err := insertArgs(checkin)
	if err != nil {
		return err
	}
	if _, err := s.execer(ctx).ExecContext(ctx, insertCheckin, args...); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, checkins []models.Checkin) (int, error) {
	inserted := 0
	// The conflict target repeats the partial index predicate so Postgres
	// picks checkins_offender_due_live as the arbiter.
	query := insertCheckin + ` ON CONFLICT (offender_id, due_date) WHERE status IN ('CREATED', 'SUBMITTED', 'REVIEWED') DO NOTHING`
	for _, checkin := range checkins {
		args, err := insertArgs(checkin)
		if err != nil {
			return inserted, err
		}
		res, err := s.execer(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("batch insert checkin: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

func insertArgs(checkin models.Checkin) ([]any, error) {
	survey, err := json.Marshal(checkin.Survey)
	if err != nil {
		return nil, fmt.Errorf("marshal survey: %w", err)
	}
	return []any{
		uuid.UUID(checkin.ID),
		uuid.UUID(checkin.OffenderID),
		offendermodels.DateOf(checkin.DueDate),
		string(checkin.Status),
		survey,
		nullString(string(checkin.AutoIDCheck)),
		nullString(string(checkin.ManualIDCheck)),
		checkin.CheckinStartedAt,
		checkin.SubmittedAt,
		checkin.ReviewStartedAt,
		checkin.ReviewedAt,
		checkin.CreatedAt,
		checkin.UpdatedAt,
	}, nil
}

func (s *PostgresStore) Update(ctx context.Context, checkin models.Checkin) error {
	survey, err := json.Marshal(checkin.Survey)
	if err != nil {
		return fmt.Errorf("marshal survey: %w", err)
	}
	query := `
		UPDATE checkins
		SET status = $2, survey = $3, auto_id_check = $4, manual_id_check = $5,
		    checkin_started_at = $6, submitted_at = $7,
		    review_started_at = $8, reviewed_at = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(checkin.ID),
		string(checkin.Status),
		survey,
		nullString(string(checkin.AutoIDCheck)),
		nullString(string(checkin.ManualIDCheck)),
		checkin.CheckinStartedAt,
		checkin.SubmittedAt,
		checkin.ReviewStartedAt,
		checkin.ReviewedAt,
		checkin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update checkin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const checkinColumns = `
	id, offender_id, due_date, status, survey,
	auto_id_check, manual_id_check,
	checkin_started_at, submitted_at, review_started_at, reviewed_at,
	created_at, updated_at
`

func (s *PostgresStore) FindByID(ctx context.Context, checkinID id.CheckinID) (models.Checkin, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE id = $1`,
		uuid.UUID(checkinID),
	)
	return scanCheckin(row)
}

func (s *PostgresStore) HasForDate(ctx context.Context, offenderID id.OffenderID, dueDate time.Time) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM checkins
			WHERE offender_id = $1 AND due_date = $2
			  AND status IN ('CREATED', 'SUBMITTED', 'REVIEWED')
		)
	`, uuid.UUID(offenderID), offendermodels.DateOf(dueDate)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing checkin: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListCreatedDueBefore(ctx context.Context, cutoff time.Time) ([]models.Checkin, error) {
	return s.list(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE status = 'CREATED' AND due_date < $1`,
		offendermodels.DateOf(cutoff),
	)
}

func (s *PostgresStore) ListCreatedByDueDate(ctx context.Context, dueDate time.Time) ([]models.Checkin, error) {
	return s.list(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE status = 'CREATED' AND due_date = $1`,
		offendermodels.DateOf(dueDate),
	)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.Checkin, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var out []models.Checkin
	for rows.Next() {
		checkin, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, checkin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkins: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ExpireBatch(ctx context.Context, ids []id.CheckinID, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, checkinID := range ids {
		raw[i] = checkinID.String()
	}
	// Status predicate keeps the update idempotent: a re-run only touches
	// rows still in CREATED.
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE checkins
		SET status = 'EXPIRED', updated_at = $2
		WHERE id = ANY($1::uuid[]) AND status = 'CREATED'
	`, raw, at)
	if err != nil {
		return 0, fmt.Errorf("expire checkins: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire checkins rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckin(row rowScanner) (models.Checkin, error) {
	var (
		checkin   models.Checkin
		rawID     uuid.UUID
		rawOffID  uuid.UUID
		status    string
		survey    []byte
		autoCheck sql.NullString
		manCheck  sql.NullString
	)
	err := row.Scan(
		&rawID,
		&rawOffID,
		&checkin.DueDate,
		&status,
		&survey,
		&autoCheck,
		&manCheck,
		&checkin.CheckinStartedAt,
		&checkin.SubmittedAt,
		&checkin.ReviewStartedAt,
		&checkin.ReviewedAt,
		&checkin.CreatedAt,
		&checkin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Checkin{}, sentinel.ErrNotFound
		}
		return models.Checkin{}, fmt.Errorf("scan checkin: %w", err)
	}
	checkin.ID = id.CheckinID(rawID)
	checkin.OffenderID = id.OffenderID(rawOffID)
	checkin.Status = models.Status(status)
	if len(survey) > 0 {
		if err := json.Unmarshal(survey, &checkin.Survey); err != nil {
			return models.Checkin{}, fmt.Errorf("unmarshal survey: %w", err)
		}
	}
	checkin.AutoIDCheck = models.IdentityCheckResult(autoCheck.String)
	checkin.ManualIDCheck = models.IdentityCheckResult(manCheck.String)
	return checkin, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var state sqlStater
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
