package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
	txcontext "esupervision/pkg/platform/tx"
)

// PostgresStore persists offenders in PostgreSQL.
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

func (s *PostgresStore) Save(ctx context.Context, offender models.Offender) error {
	query := `
		INSERT INTO offenders (
			id, case_reference, practitioner_id, status,
			first_checkin, interval_days, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(offender.ID),
		offender.CaseReference.String(),
		string(offender.PractitionerID),
		string(offender.Status),
		offender.FirstCheckin,
		offender.IntervalDays,
		offender.CreatedAt,
		offender.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert offender: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, offender models.Offender) error {
	query := `
		UPDATE offenders
		SET status = $2, first_checkin = $3, interval_days = $4,
		    practitioner_id = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(offender.ID),
		string(offender.Status),
		offender.FirstCheckin,
		offender.IntervalDays,
		string(offender.PractitionerID),
		offender.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update offender: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const offenderColumns = `
	id, case_reference, practitioner_id, status,
	first_checkin, interval_days, created_at, updated_at
`

func (s *PostgresStore) FindByID(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+offenderColumns+` FROM offenders WHERE id = $1`,
		uuid.UUID(offenderID),
	)
	return scanOffender(row)
}

func (s *PostgresStore) FindByCaseReference(ctx context.Context, ref id.CaseReference) (models.Offender, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+offenderColumns+` FROM offenders WHERE case_reference = $1`,
		ref.String(),
	)
	return scanOffender(row)
}

// ListDueOn pushes the schedule arithmetic into SQL so the eligible set is
// computed in one round trip: due iff the whole-day distance from
// first_checkin is a non-negative multiple of interval_days.
func (s *PostgresStore) ListDueOn(ctx context.Context, day time.Time) ([]models.Offender, error) {
	query := `
		SELECT ` + offenderColumns + `
		FROM offenders
		WHERE status = 'VERIFIED'
		  AND interval_days > 0
		  AND $1::date >= first_checkin::date
		  AND ($1::date - first_checkin::date) % interval_days = 0
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, models.DateOf(day))
	if err != nil {
		return nil, fmt.Errorf("query due offenders: %w", err)
	}
	defer rows.Close()

	var due []models.Offender
	for rows.Next() {
		offender, err := scanOffender(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, offender)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due offenders: %w", err)
	}
	return due, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffender(row rowScanner) (models.Offender, error) {
	var (
		offender       models.Offender
		rawID          uuid.UUID
		ref            string
		practitionerID string
		status         string
	)
	err := row.Scan(
		&rawID,
		&ref,
		&practitionerID,
		&status,
		&offender.FirstCheckin,
		&offender.IntervalDays,
		&offender.CreatedAt,
		&offender.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Offender{}, sentinel.ErrNotFound
		}
		return models.Offender{}, fmt.Errorf("scan offender: %w", err)
	}
	offender.ID = id.OffenderID(rawID)
	offender.CaseReference = id.CaseReference(ref)
	offender.PractitionerID = id.PractitionerID(practitionerID)
	offender.Status = models.Status(status)
	return offender, nil
}

// isUniqueViolation detects postgres unique constraint errors (SQLSTATE 23505)
// without importing the driver's error type into every store.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var state sqlStater
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
