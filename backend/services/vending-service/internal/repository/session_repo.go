package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	libdb "snackbox/backend/libs/db"
	"snackbox/backend/services/vending-service/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionColumns = `id, user_id, start_time, end_time, total_amount`

// SessionRepository handles persistence of vending sessions and their scans.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts the session together with its initial scans in one transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO sessions (id, user_id, start_time, end_time, total_amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	var endTime sql.NullTime
	if session.EndTime != nil {
		endTime = sql.NullTime{Time: *session.EndTime, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.StartTime,
		endTime,
		session.TotalAmount,
	); err != nil {
		switch {
		case libdb.IsUniqueViolation(err, activeSessionIndex):
			return nil, ErrActiveSessionExists
		case libdb.IsForeignKeyViolation(err):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	for _, scan := range session.Scans {
		if err := insertScan(ctx, tx, session.ID, scan); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := session.Clone()
	return &out, nil
}

// AppendScan records scan on an active session and bumps its total, locking the session
// row for the duration of the transaction.
func (r *SessionRepository) AppendScan(ctx context.Context, sessionID uuid.UUID, scan models.Scan) (*models.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		startTime time.Time
		endTime   sql.NullTime
	)
	const lockQuery = `SELECT start_time, end_time FROM sessions WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQuery, sessionID).Scan(&startTime, &endTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if endTime.Valid {
		return nil, ErrSessionNotActive
	}
	if scan.ScanTime.Before(startTime) {
		return nil, models.ErrScanBeforeStart
	}

	if err := insertScan(ctx, tx, sessionID, scan); err != nil {
		return nil, err
	}
	if scan.Amount.Valid {
		const bump = `UPDATE sessions SET total_amount = total_amount + $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, bump, sessionID, scan.Amount.Decimal); err != nil {
			return nil, fmt.Errorf("update total: %w", err)
		}
	}

	session, err := findSession(ctx, tx, `WHERE id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return session, nil
}

// CloseSession sets the end time of an active session, never earlier than its last scan.
// It reports false when the session is missing or already closed.
func (r *SessionRepository) CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time) (bool, error) {
	const query = `
		UPDATE sessions
		SET end_time = GREATEST(
			$2,
			start_time,
			COALESCE((SELECT MAX(scan_time) FROM barcode_scans WHERE session_id = $1), start_time)
		)
		WHERE id = $1 AND end_time IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, sessionID, endTime)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindActiveSession returns the user's open session or ErrSessionNotFound.
func (r *SessionRepository) FindActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	return findSession(ctx, r.db, `WHERE user_id = $1 AND end_time IS NULL`, userID)
}

// FindSession returns a session by id or ErrSessionNotFound.
func (r *SessionRepository) FindSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return findSession(ctx, r.db, `WHERE id = $1`, sessionID)
}

// ListSessions returns the last N sessions for user, most recent first.
func (r *SessionRepository) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return listSessions(ctx, r.db, `WHERE user_id = $1 ORDER BY start_time DESC LIMIT $2`, userID, limit)
}

// ListActiveSessions returns every open session regardless of owner.
func (r *SessionRepository) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	return listSessions(ctx, r.db, `WHERE end_time IS NULL ORDER BY start_time`)
}

// TotalSpent sums the totals of all sessions of user.
func (r *SessionRepository) TotalSpent(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	const query = `SELECT COALESCE(SUM(total_amount), 0) FROM sessions WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func insertScan(ctx context.Context, q querier, sessionID uuid.UUID, scan models.Scan) error {
	const query = `
		INSERT INTO barcode_scans (id, session_id, barcode_id, scan_time, amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.ExecContext(ctx, query, scan.ID, sessionID, scan.BarcodeID, scan.ScanTime, scan.Amount); err != nil {
		if libdb.IsForeignKeyViolation(err) {
			return ErrBarcodeNotFound
		}
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func findSession(ctx context.Context, q querier, where string, args ...any) (*models.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions `+where, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Scans, err = loadScans(ctx, q, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

func listSessions(ctx context.Context, q querier, clause string, args ...any) ([]models.Session, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range sessions {
		if sessions[i].Scans, err = loadScans(ctx, q, sessions[i].ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s       models.Session
		endTime sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.StartTime, &endTime, &s.TotalAmount); err != nil {
		return nil, err
	}
	if endTime.Valid {
		end := endTime.Time
		s.EndTime = &end
	}
	return &s, nil
}

func loadScans(ctx context.Context, q querier, sessionID uuid.UUID) ([]models.Scan, error) {
	const query = `
		SELECT id, barcode_id, scan_time, amount
		FROM barcode_scans
		WHERE session_id = $1
		ORDER BY scan_time, seq
	`
	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := []models.Scan{}
	for rows.Next() {
		var scan models.Scan
		if err := rows.Scan(&scan.ID, &scan.BarcodeID, &scan.ScanTime, &scan.Amount); err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}
