package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSessionClosed is returned when mutating a session that already has an end time.
	ErrSessionClosed = errors.New("models: session is closed")
	// ErrScanBeforeStart is returned for scans timestamped before the session started.
	ErrScanBeforeStart = errors.New("models: scan precedes session start")
)

// Scan is one barcode read attributed to a session. Amount is set only for payment barcodes.
type Scan struct {
	ID        uuid.UUID           `json:"id"`
	BarcodeID uuid.UUID           `json:"barcode_id"`
	ScanTime  time.Time           `json:"scan_time"`
	Amount    decimal.NullDecimal `json:"amount"`
}

// Session is the span of activity of one user between their first scan and its closure.
type Session struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Scans       []Scan          `json:"scans"`
}

// NewSession returns an empty active session for userID.
func NewSession(userID uuid.UUID, start time.Time) Session {
	return Session{
		ID:          uuid.New(),
		UserID:      userID,
		StartTime:   start,
		TotalAmount: decimal.Zero,
		Scans:       []Scan{},
	}
}

// Active reports whether the session has not been closed yet.
func (s *Session) Active() bool {
	return s.EndTime == nil
}

// AddScan appends scan and bumps the total by its amount.
func (s *Session) AddScan(scan Scan) error {
	if !s.Active() {
		return ErrSessionClosed
	}
	if scan.ScanTime.Before(s.StartTime) {
		return ErrScanBeforeStart
	}
	s.Scans = append(s.Scans, scan)
	if scan.Amount.Valid {
		s.TotalAmount = s.TotalAmount.Add(scan.Amount.Decimal)
	}
	return nil
}

// Close sets the end time once. It reports false if the session was already closed.
// An end time before the last scan is clamped to that scan.
func (s *Session) Close(at time.Time) bool {
	if !s.Active() {
		return false
	}
	if last := s.LastActivity(); at.Before(last) {
		at = last
	}
	s.EndTime = &at
	return true
}

// LastActivity is the time of the latest scan, or the start time for an empty session.
func (s *Session) LastActivity() time.Time {
	if n := len(s.Scans); n > 0 {
		return s.Scans[n-1].ScanTime
	}
	return s.StartTime
}

// Clone returns a deep copy safe to hand to callers.
func (s Session) Clone() Session {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Scans = make([]Scan, len(s.Scans))
	copy(out.Scans, s.Scans)
	return out
}
