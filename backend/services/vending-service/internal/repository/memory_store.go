package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"snackbox/backend/services/vending-service/internal/models"
)

// MemoryStore keeps users, barcodes, sessions and payments in process memory. It follows
// the constraints of the Postgres schema: unique emails and codes, foreign keys and one
// open session per user. Every value handed out is a copy.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	barcodes map[uuid.UUID]models.Barcode
	codes    map[string]uuid.UUID
	sessions map[uuid.UUID]*models.Session
	active   map[uuid.UUID]uuid.UUID // user id -> open session id
	payments []models.Payment
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		barcodes: make(map[uuid.UUID]models.Barcode),
		codes:    make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]*models.Session),
		active:   make(map[uuid.UUID]uuid.UUID),
		now:      time.Now,
	}
}

// CreateUser stores user.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

// FindUser returns a user by id.
func (s *MemoryStore) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// FindUserByEmail returns a user by email.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// ListUsers returns all users ordered by name.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// CreateBarcode stores barcode.
func (s *MemoryStore) CreateBarcode(ctx context.Context, barcode *models.Barcode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[barcode.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, dup := s.codes[barcode.Code]; dup {
		return ErrDuplicateCode
	}
	now := s.now().UTC()
	barcode.CreatedAt, barcode.UpdatedAt = now, now
	s.barcodes[barcode.ID] = *barcode
	s.codes[barcode.Code] = barcode.ID
	return nil
}

// FindBarcode returns the barcode with id.
func (s *MemoryStore) FindBarcode(ctx context.Context, id uuid.UUID) (*models.Barcode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.barcodes[id]
	if !ok {
		return nil, ErrBarcodeNotFound
	}
	return &b, nil
}

// FindBarcodeByCode returns the barcode with code.
func (s *MemoryStore) FindBarcodeByCode(ctx context.Context, code string) (*models.Barcode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, ErrBarcodeNotFound
	}
	b := s.barcodes[id]
	return &b, nil
}

// ListBarcodesByUser returns the user's barcodes, newest first.
func (s *MemoryStore) ListBarcodesByUser(ctx context.Context, userID uuid.UUID) ([]models.Barcode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Barcode
	for _, b := range s.barcodes {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteBarcode removes a barcode. It reports false if none matched.
func (s *MemoryStore) DeleteBarcode(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.barcodes[id]
	if !ok {
		return false, nil
	}
	for _, session := range s.sessions {
		for _, scan := range session.Scans {
			if scan.BarcodeID == id {
				return false, ErrBarcodeInUse
			}
		}
	}
	delete(s.barcodes, id)
	delete(s.codes, b.Code)
	return true, nil
}

// CreateSession stores session with its scans.
func (s *MemoryStore) CreateSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session.UserID]; !ok {
		return nil, ErrUserNotFound
	}
	if session.Active() {
		if _, open := s.active[session.UserID]; open {
			return nil, ErrActiveSessionExists
		}
	}
	for _, scan := range session.Scans {
		if _, ok := s.barcodes[scan.BarcodeID]; !ok {
			return nil, ErrBarcodeNotFound
		}
	}

	stored := session.Clone()
	if stored.Scans == nil {
		stored.Scans = []models.Scan{}
	}
	s.sessions[stored.ID] = &stored
	if stored.Active() {
		s.active[stored.UserID] = stored.ID
	}
	out := stored.Clone()
	return &out, nil
}

// AppendScan records scan on an active session.
func (s *MemoryStore) AppendScan(ctx context.Context, sessionID uuid.UUID, scan models.Scan) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !session.Active() {
		return nil, ErrSessionNotActive
	}
	if _, ok := s.barcodes[scan.BarcodeID]; !ok {
		return nil, ErrBarcodeNotFound
	}
	if err := session.AddScan(scan); err != nil {
		return nil, err
	}
	out := session.Clone()
	return &out, nil
}

// CloseSession sets the end time of an active session. It reports false when the session
// is missing or already closed.
func (s *MemoryStore) CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if endTime.Before(session.StartTime) {
		endTime = session.StartTime
	}
	if !session.Close(endTime) {
		return false, nil
	}
	delete(s.active, session.UserID)
	return true, nil
}

// FindActiveSession returns the user's open session.
func (s *MemoryStore) FindActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := s.sessions[id].Clone()
	return &out, nil
}

// FindSession returns a session by id.
func (s *MemoryStore) FindSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := session.Clone()
	return &out, nil
}

// ListSessions returns the last N sessions for user, most recent first.
func (s *MemoryStore) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListActiveSessions returns every open session ordered by start time.
func (s *MemoryStore) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Session, 0, len(s.active))
	for _, id := range s.active {
		out = append(out, s.sessions[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// TotalSpent sums the totals of all sessions of user.
func (s *MemoryStore) TotalSpent(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, session := range s.sessions {
		if session.UserID == userID {
			total = total.Add(session.TotalAmount)
		}
	}
	return total, nil
}

// CreatePayment stores p.
func (s *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; !ok {
		return ErrUserNotFound
	}
	s.payments = append(s.payments, *p)
	return nil
}

// ListPaymentsByUser returns the last N payments of user, most recent first.
func (s *MemoryStore) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Payment
	for _, p := range slices.Backward(s.payments) {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TotalPaid sums all payments of user.
func (s *MemoryStore) TotalPaid(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, p := range s.payments {
		if p.UserID == userID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}
