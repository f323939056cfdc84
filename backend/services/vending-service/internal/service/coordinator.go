package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/lifecycle"
	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/repository"
	"snackbox/backend/services/vending-service/internal/scheduler"
)

const (
	defaultRecentLimit  = 10
	defaultCloseTimeout = 10 * time.Second
	defaultRetryDelay   = 30 * time.Second
)

// Coordinator owns the session lifecycle: it opens, extends and closes sessions in
// storage and keeps one inactivity timer per session it tracks.
//
// Locks are taken in the order user, handoff, session and at most one session lock is
// held at a time. The handoff lock is only taken on the open path, so extends and
// timeouts of the live session never wait on it.
type Coordinator struct {
	sessions SessionStore
	users    UserStore
	barcodes BarcodeStore
	timeout  time.Duration
	logger   *zap.Logger

	now          func() time.Time
	listeners    []Listener
	closeTimeout time.Duration
	retryDelay   time.Duration

	timers       *scheduler.Scheduler[uuid.UUID]
	retries      *scheduler.Scheduler[uuid.UUID]
	userLocks    keyedMutex[uuid.UUID]
	sessionLocks keyedMutex[uuid.UUID]
	handoff      sync.Mutex
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock replaces time.Now for scan, end and deadline timestamps.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithListeners registers lifecycle event listeners.
func WithListeners(listeners ...Listener) CoordinatorOption {
	return func(c *Coordinator) {
		for _, l := range listeners {
			if l != nil {
				c.listeners = append(c.listeners, l)
			}
		}
	}
}

// WithCloseTimeout bounds the storage calls made when a timer fires.
func WithCloseTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.closeTimeout = d
		}
	}
}

// WithRetryDelay sets how long to wait before retrying a timeout close that failed.
func WithRetryDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// ScanResult is the outcome of ScanCode.
type ScanResult struct {
	Session *models.Session
	Barcode *models.Barcode
	User    *models.User
}

// AdminMode reports whether the scan was an admin card of an admin user.
func (r ScanResult) AdminMode() bool {
	return r.Barcode != nil && r.User != nil &&
		r.Barcode.Type == models.BarcodeTypeAdmin && r.User.IsAdmin
}

// NewCoordinator builds a coordinator closing sessions after timeout of inactivity.
func NewCoordinator(
	sessions SessionStore,
	users UserStore,
	barcodes BarcodeStore,
	timeout time.Duration,
	logger *zap.Logger,
	opts ...CoordinatorOption,
) (*Coordinator, error) {
	if timeout <= 0 {
		return nil, validationError(ErrInvalidTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		sessions:     sessions,
		users:        users,
		barcodes:     barcodes,
		timeout:      timeout,
		logger:       logger,
		now:          time.Now,
		closeTimeout: defaultCloseTimeout,
		retryDelay:   defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timers = scheduler.New(c.onTimeout, scheduler.WithClock(c.now))
	// Close retries of overdue sessions live apart from deadlines.
	c.retries = scheduler.New(c.onTimeout, scheduler.WithClock(c.now))
	return c, nil
}

// ScanCode resolves a raw barcode and processes it like ProcessScan.
func (c *Coordinator) ScanCode(ctx context.Context, code string) (*ScanResult, error) {
	barcode, err := c.barcodes.FindBarcodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrBarcodeNotFound) {
			c.logger.Info("unknown barcode scanned", zap.String("code", code))
		}
		return nil, classify("find barcode", err)
	}

	session, user, err := c.processScan(ctx, *barcode)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Session: session, Barcode: barcode, User: user}, nil
}

// ProcessScan attributes a scan of barcode to its owner's session. A scan by the owner
// of the live session extends it; any other scan closes every open session and opens a
// new one. The session's timeout is rearmed from now. It returns a snapshot of the
// resulting session.
//
// Only barcode.ID is trusted: owner, type and amount are reloaded from storage, and an
// unknown barcode reports ErrNotFound before any session is touched.
func (c *Coordinator) ProcessScan(ctx context.Context, barcode models.Barcode) (*models.Session, error) {
	session, _, err := c.processScan(ctx, barcode)
	return session, err
}

func (c *Coordinator) processScan(ctx context.Context, scanned models.Barcode) (*models.Session, *models.User, error) {
	stored, err := c.barcodes.FindBarcode(ctx, scanned.ID)
	if err != nil {
		return nil, nil, classify("find barcode", err)
	}
	barcode := *stored
	if err := barcode.Validate(); err != nil {
		return nil, nil, validationError(err)
	}

	user, err := c.users.FindUser(ctx, barcode.UserID)
	if err != nil {
		return nil, nil, classify("find user", err)
	}

	unlock := c.userLocks.Lock(user.ID)
	defer unlock()

	session, err := c.scanLocked(ctx, barcode)
	if errors.Is(err, ErrInvalidState) {
		// The session closed between lookup and append; the retry sees the new state.
		c.logger.Debug("retrying scan after state change",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		session, err = c.scanLocked(ctx, barcode)
	}
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// scanLocked runs one decision round. The caller holds the owner's user lock.
func (c *Coordinator) scanLocked(ctx context.Context, barcode models.Barcode) (*models.Session, error) {
	active, err := c.findActive(ctx, barcode.UserID)
	if err != nil {
		return nil, err
	}

	decision := lifecycle.Decide(barcode, active, nil)
	if decision.Action == lifecycle.Extend {
		return c.extend(ctx, decision.Target.ID, barcode)
	}

	c.handoff.Lock()
	defer c.handoff.Unlock()

	open, err := c.sessions.ListActiveSessions(ctx)
	if err != nil {
		return nil, classify("list active sessions", err)
	}
	var mine *models.Session
	owners := make(map[uuid.UUID]uuid.UUID, len(open))
	for i := range open {
		owners[open[i].ID] = open[i].UserID
		if mine == nil && open[i].UserID == barcode.UserID {
			mine = &open[i]
		}
	}

	decision = lifecycle.Decide(barcode, mine, open)
	if decision.Action == lifecycle.Extend {
		return c.extend(ctx, decision.Target.ID, barcode)
	}

	at := c.now().UTC()
	for _, id := range decision.Close {
		if _, err := c.closeSession(ctx, id, owners[id], at, models.CloseReasonForced); err != nil {
			return nil, err
		}
	}
	return c.open(ctx, barcode, at)
}

func (c *Coordinator) open(ctx context.Context, barcode models.Barcode, at time.Time) (*models.Session, error) {
	session := models.NewSession(barcode.UserID, at)
	if err := session.AddScan(barcode.NewScan(at)); err != nil {
		return nil, validationError(err)
	}

	unlock := c.sessionLocks.Lock(session.ID)
	defer unlock()

	created, err := c.sessions.CreateSession(ctx, &session)
	if err != nil {
		return nil, classify("create session", err)
	}
	deadline := c.timers.Schedule(created.ID, c.timeout)

	c.logger.Info("session opened",
		zap.String("session_id", created.ID.String()),
		zap.String("user_id", created.UserID.String()),
		zap.String("total", created.TotalAmount.StringFixed(2)),
		zap.Time("deadline", deadline),
	)
	c.emit(ctx, models.SessionEvent{Type: models.SessionOpened, Session: created.Clone(), Deadline: &deadline, At: at})
	return created, nil
}

func (c *Coordinator) extend(ctx context.Context, sessionID uuid.UUID, barcode models.Barcode) (*models.Session, error) {
	unlock := c.sessionLocks.Lock(sessionID)
	defer unlock()

	at := c.now().UTC()
	updated, err := c.sessions.AppendScan(ctx, sessionID, barcode.NewScan(at))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, errors.Join(ErrInvalidState, err)
	}
	if err != nil {
		return nil, classify("append scan", err)
	}
	deadline := c.timers.Schedule(sessionID, c.timeout)
	c.retries.Cancel(sessionID)

	c.logger.Debug("session extended",
		zap.String("session_id", sessionID.String()),
		zap.Int("scans", len(updated.Scans)),
		zap.String("total", updated.TotalAmount.StringFixed(2)),
		zap.Time("deadline", deadline),
	)
	c.emit(ctx, models.SessionEvent{Type: models.SessionExtended, Session: updated.Clone(), Deadline: &deadline, At: at})
	return updated, nil
}

// EndSession closes the session if it is still active and reports whether it did.
// Unknown and already closed sessions report false.
func (c *Coordinator) EndSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return c.closeSession(ctx, sessionID, uuid.Nil, c.now().UTC(), models.CloseReasonEnded)
}

// closeSession closes in storage first and only then drops the timer, so a failed close
// leaves both untouched. owner may be uuid.Nil when the caller does not know it.
func (c *Coordinator) closeSession(ctx context.Context, sessionID, owner uuid.UUID, at time.Time, reason models.CloseReason) (bool, error) {
	unlock := c.sessionLocks.Lock(sessionID)
	defer unlock()

	return c.closeLocked(ctx, sessionID, owner, at, reason)
}

func (c *Coordinator) closeLocked(ctx context.Context, sessionID, owner uuid.UUID, at time.Time, reason models.CloseReason) (bool, error) {
	if owner == uuid.Nil {
		if s, err := c.sessions.FindSession(ctx, sessionID); err == nil {
			owner = s.UserID
		}
	}

	closed, err := c.sessions.CloseSession(ctx, sessionID, at)
	if err != nil {
		return false, classify("close session", err)
	}
	c.timers.Cancel(sessionID)
	c.retries.Cancel(sessionID)
	if !closed {
		return false, nil
	}

	session, err := c.sessions.FindSession(ctx, sessionID)
	if err != nil {
		c.logger.Warn("failed to reload closed session", zap.String("session_id", sessionID.String()), zap.Error(err))
		session = &models.Session{ID: sessionID, UserID: owner, EndTime: &at}
	}

	c.logger.Info("session closed",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", session.UserID.String()),
		zap.String("reason", string(reason)),
		zap.String("total", session.TotalAmount.StringFixed(2)),
	)
	c.emit(ctx, models.SessionEvent{Type: models.SessionClosed, Reason: reason, Session: session.Clone(), At: at})
	return true, nil
}

// onTimeout runs on the scheduler's goroutine when a session's deadline passes.
func (c *Coordinator) onTimeout(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout)
	defer cancel()

	unlock := c.sessionLocks.Lock(sessionID)
	defer unlock()

	// A scan rearmed the timer while this callback waited for the lock.
	if c.timers.Pending(sessionID) {
		return
	}

	session, err := c.sessions.FindSession(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return
	}
	if err != nil {
		c.retryTimeout(sessionID, err)
		return
	}
	if !session.Active() {
		return
	}

	at := session.LastActivity().Add(c.timeout)
	if now := c.now().UTC(); at.After(now) {
		at = now
	}
	if _, err := c.closeLocked(ctx, sessionID, session.UserID, at, models.CloseReasonTimeout); err != nil {
		c.retryTimeout(sessionID, err)
	}
}

func (c *Coordinator) retryTimeout(sessionID uuid.UUID, err error) {
	c.logger.Error("failed to close timed out session",
		zap.String("session_id", sessionID.String()),
		zap.Duration("retry_in", c.retryDelay),
		zap.Error(err),
	)
	c.retries.Schedule(sessionID, c.retryDelay)
}

// GetActiveSession returns the user's open session or ErrNotFound.
func (c *Coordinator) GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	session, err := c.sessions.FindActiveSession(ctx, userID)
	if err != nil {
		return nil, classify("find active session", err)
	}
	return session, nil
}

// RemainingTime returns the time left before the session auto-closes. It reports false
// when this process tracks no timer for the session. An overdue session whose close is
// being retried reports zero.
func (c *Coordinator) RemainingTime(sessionID uuid.UUID) (time.Duration, bool) {
	if left, ok := c.timers.Remaining(sessionID); ok {
		return left, true
	}
	return 0, c.retries.Pending(sessionID)
}

// Deadline returns when the session auto-closes, if tracked. It reports false once the
// deadline has passed, including while a failed close is retried.
func (c *Coordinator) Deadline(sessionID uuid.UUID) (time.Time, bool) {
	return c.timers.Deadline(sessionID)
}

// RecentSessions returns the user's last sessions, most recent first.
func (c *Coordinator) RecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	sessions, err := c.sessions.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, classify("list sessions", err)
	}
	return sessions, nil
}

// Resume arms timers for sessions left open in storage, for example by a previous
// process. Each deadline counts from the session's last activity; overdue sessions
// close right away. It returns the number of sessions armed.
func (c *Coordinator) Resume(ctx context.Context) (int, error) {
	open, err := c.sessions.ListActiveSessions(ctx)
	if err != nil {
		return 0, classify("list active sessions", err)
	}

	now := c.now().UTC()
	armed := 0
	for i := range open {
		s := &open[i]
		unlock := c.sessionLocks.Lock(s.ID)
		if !c.timers.Pending(s.ID) && !c.retries.Pending(s.ID) {
			c.timers.Schedule(s.ID, s.LastActivity().Add(c.timeout).Sub(now))
			armed++
		}
		unlock()
	}
	if armed > 0 {
		c.logger.Info("resumed open sessions", zap.Int("count", armed))
	}
	return armed, nil
}

// Shutdown closes every session this process tracks a timer for and cancels all timers.
// Sessions without a timer are left alone.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	at := c.now().UTC()
	tracked := c.timers.Keys()
	for _, id := range c.retries.Keys() {
		if !slices.Contains(tracked, id) {
			tracked = append(tracked, id)
		}
	}

	var errs []error
	for _, id := range tracked {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := c.closeSession(ctx, id, uuid.Nil, at, models.CloseReasonShutdown); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	c.retries.CancelAll()
	if n := c.timers.CancelAll(); n > 0 {
		c.logger.Warn("dropped timers on shutdown", zap.Int("count", n))
	}
	return errors.Join(errs...)
}

func (c *Coordinator) findActive(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	session, err := c.sessions.FindActiveSession(ctx, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find active session", err)
	}
	return session, nil
}

func (c *Coordinator) emit(ctx context.Context, event models.SessionEvent) {
	for _, l := range c.listeners {
		if err := l.OnSessionEvent(ctx, event); err != nil {
			c.logger.Warn("session listener failed",
				zap.String("event", string(event.Type)),
				zap.String("session_id", event.Session.ID.String()),
				zap.Error(err),
			)
		}
	}
}
