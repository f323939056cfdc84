package handlers

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisstore "snackbox/backend/services/vending-service/internal/redis"
	"snackbox/backend/services/vending-service/internal/service"
)

// SessionsHandler serves session queries and explicit ends.
type SessionsHandler struct {
	coord  *service.Coordinator
	live   *redisstore.Store
	logger *zap.Logger
}

// NewSessionsHandler builds handler set. live may be nil when no cache is configured.
func NewSessionsHandler(coord *service.Coordinator, live *redisstore.Store, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{coord: coord, live: live, logger: logger}
}

// HandleActive handles GET /sessions/active?user_id=.
func (h *SessionsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	session, err := h.coord.GetActiveSession(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch active session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleEnd handles POST /sessions/end?session_id=.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := queryUUID(w, r, "session_id")
	if !ok {
		return
	}
	ended, err := h.coord.EndSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, h.logger, err, "end session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}

// HandleRemaining handles GET /sessions/remaining?session_id=.
func (h *SessionsHandler) HandleRemaining(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := queryUUID(w, r, "session_id")
	if !ok {
		return
	}
	left, tracked := h.coord.RemainingTime(sessionID)
	if !tracked {
		writeError(w, http.StatusNotFound, "no pending timeout for session")
		return
	}
	body := map[string]interface{}{
		"session_id":        sessionID,
		"remaining_seconds": left.Seconds(),
	}
	// An overdue session awaiting a close retry has no deadline left.
	if deadline, ok := h.coord.Deadline(sessionID); ok {
		body["deadline"] = deadline
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleRecent handles GET /sessions/recent?user_id=&limit=.
func (h *SessionsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	sessions, err := h.coord.RecentSessions(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// HandleLive handles GET /sessions/live, answered from the redis mirror.
func (h *SessionsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		writeError(w, http.StatusNotImplemented, "live cache not configured")
		return
	}
	session, err := h.live.Live(r.Context())
	if errors.Is(err, redis.Nil) {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	if err != nil {
		h.logger.Warn("failed to read live session", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "live cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, session)
}
