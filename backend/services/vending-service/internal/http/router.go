package httpserver

import (
	"net/http"
	"sort"
	"strings"
)

// Routes groups handlers.
type Routes struct {
	Scan           http.HandlerFunc
	ActiveSession  http.HandlerFunc
	EndSession     http.HandlerFunc
	RemainingTime  http.HandlerFunc
	RecentSessions http.HandlerFunc
	LiveSession    http.HandlerFunc
	CreateUser     http.HandlerFunc
	ListUsers      http.HandlerFunc
	CreateBarcode  http.HandlerFunc
	ListBarcodes   http.HandlerFunc
	DeleteBarcode  http.HandlerFunc
	RecordPayment  http.HandlerFunc
	ListPayments   http.HandlerFunc
	Balance        http.HandlerFunc
	SessionsStream http.HandlerFunc
	Health         http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Scan != nil {
		mux.Handle("/scans", method(http.MethodPost, routes.Scan))
	}
	if routes.ActiveSession != nil {
		mux.Handle("/sessions/active", method(http.MethodGet, routes.ActiveSession))
	}
	if routes.EndSession != nil {
		mux.Handle("/sessions/end", method(http.MethodPost, routes.EndSession))
	}
	if routes.RemainingTime != nil {
		mux.Handle("/sessions/remaining", method(http.MethodGet, routes.RemainingTime))
	}
	if routes.RecentSessions != nil {
		mux.Handle("/sessions/recent", method(http.MethodGet, routes.RecentSessions))
	}
	if routes.LiveSession != nil {
		mux.Handle("/sessions/live", method(http.MethodGet, routes.LiveSession))
	}
	mux.Handle("/users", methods(map[string]http.HandlerFunc{
		http.MethodPost: routes.CreateUser,
		http.MethodGet:  routes.ListUsers,
	}))
	mux.Handle("/barcodes", methods(map[string]http.HandlerFunc{
		http.MethodPost:   routes.CreateBarcode,
		http.MethodGet:    routes.ListBarcodes,
		http.MethodDelete: routes.DeleteBarcode,
	}))
	mux.Handle("/payments", methods(map[string]http.HandlerFunc{
		http.MethodPost: routes.RecordPayment,
		http.MethodGet:  routes.ListPayments,
	}))
	if routes.Balance != nil {
		mux.Handle("/payments/balance", method(http.MethodGet, routes.Balance))
	}
	if routes.SessionsStream != nil {
		mux.Handle("/ws/sessions", method(http.MethodGet, routes.SessionsStream))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

// methods dispatches one path by request method; nil handlers are skipped.
func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for m, h := range handlers {
		if h == nil {
			delete(handlers, m)
			continue
		}
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
