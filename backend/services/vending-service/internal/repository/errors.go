package repository

import "errors"

var (
	// ErrSessionNotFound indicates a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned when appending to a session that already ended.
	ErrSessionNotActive = errors.New("session not active")
	// ErrActiveSessionExists is returned when creating a second open session for a user.
	ErrActiveSessionExists = errors.New("user already has an active session")
	// ErrUserNotFound indicates a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBarcodeNotFound indicates an unknown barcode.
	ErrBarcodeNotFound = errors.New("barcode not found")
	// ErrDuplicateCode is returned when a barcode code is already in use.
	ErrDuplicateCode = errors.New("barcode code already exists")
	// ErrBarcodeInUse is returned when deleting a barcode that recorded scans reference.
	ErrBarcodeInUse = errors.New("barcode has recorded scans")
)

const (
	activeSessionIndex = "sessions_one_active_per_user"
	usersEmailKey      = "users_email_key"
	barcodesCodeKey    = "barcodes_code_key"
)

const defaultListLimit = 50
