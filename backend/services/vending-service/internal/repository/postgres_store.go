package repository

import "database/sql"

// PostgresStore bundles the Postgres repositories behind one value so it can be handed
// to every service that needs a storage port.
type PostgresStore struct {
	*SessionRepository
	*UserRepository
	*BarcodeRepository
	*PaymentRepository
}

// NewPostgresStore builds all repositories on db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		SessionRepository: NewSessionRepository(db),
		UserRepository:    NewUserRepository(db),
		BarcodeRepository: NewBarcodeRepository(db),
		PaymentRepository: NewPaymentRepository(db),
	}
}
