package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/config"
)

func TestNewWithMemoryStorage(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Port = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer application.Close()

	assert.Nil(t, application.db)
	assert.Nil(t, application.redisClient)
	assert.Nil(t, application.reader)

	errc := make(chan error, 1)
	go func() { errc <- application.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestNewRejectsUnreachablePostgres(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = config.StoragePostgres
	cfg.Database.DSN = "postgres://kiosk@127.0.0.1:1/snackbox?connect_timeout=1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
