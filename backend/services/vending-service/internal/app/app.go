package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libdb "snackbox/backend/libs/db"
	libredis "snackbox/backend/libs/redis"
	"snackbox/backend/services/vending-service/internal/config"
	"snackbox/backend/services/vending-service/internal/db"
	httpserver "snackbox/backend/services/vending-service/internal/http"
	"snackbox/backend/services/vending-service/internal/http/handlers"
	redisstore "snackbox/backend/services/vending-service/internal/redis"
	"snackbox/backend/services/vending-service/internal/repository"
	"snackbox/backend/services/vending-service/internal/scanner"
	"snackbox/backend/services/vending-service/internal/service"
	"snackbox/backend/services/vending-service/internal/ws"
)

const shutdownGrace = 10 * time.Second

// store is everything the services need from persistence.
type store interface {
	service.SessionStore
	service.UserStore
	service.BarcodeStore
	service.PaymentStore
}

// App wires vending-service dependencies.
type App struct {
	server      *httpserver.Server
	coord       *service.Coordinator
	reader      *scanner.Reader
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. ctx bounds startup and the lifetime of
// websocket subscribers.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	st, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	checks := map[string]handlers.Pinger{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}

	hub := ws.NewHub()
	listeners := []service.Listener{hub}

	var live *redisstore.Store
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		live = redisstore.NewStore(a.redisClient, cfg.ActiveSessionTTL())
		listeners = append(listeners, live)
		checks["redis"] = func(ctx context.Context) error { return a.redisClient.Ping(ctx).Err() }
	}

	a.coord, err = service.NewCoordinator(st, st, st, cfg.SessionTimeout(), logger,
		service.WithListeners(listeners...),
		service.WithCloseTimeout(cfg.Session.CloseTimeout),
		service.WithRetryDelay(cfg.Session.RetryDelay),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	if _, err := a.coord.Resume(ctx); err != nil {
		a.Close()
		return nil, err
	}

	users := handlers.NewUsersHandler(service.NewUserService(st, logger), logger)
	barcodes := handlers.NewBarcodesHandler(service.NewBarcodeService(st, st, logger), logger)
	payments := handlers.NewPaymentsHandler(service.NewPaymentService(st, st, st, logger), logger)
	sessions := handlers.NewSessionsHandler(a.coord, live, logger)
	wsServer := ws.NewServer(ctx, hub, cfg.WS.Origins, cfg.WS.WriteTimeout, cfg.WS.PingInterval, logger)

	routes := httpserver.Routes{
		Scan:           handlers.NewScanHandler(a.coord, logger),
		ActiveSession:  sessions.HandleActive,
		EndSession:     sessions.HandleEnd,
		RemainingTime:  sessions.HandleRemaining,
		RecentSessions: sessions.HandleRecent,
		LiveSession:    sessions.HandleLive,
		CreateUser:     users.HandleCreate,
		ListUsers:      users.HandleList,
		CreateBarcode:  barcodes.HandleCreate,
		ListBarcodes:   barcodes.HandleList,
		DeleteBarcode:  barcodes.HandleDelete,
		RecordPayment:  payments.HandleRecord,
		ListPayments:   payments.HandleList,
		Balance:        payments.HandleBalance,
		SessionsStream: wsServer.HandleWS,
		Health:         handlers.NewHealthHandler(checks),
	}
	a.server = httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), cfg.HTTP.ShutdownTimeout, logger)

	if cfg.Scanner.Port != "" {
		a.reader = scanner.NewReader(cfg.Scanner.Port, cfg.Scanner.BaudRate, a.handleCode, logger)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		a.logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN, libdb.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, sqlDB, a.logger); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	a.db = sqlDB
	return repository.NewPostgresStore(sqlDB), nil
}

func (a *App) handleCode(ctx context.Context, code string) error {
	res, err := a.coord.ScanCode(ctx, code)
	if err != nil {
		return err
	}
	a.logger.Info("scan processed",
		zap.String("session_id", res.Session.ID.String()),
		zap.String("user", res.User.Name),
		zap.Bool("admin_mode", res.AdminMode()),
	)
	return nil
}

// Run serves HTTP and, when configured, reads the serial scanner until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx)
	})
	if a.reader != nil {
		g.Go(func() error {
			return a.reader.Run(ctx)
		})
	}
	return g.Wait()
}

// Close ends open sessions and releases resources.
func (a *App) Close() {
	if a.coord != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := a.coord.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("failed to close open sessions", zap.Error(err))
		}
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
