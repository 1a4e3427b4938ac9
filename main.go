package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/faceid/internal/audit"
	"github.com/example/faceid/internal/auth"
	"github.com/example/faceid/internal/extractor"
	"github.com/example/faceid/internal/handlers"
	"github.com/example/faceid/internal/logging"
	"github.com/example/faceid/internal/matcher"
	"github.com/example/faceid/internal/store"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	mongoCtx, mongoCancel := context.WithTimeout(ctx, 10*time.Second)
	defer mongoCancel()
	templates, err := store.ConnectMongo(
		mongoCtx,
		getEnv("MONGO_URI", "mongodb://localhost:27017"),
		getEnv("MONGO_DATABASE", "faceid"),
		getEnv("MONGO_COLLECTION", "face_embeddings"),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to connect to template store", zap.Error(err))
	}
	defer func() {
		_ = templates.Close(context.Background())
	}()

	ext := initExtractor(logger)
	if closer, ok := ext.(interface{ Close() }); ok {
		defer closer.Close()
	}

	var cache matcher.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		cache = matcher.NewRedisCache(initRedis(redisCtx, addr, logger))
	}

	var recorder audit.Recorder
	var metrics handlers.MetricsSource
	if dsn := os.Getenv("AUDIT_DATABASE_DSN"); dsn != "" {
		repo := audit.NewRepository(initAuditDatabase(ctx, dsn, logger), logger)
		if err := repo.AutoMigrate(ctx); err != nil {
			logger.Fatal("audit auto migrate failed", zap.Error(err))
		}
		recorder = repo
		metrics = repo
	}

	svc := matcher.New(templates, ext, cache, recorder, logger)

	r := gin.Default()

	var middleware []gin.HandlerFunc
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		middleware = append(middleware, auth.JWTMiddleware(secret, os.Getenv("JWT_AUDIENCE")))
	}
	handlers.RegisterRoutes(r, svc, metrics, middleware...)

	addr := ":" + getEnv("PORT", "8080")
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	logger.Info("face recognition service listening", zap.String("addr", addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// initExtractor selects the embedding capability: a remote HTTP service when
// EXTRACTOR_URL is set, otherwise the local dlib models.
func initExtractor(logger *zap.Logger) extractor.Extractor {
	if rawURL := os.Getenv("EXTRACTOR_URL"); rawURL != "" {
		remote, err := extractor.NewRemote(rawURL, nil, logger)
		if err != nil {
			logger.Fatal("failed to build remote extractor", zap.Error(err))
		}
		return remote
	}

	dlib, err := extractor.NewDlib(getEnv("FACE_MODELS_DIR", "models"), logger)
	if err != nil {
		logger.Fatal("failed to load face models", zap.Error(err))
	}
	return dlib
}

func initAuditDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to audit database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("audit database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
