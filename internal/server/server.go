package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/app"
	"github.com/cognify-labs/cognify/backend/internal/db"
	"github.com/cognify-labs/cognify/backend/internal/queue"
	mid "github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/internal/storage"
	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store/pgx"
	"github.com/cognify-labs/cognify/backend/pkg/stream"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("[Server] Failed to load jwks keys", "err", err)
		}
		key = k
	} else {
		logger.Warn("[Server] AUTH_URL not set, only the master api key is accepted")
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("[Server] Failed to migrate database", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("[Server] Failed to connect to database", "err", err)
	}
	defer conn.Close()

	aiClient, err := app.NewAIClient()
	if err != nil {
		logger.Fatal("[Server] Failed to create ai client", "err", err)
	}
	if err := app.WarmUp(ctx, aiClient); err != nil {
		logger.Warn("[Server] Model warm-up failed", "err", err)
	}

	application := &mid.App{
		Store:        pgx.NewGraphDBStorageWithConnection(conn),
		AiClient:     aiClient,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		MasterUserID: util.GetEnvString("MASTER_USER_ID", "master"),
		Key:          key,
	}

	var archiver stream.Archiver
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("[Server] Failed to create s3 client", "err", err)
	}
	if s3Client != nil {
		archive := storage.NewSnapshotArchive(storage.NewSnapshotArchiveParams{
			Client:         s3Client,
			Bucket:         util.GetEnv("AWS_BUCKET"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
		})
		archiver = archive
		application.Exporter = archive
	}

	var notifier stream.Notifier
	if queue.Configured() {
		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("[Server] Failed to open channel", "err", err)
		}
		defer ch.Close()

		if err := queue.SetupQueues(ch, []string{queue.GraphQueue}); err != nil {
			logger.Fatal("[Server] Failed to declare queues", "err", err)
		}
		application.Queue = ch

		notifyCh, err := que.Channel()
		if err != nil {
			logger.Fatal("[Server] Failed to open notification channel", "err", err)
		}
		defer notifyCh.Close()
		notifier = queue.NewNotifier(notifyCh)
	}

	application.Orchestrator, err = app.NewOrchestrator(app.Deps{
		Store:    application.Store,
		Locker:   leaselock.New(conn),
		AIClient: aiClient,
		Archiver: archiver,
		Notifier: notifier,
		Owner:    "server",
	})
	if err != nil {
		logger.Fatal("[Server] Failed to create orchestrator", "err", err)
	}

	e.Use(mid.AppContextMiddleware(application))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("[Server] Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
}
