package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/app"
	"github.com/cognify-labs/cognify/backend/internal/db"
	"github.com/cognify-labs/cognify/backend/internal/queue"
	"github.com/cognify-labs/cognify/backend/internal/storage"
	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store/pgx"
	"github.com/cognify-labs/cognify/backend/pkg/stream"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func main() {
	util.LoadEnv()
	util.InitLogger("cognify-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := app.NewAIClient()
	if err != nil {
		logger.Fatal("[Worker] Could not create ai client", "err", err)
	}
	if err := app.WarmUp(ctx, aiClient); err != nil {
		logger.Warn("[Worker] Model warm-up failed", "err", err)
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("[Worker] Failed to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("[Worker] Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker] Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.GraphQueue}); err != nil {
		logger.Fatal("[Worker] Failed to declare queues", "err", err)
	}

	var archiver stream.Archiver
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("[Worker] Failed to create s3 client", "err", err)
	}
	if s3Client != nil {
		archiver = storage.NewSnapshotArchive(storage.NewSnapshotArchiveParams{
			Client:         s3Client,
			Bucket:         util.GetEnv("AWS_BUCKET"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
		})
	}

	orchestrator, err := app.NewOrchestrator(app.Deps{
		Store:    pgx.NewGraphDBStorageWithConnection(pgConn),
		Locker:   leaselock.New(pgConn),
		AIClient: aiClient,
		Archiver: archiver,
		Notifier: queue.NewNotifier(ch),
		Owner:    "worker",
	})
	if err != nil {
		logger.Fatal("[Worker] Failed to create orchestrator", "err", err)
	}

	// A separate consumer channel with prefetch=1 so one graph is built at a time
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker] Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("[Worker] Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.GraphQueue,
		queue.GraphQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("[Worker] Failed to start consuming", "queue", queue.GraphQueue, "err", err)
	}

	logger.Info("[Worker] Listening for messages", "queue", queue.GraphQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Worker] Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Worker] Message channel closed", "queue", queue.GraphQueue)
				return
			}

			startTime := time.Now()
			logger.Info("[Worker] Received message", "queue", queue.GraphQueue)

			if err := queue.ProcessGraphMessage(ctx, orchestrator, msg.Body); err != nil {
				logger.Error("[Worker] Error processing message", "queue", queue.GraphQueue, "err", err)
				queue.HandleProcessingError(consumerCh, msg, queue.GraphQueue)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("[Worker] Failed to ack message", "err", err)
				}
				logger.Info("[Worker] Message processed successfully", "queue", queue.GraphQueue)
			}

			metrics := aiClient.GetMetrics()
			logger.Info(
				"[Worker] AI Metrics",
				"input_tokens", metrics.InputTokens,
				"output_tokens", metrics.OutputTokens,
				"total_tokens", metrics.TotalTokens,
				"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
			)
			logger.Info("[Worker] Processing time", "duration", formatDuration(time.Since(startTime)))
			aiClient.ResetMetrics()
		}
	}
}
