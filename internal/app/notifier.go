package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leaveflow/internal/directory"
	"leaveflow/internal/events"
	"leaveflow/internal/messaging/kafka/consumer"
	"leaveflow/internal/notification"
	"leaveflow/internal/shared/connection"

	"go.uber.org/zap"
)

// RunNotifier consumes workflow transition events and fans them out to
// stakeholders, outside the API process.
func RunNotifier() error {
	logger := zap.L().Named("app.notifier")

	gormDB, err := connectDatabase()
	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}

	kafkaBroker := os.Getenv("KAFKA_BROKER")
	if kafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	reader := connection.NewKafkaReader(kafkaBroker, events.LeaveWorkflowTopic, "leaveflow-notifier")
	defer reader.Close()

	directoryRepo := directory.NewRepository(gormDB)
	directoryService := directory.NewService(directoryRepo, rdb)
	transport := notification.NewLogTransport()
	dispatcher := notification.NewDispatcher(directoryService, transport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.ConsumeWorkflowTransitions(ctx, reader, dispatcher, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("notifier shutting down")
	cancel()

	return nil
}
