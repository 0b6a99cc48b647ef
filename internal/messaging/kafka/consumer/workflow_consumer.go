package consumer

import (
	"context"
	"encoding/json"

	"leaveflow/internal/events"
	"leaveflow/internal/notification"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumeWorkflowTransitions feeds workflow transition events into the
// notification dispatcher. Delivery is best effort, so messages are
// committed even when individual recipients fail; only a commit failure
// leaves the message for redelivery.
func ConsumeWorkflowTransitions(
	ctx context.Context,
	reader *kafkago.Reader,
	dispatcher *notification.Dispatcher,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.workflow")
	log.Info("workflow transition consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("workflow transition consumer stopped")
				return
			}
			log.Error("fetch workflow transition message failed", zap.Error(err))
			continue
		}

		var event events.WorkflowTransitionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode workflow transition event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		dispatcher.Dispatch(ctx, event)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit workflow transition message failed", zap.Error(err))
			continue
		}
	}
}
