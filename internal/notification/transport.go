package notification

import (
	"context"

	"leaveflow/internal/directory"
	"leaveflow/internal/events"

	"go.uber.org/zap"
)

//go:generate mockgen -source=transport.go -destination=mock/transport_mock.go -package=mock

// Transport delivers one message to one recipient. Implementations wrap
// whatever channel the deployment uses (push, email); delivery is fire and
// forget per recipient.
type Transport interface {
	Send(ctx context.Context, recipient directory.UserInfo, variant Variant, ev events.WorkflowTransitionEvent) error
}

// LogTransport writes deliveries to the log. It is the default transport in
// deployments without a push or mail channel configured.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger ...*zap.Logger) *LogTransport {
	l := zap.L().Named("notification.transport")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.transport")
	}
	return &LogTransport{logger: l}
}

func (t *LogTransport) Send(ctx context.Context, recipient directory.UserInfo, variant Variant, ev events.WorkflowTransitionEvent) error {
	t.logger.Info("notification delivered",
		zap.String("recipient_id", recipient.ID),
		zap.String("recipient_email", recipient.Email),
		zap.String("variant", string(variant)),
		zap.String("leave_request_id", ev.LeaveRequestID),
		zap.String("request_number", ev.RequestNumber),
		zap.String("event_type", ev.EventType),
	)
	return nil
}
