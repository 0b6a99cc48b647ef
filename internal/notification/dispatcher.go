package notification

import (
	"context"

	"leaveflow/internal/directory"
	"leaveflow/internal/events"

	"go.uber.org/zap"
)

// Dispatcher turns a workflow transition into per-recipient deliveries.
// It runs strictly outside the state-transition transaction: a failed
// delivery is logged and skipped, never rolled back into the workflow.
type Dispatcher struct {
	dir       directory.Service
	transport Transport
	logger    *zap.Logger
}

func NewDispatcher(dir directory.Service, transport Transport, logger ...*zap.Logger) *Dispatcher {
	l := zap.L().Named("notification.dispatcher")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.dispatcher")
	}
	return &Dispatcher{dir: dir, transport: transport, logger: l}
}

// Dispatch is best effort per recipient: one failed lookup or send does not
// block the remaining recipients. It returns the number of successful
// deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.WorkflowTransitionEvent) int {
	st := StakeholdersFromEvent(ev)

	hrObservers, err := d.dir.HRObserverIDs(ctx)
	if err != nil {
		d.logger.Error("resolve hr observers failed, continuing without them",
			zap.String("leave_request_id", ev.LeaveRequestID),
			zap.Error(err),
		)
	} else {
		st.HRObserverIDs = hrObservers
	}

	notifications := Classify(ev, st)

	delivered := 0
	for _, n := range notifications {
		recipient, err := d.dir.GetUser(ctx, n.RecipientID)
		if err != nil {
			d.logger.Error("resolve recipient failed",
				zap.String("recipient_id", n.RecipientID),
				zap.String("variant", string(n.Variant)),
				zap.Error(err),
			)
			continue
		}

		if err := d.transport.Send(ctx, recipient, n.Variant, ev); err != nil {
			d.logger.Error("deliver notification failed",
				zap.String("recipient_id", n.RecipientID),
				zap.String("variant", string(n.Variant)),
				zap.String("leave_request_id", ev.LeaveRequestID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	d.logger.Info("fanout dispatched",
		zap.String("leave_request_id", ev.LeaveRequestID),
		zap.String("event_type", ev.EventType),
		zap.Int("recipients", len(notifications)),
		zap.Int("delivered", delivered),
	)
	return delivered
}
