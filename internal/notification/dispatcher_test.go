package notification_test

import (
	"context"
	"errors"
	"testing"

	"leaveflow/internal/directory"
	directoryerrors "leaveflow/internal/directory/errors"
	"leaveflow/internal/events"
	"leaveflow/internal/leaverequest"
	"leaveflow/internal/notification"
	"leaveflow/internal/notification/mock"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type fakeDirectoryService struct {
	hrObserverIDsFn func(ctx context.Context) ([]string, error)
	getUserFn       func(ctx context.Context, userID string) (directory.UserInfo, error)
}

func (f *fakeDirectoryService) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	return nil, nil
}

func (f *fakeDirectoryService) GetUser(ctx context.Context, userID string) (directory.UserInfo, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, userID)
	}
	return directory.UserInfo{ID: userID, Email: userID + "@example.com"}, nil
}

func (f *fakeDirectoryService) IsLeaveManager(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (f *fakeDirectoryService) FinalApproverID(ctx context.Context) (string, error) {
	return "", nil
}

func (f *fakeDirectoryService) HRObserverIDs(ctx context.Context) ([]string, error) {
	if f.hrObserverIDsFn != nil {
		return f.hrObserverIDsFn(ctx)
	}
	return nil, nil
}

func submittedEvent() events.WorkflowTransitionEvent {
	return events.WorkflowTransitionEvent{
		EventType:      events.EventLeaveRequestSubmitted,
		LeaveRequestID: "lr-1",
		RequestNumber:  "LR-000001",
		RequesterID:    "req",
		Slots: []events.SlotSnapshot{
			{Step: leaverequest.StepGroupApprovers, ApproverID: "a"},
			{Step: leaverequest.StepFinalApprover, ApproverID: "pres"},
		},
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("success delivers to every stakeholder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		transport := mock.NewMockTransport(ctrl)
		transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(4)

		dir := &fakeDirectoryService{
			hrObserverIDsFn: func(ctx context.Context) ([]string, error) {
				return []string{"hr1"}, nil
			},
		}

		d := notification.NewDispatcher(dir, transport)
		delivered := d.Dispatch(ctx, submittedEvent())

		assert.Equal(t, 4, delivered)
	})

	t.Run("failed recipient lookup skips only that recipient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		transport := mock.NewMockTransport(ctrl)
		transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(2)

		dir := &fakeDirectoryService{
			getUserFn: func(ctx context.Context, userID string) (directory.UserInfo, error) {
				if userID == "a" {
					return directory.UserInfo{}, directoryerrors.ErrUserNotFound
				}
				return directory.UserInfo{ID: userID}, nil
			},
		}

		d := notification.NewDispatcher(dir, transport)
		delivered := d.Dispatch(ctx, submittedEvent())

		assert.Equal(t, 2, delivered)
	})

	t.Run("failed delivery does not block remaining recipients", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		transport := mock.NewMockTransport(ctrl)
		first := transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("smtp unavailable"))
		transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(2).
			After(first)

		d := notification.NewDispatcher(&fakeDirectoryService{}, transport)
		delivered := d.Dispatch(ctx, submittedEvent())

		assert.Equal(t, 2, delivered)
	})

	t.Run("hr observer resolution failure degrades gracefully", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		transport := mock.NewMockTransport(ctrl)
		transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(3)

		dir := &fakeDirectoryService{
			hrObserverIDsFn: func(ctx context.Context) ([]string, error) {
				return nil, errors.New("redis down")
			},
		}

		d := notification.NewDispatcher(dir, transport)
		delivered := d.Dispatch(ctx, submittedEvent())

		assert.Equal(t, 3, delivered)
	})
}
