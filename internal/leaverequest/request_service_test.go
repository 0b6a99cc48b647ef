package leaverequest_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"leaveflow/internal/directory"
	"leaveflow/internal/events"
	"leaveflow/internal/leaverequest"
	leaverequesterrors "leaveflow/internal/leaverequest/errors"
	"leaveflow/internal/messaging/kafka"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type fakeRequestRepository struct {
	withTxFn                  func(tx *sql.Tx) leaverequest.Repository
	createFn                  func(ctx context.Context, req *leaverequest.LeaveRequest) error
	findByIDFn                func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error)
	findAllByRequesterFn      func(ctx context.Context, requesterID string) ([]leaverequest.LeaveRequest, error)
	findAllFn                 func(ctx context.Context) ([]leaverequest.LeaveRequest, error)
	hasActiveRequestOnDateFn  func(ctx context.Context, requesterID string, date time.Time) (bool, error)
	updateSlotDecisionFn      func(ctx context.Context, slot *leaverequest.ApproverSlot) error
	updateStatusWithVersionFn func(ctx context.Context, id, status string, expectedVersion int) error
	deleteWithVersionFn       func(ctx context.Context, id string, expectedVersion int) error
}

func (f *fakeRequestRepository) WithTx(tx *sql.Tx) leaverequest.Repository {
	if f.withTxFn != nil {
		return f.withTxFn(tx)
	}
	return f
}

func (f *fakeRequestRepository) Create(ctx context.Context, req *leaverequest.LeaveRequest) error {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return nil
}

func (f *fakeRequestRepository) FindByID(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRequestRepository) FindAllByRequester(ctx context.Context, requesterID string) ([]leaverequest.LeaveRequest, error) {
	if f.findAllByRequesterFn != nil {
		return f.findAllByRequesterFn(ctx, requesterID)
	}
	return nil, nil
}

func (f *fakeRequestRepository) FindAll(ctx context.Context) ([]leaverequest.LeaveRequest, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeRequestRepository) HasActiveRequestOnDate(ctx context.Context, requesterID string, date time.Time) (bool, error) {
	if f.hasActiveRequestOnDateFn != nil {
		return f.hasActiveRequestOnDateFn(ctx, requesterID, date)
	}
	return false, nil
}

func (f *fakeRequestRepository) UpdateSlotDecision(ctx context.Context, slot *leaverequest.ApproverSlot) error {
	if f.updateSlotDecisionFn != nil {
		return f.updateSlotDecisionFn(ctx, slot)
	}
	return nil
}

func (f *fakeRequestRepository) UpdateStatusWithVersion(ctx context.Context, id, status string, expectedVersion int) error {
	if f.updateStatusWithVersionFn != nil {
		return f.updateStatusWithVersionFn(ctx, id, status, expectedVersion)
	}
	return nil
}

func (f *fakeRequestRepository) DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error {
	if f.deleteWithVersionFn != nil {
		return f.deleteWithVersionFn(ctx, id, expectedVersion)
	}
	return nil
}

type fakeDirectoryService struct {
	membersOfFn       func(ctx context.Context, groupID string) ([]string, error)
	getUserFn         func(ctx context.Context, userID string) (directory.UserInfo, error)
	isLeaveManagerFn  func(ctx context.Context, userID string) (bool, error)
	finalApproverIDFn func(ctx context.Context) (string, error)
	hrObserverIDsFn   func(ctx context.Context) ([]string, error)
}

func (f *fakeDirectoryService) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	if f.membersOfFn != nil {
		return f.membersOfFn(ctx, groupID)
	}
	return nil, nil
}

func (f *fakeDirectoryService) GetUser(ctx context.Context, userID string) (directory.UserInfo, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, userID)
	}
	return directory.UserInfo{ID: userID}, nil
}

func (f *fakeDirectoryService) IsLeaveManager(ctx context.Context, userID string) (bool, error) {
	if f.isLeaveManagerFn != nil {
		return f.isLeaveManagerFn(ctx, userID)
	}
	return false, nil
}

func (f *fakeDirectoryService) FinalApproverID(ctx context.Context) (string, error) {
	if f.finalApproverIDFn != nil {
		return f.finalApproverIDFn(ctx)
	}
	return "", nil
}

func (f *fakeDirectoryService) HRObserverIDs(ctx context.Context) ([]string, error) {
	if f.hrObserverIDsFn != nil {
		return f.hrObserverIDsFn(ctx)
	}
	return nil, nil
}

type fakeCounterRepository struct {
	getNextValueFn func(ctx context.Context, counterType string) (int64, error)
}

func (f *fakeCounterRepository) GetNextValue(ctx context.Context, counterType string) (int64, error) {
	if f.getNextValueFn != nil {
		return f.getNextValueFn(ctx, counterType)
	}
	return 1, nil
}

type fakeOutboxRepository struct {
	created  []kafka.OutboxEvent
	createFn func(ctx context.Context, event kafka.OutboxEvent) error
}

func (f *fakeOutboxRepository) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }

func (f *fakeOutboxRepository) Create(ctx context.Context, event kafka.OutboxEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	f.created = append(f.created, event)
	return nil
}

func (f *fakeOutboxRepository) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepository) MarkSent(ctx context.Context, id string) error { return nil }

func (f *fakeOutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return nil
}

type requestServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service leaverequest.Service
	repo    *fakeRequestRepository
	dir     *fakeDirectoryService
	counter *fakeCounterRepository
	outbox  *fakeOutboxRepository
}

func setupRequestServiceTest(t *testing.T) *requestServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeRequestRepository{}
	dir := &fakeDirectoryService{}
	counterRepo := &fakeCounterRepository{}
	outbox := &fakeOutboxRepository{}
	svc := leaverequest.NewService(db, repo, dir, counterRepo, outbox)

	return &requestServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: svc,
		repo:    repo,
		dir:     dir,
		counter: counterRepo,
		outbox:  outbox,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func lastQueuedEvent(t *testing.T, outbox *fakeOutboxRepository) events.WorkflowTransitionEvent {
	t.Helper()
	assert.NotEmpty(t, outbox.created)

	var event events.WorkflowTransitionEvent
	assert.NoError(t, json.Unmarshal(outbox.created[len(outbox.created)-1].Payload, &event))
	return event
}

func TestLeaveRequestService_Submit(t *testing.T) {
	ctx := context.Background()
	requesterID := uuid.New().String()
	groupID := uuid.New().String()
	memberA := uuid.New().String()
	memberB := uuid.New().String()
	president := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		req := leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "2026-09-14",
			Reason:    "Family event",
			GroupIDs:  []string{groupID},
		}

		deps.dir.membersOfFn = func(ctx context.Context, gid string) ([]string, error) {
			assert.Equal(t, groupID, gid)
			return []string{memberA, memberB}, nil
		}
		deps.dir.finalApproverIDFn = func(ctx context.Context) (string, error) {
			return president, nil
		}
		deps.counter.getNextValueFn = func(ctx context.Context, counterType string) (int64, error) {
			assert.Equal(t, "leave_request_number", counterType)
			return 42, nil
		}
		deps.repo.createFn = func(ctx context.Context, r *leaverequest.LeaveRequest) error {
			assert.Equal(t, "LR-000042", r.RequestNumber)
			assert.Equal(t, uuid.MustParse(requesterID), r.RequesterID)
			assert.Equal(t, leaverequest.StatusPending, r.Status)
			assert.Equal(t, 1, r.Version)
			assert.False(t, r.CreatedAt.IsZero())
			assert.Len(t, r.Approvers, 3)
			assert.Equal(t, leaverequest.StepGroupApprovers, r.Approvers[0].Step)
			assert.Equal(t, leaverequest.StepGroupApprovers, r.Approvers[1].Step)
			assert.Equal(t, leaverequest.StepFinalApprover, r.Approvers[2].Step)
			assert.Equal(t, uuid.MustParse(president), r.Approvers[2].ApproverID)
			return nil
		}

		resp, err := deps.service.Submit(ctx, requesterID, req)

		assert.NoError(t, err)
		assert.Equal(t, "LR-000042", resp.RequestNumber)
		assert.Equal(t, leaverequest.StatusPending, resp.Status)
		assert.Len(t, resp.Approvers, 3)
		createdAt, parseErr := time.Parse(time.RFC3339, resp.CreatedAt)
		assert.NoError(t, parseErr)
		assert.False(t, createdAt.IsZero())

		event := lastQueuedEvent(t, deps.outbox)
		assert.Equal(t, events.EventLeaveRequestSubmitted, event.EventType)
		assert.Equal(t, "2026-09-14", event.Date)
		assert.Len(t, event.Slots, 3)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - final approver already a group member has no second step", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		deps.dir.membersOfFn = func(ctx context.Context, gid string) ([]string, error) {
			return []string{memberA, president}, nil
		}
		deps.dir.finalApproverIDFn = func(ctx context.Context) (string, error) {
			return president, nil
		}
		deps.repo.createFn = func(ctx context.Context, r *leaverequest.LeaveRequest) error {
			assert.Len(t, r.Approvers, 2)
			for _, slot := range r.Approvers {
				assert.Equal(t, leaverequest.StepGroupApprovers, slot.Step)
			}
			return nil
		}

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindLate,
			Date:      "2026-09-15",
			GroupIDs:  []string{groupID},
		})

		assert.NoError(t, err)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - duplicate date", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.dir.membersOfFn = func(ctx context.Context, gid string) ([]string, error) {
			return []string{memberA}, nil
		}
		deps.repo.hasActiveRequestOnDateFn = func(ctx context.Context, rid string, date time.Time) (bool, error) {
			assert.Equal(t, requesterID, rid)
			assert.Equal(t, "2026-09-14", date.Format("2006-01-02"))
			return true, nil
		}

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "2026-09-14",
			GroupIDs:  []string{groupID},
		})

		assert.ErrorIs(t, err, leaverequesterrors.ErrDuplicateDateRequest)
		assert.Empty(t, deps.outbox.created)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - duplicate date race caught by unique index", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.dir.membersOfFn = func(ctx context.Context, gid string) ([]string, error) {
			return []string{memberA}, nil
		}
		deps.repo.createFn = func(ctx context.Context, r *leaverequest.LeaveRequest) error {
			return &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "idx_leave_requests_requester_date_active",
			}
		}

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "2026-09-14",
			GroupIDs:  []string{groupID},
		})

		assert.ErrorIs(t, err, leaverequesterrors.ErrDuplicateDateRequest)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - other unique violation is not a duplicate date", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.dir.membersOfFn = func(ctx context.Context, gid string) ([]string, error) {
			return []string{memberA}, nil
		}
		deps.repo.createFn = func(ctx context.Context, r *leaverequest.LeaveRequest) error {
			return &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "idx_leave_requests_number",
			}
		}

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "2026-09-14",
			GroupIDs:  []string{groupID},
		})

		assert.Error(t, err)
		assert.NotErrorIs(t, err, leaverequesterrors.ErrDuplicateDateRequest)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - no approvers selected", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "2026-09-14",
		})

		assert.ErrorIs(t, err, leaverequesterrors.ErrNoApproversSelected)
	})

	t.Run("negative - invalid leave kind", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: "SABBATICAL",
			Date:      "2026-09-14",
			GroupIDs:  []string{groupID},
		})

		assert.ErrorIs(t, err, leaverequesterrors.ErrInvalidLeaveKind)
	})

	t.Run("negative - invalid date format", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Submit(ctx, requesterID, leaverequest.SubmitLeaveRequest{
			LeaveKind: leaverequest.KindVacation,
			Date:      "14-09-2026",
			GroupIDs:  []string{groupID},
		})

		assert.ErrorIs(t, err, leaverequesterrors.ErrInvalidDateFormat)
	})
}

func pendingRequest(requesterID uuid.UUID, slots ...leaverequest.ApproverSlot) *leaverequest.LeaveRequest {
	return &leaverequest.LeaveRequest{
		ID:            uuid.New(),
		RequestNumber: "LR-000007",
		RequesterID:   requesterID,
		LeaveKind:     leaverequest.KindVacation,
		Date:          time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Status:        leaverequest.StatusPending,
		Version:       1,
		Approvers:     slots,
	}
}

func approved(b bool) *bool { return &b }

func TestLeaveRequestService_Decide(t *testing.T) {
	ctx := context.Background()
	requesterID := uuid.New()
	approverA := uuid.New()
	approverB := uuid.New()
	president := uuid.New()

	t.Run("success - first group approval keeps request pending", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
			slotFor(1, approverB, leaverequest.StatusPending),
			slotFor(2, president, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}
		deps.repo.updateStatusWithVersionFn = func(ctx context.Context, id, status string, expectedVersion int) error {
			assert.Equal(t, leaverequest.StatusPending, status)
			assert.Equal(t, 1, expectedVersion)
			return nil
		}

		resp, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.NoError(t, err)
		assert.Equal(t, leaverequest.StatusPending, resp.Status)

		event := lastQueuedEvent(t, deps.outbox)
		assert.Equal(t, events.EventLeaveRequestDecided, event.EventType)
		assert.False(t, event.Step1Completed)
		assert.Equal(t, leaverequest.StatusApproved, event.DecidedSlot.Status)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - last group approval flags step one complete", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusApproved),
			slotFor(1, approverB, leaverequest.StatusPending),
			slotFor(2, president, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		resp, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverB.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverB.String()},
		)

		assert.NoError(t, err)
		assert.Equal(t, leaverequest.StatusPending, resp.Status)

		event := lastQueuedEvent(t, deps.outbox)
		assert.True(t, event.Step1Completed)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - final approval approves the request", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusApproved),
			slotFor(2, president, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}
		deps.repo.updateStatusWithVersionFn = func(ctx context.Context, id, status string, expectedVersion int) error {
			assert.Equal(t, leaverequest.StatusApproved, status)
			return nil
		}

		resp, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: president.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: president.String()},
		)

		assert.NoError(t, err)
		assert.Equal(t, leaverequest.StatusApproved, resp.Status)

		event := lastQueuedEvent(t, deps.outbox)
		assert.Equal(t, leaverequest.StatusApproved, event.NewStatus)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - single rejection rejects immediately", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
			slotFor(1, approverB, leaverequest.StatusPending),
			slotFor(2, president, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		resp, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(false)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.NoError(t, err)
		assert.Equal(t, leaverequest.StatusRejected, resp.Status)

		event := lastQueuedEvent(t, deps.outbox)
		assert.Equal(t, leaverequest.StatusRejected, event.NewStatus)
		assert.False(t, event.Step1Completed)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - leave manager decides by proxy", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		manager := uuid.New()
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}
		deps.dir.isLeaveManagerFn = func(ctx context.Context, userID string) (bool, error) {
			assert.Equal(t, manager.String(), userID)
			return true, nil
		}
		deps.repo.updateSlotDecisionFn = func(ctx context.Context, slot *leaverequest.ApproverSlot) error {
			assert.NotNil(t, slot.Proxy)
			assert.Equal(t, manager, slot.Proxy.ActorID)
			assert.Equal(t, "Riko Tanaka", slot.Proxy.ActorName)
			return nil
		}

		resp, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: manager.String(), ActorName: "Riko Tanaka"},
		)

		assert.NoError(t, err)
		assert.NotNil(t, resp.Approvers[0].Proxy)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - proxy without capability", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		_, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: uuid.New().String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrProxyNotAuthorized)
		assert.Empty(t, deps.outbox.created)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - request already terminal", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusRejected),
		)
		request.Status = leaverequest.StatusRejected
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		_, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrRequestAlreadyTerminal)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - no pending slot for approver", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusApproved),
			slotFor(2, president, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		_, err := deps.service.Decide(ctx, request.ID.String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrNoPendingSlotForApprover)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - version conflict exhausts retries", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		for i := 0; i < 3; i++ {
			expectTx(t, deps.sqlMock, false)
		}
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return pendingRequest(requesterID,
				slotFor(1, approverA, leaverequest.StatusPending),
			), nil
		}
		deps.repo.updateStatusWithVersionFn = func(ctx context.Context, id, status string, expectedVersion int) error {
			return leaverequesterrors.ErrConcurrentModification
		}

		_, err := deps.service.Decide(ctx, uuid.New().String(),
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrConcurrentModification)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - unknown request id", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Decide(ctx, "not-a-uuid",
			leaverequest.DecideRequest{ApproverID: approverA.String(), Approved: approved(true)},
			leaverequest.AuthzContext{ActorID: approverA.String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrRequestNotFound)
	})
}

func TestLeaveRequestService_Cancel(t *testing.T) {
	ctx := context.Background()
	requesterID := uuid.New()
	approverA := uuid.New()

	t.Run("success - owner cancels pending request", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		deleted := false
		deps.repo.deleteWithVersionFn = func(ctx context.Context, id string, expectedVersion int) error {
			assert.Equal(t, request.ID.String(), id)
			assert.Equal(t, 1, expectedVersion)
			deleted = true
			return nil
		}

		err := deps.service.Cancel(ctx, request.ID.String(),
			leaverequest.AuthzContext{ActorID: requesterID.String()},
		)

		assert.NoError(t, err)
		assert.True(t, deleted)

		event := lastQueuedEvent(t, deps.outbox)
		assert.Equal(t, events.EventLeaveRequestCancelled, event.EventType)
		assert.Equal(t, leaverequest.StatusPending, event.PrevStatus)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - admin cancels someone else's request", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		err := deps.service.Cancel(ctx, request.ID.String(),
			leaverequest.AuthzContext{ActorID: uuid.New().String(), IsAdmin: true},
		)

		assert.NoError(t, err)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - not the owner", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusPending),
		)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		err := deps.service.Cancel(ctx, request.ID.String(),
			leaverequest.AuthzContext{ActorID: uuid.New().String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrNotRequestOwner)
		assert.Empty(t, deps.outbox.created)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative - already terminal", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		request := pendingRequest(requesterID,
			slotFor(1, approverA, leaverequest.StatusApproved),
		)
		request.Status = leaverequest.StatusApproved
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leaverequest.LeaveRequest, error) {
			return request, nil
		}

		err := deps.service.Cancel(ctx, request.ID.String(),
			leaverequest.AuthzContext{ActorID: requesterID.String()},
		)

		assert.ErrorIs(t, err, leaverequesterrors.ErrRequestAlreadyTerminal)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})
}

func TestLeaveRequestService_GetAll(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New().String()

	t.Run("success - own requests only", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		deps.repo.findAllByRequesterFn = func(ctx context.Context, requesterID string) ([]leaverequest.LeaveRequest, error) {
			assert.Equal(t, actorID, requesterID)
			return []leaverequest.LeaveRequest{
				*pendingRequest(uuid.MustParse(actorID), slotFor(1, uuid.New(), leaverequest.StatusPending)),
			}, nil
		}

		resp, err := deps.service.GetAll(ctx, actorID, false)

		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, actorID, resp[0].RequesterID)
	})

	t.Run("success - reader with full access sees everything", func(t *testing.T) {
		deps := setupRequestServiceTest(t)
		defer deps.db.Close()

		deps.repo.findAllFn = func(ctx context.Context) ([]leaverequest.LeaveRequest, error) {
			return []leaverequest.LeaveRequest{
				*pendingRequest(uuid.New(), slotFor(1, uuid.New(), leaverequest.StatusPending)),
				*pendingRequest(uuid.New(), slotFor(1, uuid.New(), leaverequest.StatusPending)),
			}, nil
		}

		resp, err := deps.service.GetAll(ctx, actorID, true)

		assert.NoError(t, err)
		assert.Len(t, resp, 2)
	})
}

func slotFor(step int, approverID uuid.UUID, status string) leaverequest.ApproverSlot {
	return leaverequest.ApproverSlot{
		ID:         uuid.New(),
		Step:       step,
		ApproverID: approverID,
		Status:     status,
	}
}
