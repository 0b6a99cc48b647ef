package leaverequest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leaveflow/internal/directory"
	"leaveflow/internal/events"
	leaverequesterrors "leaveflow/internal/leaverequest/errors"
	"leaveflow/internal/messaging/kafka"
	"leaveflow/internal/shared/contextutil"
	"leaveflow/internal/shared/counter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxDecideAttempts bounds the re-read-and-reapply loop on version conflicts.
const maxDecideAttempts = 3

// AuthzContext carries the acting user's identity and capability flags into
// the engine explicitly, instead of ambient role lookups in handlers.
type AuthzContext struct {
	ActorID   string
	ActorName string
	IsAdmin   bool
}

//go:generate mockgen -source=request_service.go -destination=mock/request_service_mock.go -package=mock
type Service interface {
	Submit(ctx context.Context, requesterID string, req SubmitLeaveRequest) (LeaveRequestResponse, error)
	GetAll(ctx context.Context, actorID string, canReadAll bool) ([]LeaveRequestResponse, error)
	GetByID(ctx context.Context, id string) (LeaveRequestResponse, error)
	Decide(ctx context.Context, id string, req DecideRequest, authz AuthzContext) (LeaveRequestResponse, error)
	Cancel(ctx context.Context, id string, authz AuthzContext) error
}

type service struct {
	db      *sql.DB
	repo    Repository
	dir     directory.Service
	counter counter.Repository
	outbox  kafka.OutboxRepository
	logger  *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	dir directory.Service,
	counterRepo counter.Repository,
	outboxRepo kafka.OutboxRepository,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leaverequest.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leaverequest.service")
	}
	return &service{
		db:      db,
		repo:    repo,
		dir:     dir,
		counter: counterRepo,
		outbox:  outboxRepo,
		logger:  l,
	}
}

func (s *service) Submit(ctx context.Context, requesterID string, req SubmitLeaveRequest) (LeaveRequestResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("submit leave request requested",
		zap.String("request_id", rid),
		zap.String("requester_id", requesterID),
		zap.String("leave_kind", req.LeaveKind),
		zap.String("date", req.Date),
	)

	requesterUUID, date, err := validateSubmitRequest(requesterID, req)
	if err != nil {
		s.logger.Warn("submit leave request validation failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	// Directory reads stay outside the transaction; only the request write
	// needs atomicity.
	groups := make([]GroupMembers, 0, len(req.GroupIDs))
	for _, groupID := range req.GroupIDs {
		members, err := s.dir.MembersOf(ctx, groupID)
		if err != nil {
			s.logger.Error("submit resolve group members failed",
				zap.String("group_id", groupID),
				zap.Error(err),
			)
			return LeaveRequestResponse{}, err
		}
		groups = append(groups, GroupMembers{GroupID: groupID, MemberIDs: members})
	}

	finalApproverID, err := s.dir.FinalApproverID(ctx)
	if err != nil {
		s.logger.Error("submit resolve final approver failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	plan, err := ResolveApprovers(groups, req.ManualApproverIDs, finalApproverID)
	if err != nil {
		s.logger.Warn("submit resolve approvers failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("submit begin tx failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	active, err := qtx.HasActiveRequestOnDate(ctx, requesterID, date)
	if err != nil {
		s.logger.Error("submit duplicate check failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	if active {
		s.logger.Warn("submit duplicate date detected",
			zap.String("requester_id", requesterID),
			zap.String("date", req.Date),
		)
		return LeaveRequestResponse{}, leaverequesterrors.ErrDuplicateDateRequest
	}

	nextVal, err := s.counter.GetNextValue(ctx, "leave_request_number")
	if err != nil {
		s.logger.Error("submit generate request number failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	now := time.Now().UTC()
	request := &LeaveRequest{
		ID:            uuid.New(),
		RequestNumber: fmt.Sprintf("LR-%06d", nextVal),
		RequesterID:   requesterUUID,
		LeaveKind:     req.LeaveKind,
		Date:          date,
		Reason:        req.Reason,
		Status:        StatusPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, approverID := range plan.Step1 {
		request.Approvers = append(request.Approvers, ApproverSlot{
			ID:         uuid.New(),
			RequestID:  request.ID,
			Step:       StepGroupApprovers,
			ApproverID: uuid.MustParse(approverID),
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if plan.Step2 != "" {
		request.Approvers = append(request.Approvers, ApproverSlot{
			ID:         uuid.New(),
			RequestID:  request.ID,
			Step:       StepFinalApprover,
			ApproverID: uuid.MustParse(plan.Step2),
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := qtx.Create(ctx, request); err != nil {
		if isDuplicateDateViolation(err) {
			return LeaveRequestResponse{}, leaverequesterrors.ErrDuplicateDateRequest
		}
		s.logger.Error("submit persist failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	event := s.buildTransitionEvent(events.EventLeaveRequestSubmitted, request, rid)
	event.PrevStatus = ""
	if err := s.queueTransitionEvent(ctx, tx, request.ID.String(), event); err != nil {
		return LeaveRequestResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("submit commit failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	s.logger.Info("submit leave request success",
		zap.String("request_id", rid),
		zap.String("leave_request_id", request.ID.String()),
		zap.String("request_number", request.RequestNumber),
		zap.Int("step1_slots", len(plan.Step1)),
		zap.Bool("has_final_step", plan.Step2 != ""),
	)

	return mapToResponse(*request), nil
}

func (s *service) GetAll(ctx context.Context, actorID string, canReadAll bool) ([]LeaveRequestResponse, error) {
	var (
		reqs []LeaveRequest
		err  error
	)
	if canReadAll {
		reqs, err = s.repo.FindAll(ctx)
	} else {
		reqs, err = s.repo.FindAllByRequester(ctx, actorID)
	}
	if err != nil {
		return nil, err
	}
	return mapToListResponse(reqs), nil
}

func (s *service) GetByID(ctx context.Context, id string) (LeaveRequestResponse, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveRequestResponse{}, leaverequesterrors.ErrRequestNotFound
		}
		return LeaveRequestResponse{}, err
	}
	return mapToResponse(*req), nil
}

func (s *service) Decide(ctx context.Context, id string, req DecideRequest, authz AuthzContext) (LeaveRequestResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxDecideAttempts; attempt++ {
		resp, err := s.decideOnce(ctx, id, req, authz)
		if !errors.Is(err, leaverequesterrors.ErrConcurrentModification) {
			return resp, err
		}
		lastErr = err
		s.logger.Warn("decide version conflict, retrying",
			zap.String("leave_request_id", id),
			zap.Int("attempt", attempt),
		)
	}
	return LeaveRequestResponse{}, lastErr
}

func (s *service) decideOnce(ctx context.Context, id string, req DecideRequest, authz AuthzContext) (LeaveRequestResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("decide requested",
		zap.String("request_id", rid),
		zap.String("leave_request_id", id),
		zap.String("slot_approver_id", req.ApproverID),
		zap.String("acting_user_id", authz.ActorID),
	)

	if _, err := uuid.Parse(id); err != nil {
		return LeaveRequestResponse{}, leaverequesterrors.ErrRequestNotFound
	}
	if _, err := uuid.Parse(req.ApproverID); err != nil {
		return LeaveRequestResponse{}, leaverequesterrors.ErrInvalidApproverID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("decide begin tx failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	request, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveRequestResponse{}, leaverequesterrors.ErrRequestNotFound
		}
		return LeaveRequestResponse{}, err
	}

	if IsTerminal(request.Status) {
		return LeaveRequestResponse{}, leaverequesterrors.ErrRequestAlreadyTerminal
	}

	slot := findPendingSlot(request.Approvers, req.ApproverID)
	if slot == nil {
		return LeaveRequestResponse{}, leaverequesterrors.ErrNoPendingSlotForApprover
	}

	if authz.ActorID != req.ApproverID {
		allowed, err := s.proxyAllowed(ctx, authz)
		if err != nil {
			return LeaveRequestResponse{}, err
		}
		if !allowed {
			// Security-relevant: surfaced distinctly and always logged.
			s.logger.Warn("proxy decision denied",
				zap.String("leave_request_id", id),
				zap.String("slot_approver_id", req.ApproverID),
				zap.String("acting_user_id", authz.ActorID),
			)
			return LeaveRequestResponse{}, leaverequesterrors.ErrProxyNotAuthorized
		}
		slot.Proxy = &ProxyInfo{
			ActorID:   uuid.MustParse(authz.ActorID),
			ActorName: authz.ActorName,
		}
	}

	now := time.Now().UTC()
	slot.DecidedAt = &now
	if *req.Approved {
		slot.Status = StatusApproved
	} else {
		slot.Status = StatusRejected
	}

	prevStatus := request.Status
	newStatus := DeriveStatus(request.Approvers)

	if err := qtx.UpdateSlotDecision(ctx, slot); err != nil {
		s.logger.Error("decide slot persist failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	if err := qtx.UpdateStatusWithVersion(ctx, id, newStatus, request.Version); err != nil {
		return LeaveRequestResponse{}, err
	}

	event := s.buildTransitionEvent(events.EventLeaveRequestDecided, request, rid)
	event.PrevStatus = prevStatus
	event.NewStatus = newStatus
	event.Step1Completed = stepOneJustCompleted(request.Approvers, slot.Step, newStatus)
	event.ActingUserID = authz.ActorID
	event.ActingUserName = authz.ActorName
	decided := snapshotSlot(*slot)
	event.DecidedSlot = &decided
	if err := s.queueTransitionEvent(ctx, tx, id, event); err != nil {
		return LeaveRequestResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("decide commit failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	request.Status = newStatus
	request.Version++
	s.logger.Info("decide success",
		zap.String("request_id", rid),
		zap.String("leave_request_id", id),
		zap.String("slot_approver_id", req.ApproverID),
		zap.Bool("approved", *req.Approved),
		zap.String("from_status", prevStatus),
		zap.String("to_status", newStatus),
		zap.Bool("step1_completed", event.Step1Completed),
	)

	return mapToResponse(*request), nil
}

func (s *service) Cancel(ctx context.Context, id string, authz AuthzContext) error {
	rid := contextutil.GetRequestID(ctx)

	if _, err := uuid.Parse(id); err != nil {
		return leaverequesterrors.ErrRequestNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cancel begin tx failed", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	request, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return leaverequesterrors.ErrRequestNotFound
		}
		return err
	}

	if IsTerminal(request.Status) {
		return leaverequesterrors.ErrRequestAlreadyTerminal
	}
	if request.RequesterID.String() != authz.ActorID && !authz.IsAdmin {
		return leaverequesterrors.ErrNotRequestOwner
	}

	event := s.buildTransitionEvent(events.EventLeaveRequestCancelled, request, rid)
	event.PrevStatus = request.Status
	event.NewStatus = ""
	event.ActingUserID = authz.ActorID
	event.ActingUserName = authz.ActorName
	if err := s.queueTransitionEvent(ctx, tx, id, event); err != nil {
		return err
	}

	if err := qtx.DeleteWithVersion(ctx, id, request.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cancel commit failed", zap.Error(err))
		return err
	}
	s.logger.Info("cancel success",
		zap.String("request_id", rid),
		zap.String("leave_request_id", id),
		zap.String("acting_user_id", authz.ActorID),
	)
	return nil
}

func (s *service) proxyAllowed(ctx context.Context, authz AuthzContext) (bool, error) {
	if authz.IsAdmin {
		return true, nil
	}
	return s.dir.IsLeaveManager(ctx, authz.ActorID)
}

func (s *service) buildTransitionEvent(eventType string, request *LeaveRequest, traceID string) events.WorkflowTransitionEvent {
	return events.WorkflowTransitionEvent{
		EventType:      eventType,
		TraceID:        traceID,
		LeaveRequestID: request.ID.String(),
		RequestNumber:  request.RequestNumber,
		RequesterID:    request.RequesterID.String(),
		LeaveKind:      request.LeaveKind,
		Date:           request.Date.Format("2006-01-02"),
		PrevStatus:     request.Status,
		NewStatus:      request.Status,
		Slots:          snapshotSlots(request.Approvers),
		OccurredAt:     time.Now().UTC(),
	}
}

func (s *service) queueTransitionEvent(ctx context.Context, tx *sql.Tx, requestID string, event events.WorkflowTransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal transition event failed", zap.Error(err))
		return err
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		TraceID:       event.TraceID,
		AggregateType: "leave_request",
		AggregateID:   requestID,
		EventType:     event.EventType,
		Topic:         events.LeaveWorkflowTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("transition event outbox persist failed",
			zap.String("leave_request_id", requestID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func findPendingSlot(slots []ApproverSlot, approverID string) *ApproverSlot {
	for i := range slots {
		if slots[i].ApproverID.String() == approverID && slots[i].Status == StatusPending {
			return &slots[i]
		}
	}
	return nil
}

func snapshotSlot(slot ApproverSlot) events.SlotSnapshot {
	snap := events.SlotSnapshot{
		Step:       slot.Step,
		ApproverID: slot.ApproverID.String(),
		Status:     slot.Status,
	}
	if slot.Proxy != nil {
		snap.ProxyActorID = slot.Proxy.ActorID.String()
		snap.ProxyActorName = slot.Proxy.ActorName
	}
	return snap
}

func snapshotSlots(slots []ApproverSlot) []events.SlotSnapshot {
	snaps := make([]events.SlotSnapshot, len(slots))
	for i, slot := range slots {
		snaps[i] = snapshotSlot(slot)
	}
	return snaps
}

func validateSubmitRequest(requesterID string, req SubmitLeaveRequest) (uuid.UUID, time.Time, error) {
	requesterUUID, err := uuid.Parse(requesterID)
	if err != nil {
		return uuid.Nil, time.Time{}, leaverequesterrors.ErrInvalidRequesterID
	}
	switch req.LeaveKind {
	case KindVacation, KindLate, KindEarly:
	default:
		return uuid.Nil, time.Time{}, leaverequesterrors.ErrInvalidLeaveKind
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return uuid.Nil, time.Time{}, leaverequesterrors.ErrInvalidDateFormat
	}
	for _, groupID := range req.GroupIDs {
		if _, err := uuid.Parse(groupID); err != nil {
			return uuid.Nil, time.Time{}, leaverequesterrors.ErrInvalidGroupID
		}
	}
	for _, approverID := range req.ManualApproverIDs {
		if _, err := uuid.Parse(approverID); err != nil {
			return uuid.Nil, time.Time{}, leaverequesterrors.ErrInvalidApproverID
		}
	}
	return requesterUUID, date, nil
}

// duplicateDateIndex is the partial unique index on (requester_id, date)
// excluding rejected rows. It backs the in-tx guard against submit races;
// other unique violations (the request number index) are not duplicate dates
// and must surface as-is.
const duplicateDateIndex = "idx_leave_requests_requester_date_active"

func isDuplicateDateViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == duplicateDateIndex
}

// mapToResponse re-derives the aggregate status from the slots so every read
// path reports the same value decide() computed.
func mapToResponse(req LeaveRequest) LeaveRequestResponse {
	resp := LeaveRequestResponse{
		ID:            req.ID.String(),
		RequestNumber: req.RequestNumber,
		RequesterID:   req.RequesterID.String(),
		LeaveKind:     req.LeaveKind,
		Date:          req.Date.Format("2006-01-02"),
		Reason:        req.Reason,
		Status:        DeriveStatus(req.Approvers),
		CreatedAt:     req.CreatedAt.Format(time.RFC3339),
	}
	for _, slot := range req.Approvers {
		slotResp := ApproverSlotResponse{
			Step:       slot.Step,
			ApproverID: slot.ApproverID.String(),
			Status:     slot.Status,
		}
		if slot.DecidedAt != nil {
			v := slot.DecidedAt.Format(time.RFC3339)
			slotResp.DecidedAt = &v
		}
		if slot.Proxy != nil {
			slotResp.Proxy = &ProxyInfoResponse{
				ActorID:   slot.Proxy.ActorID.String(),
				ActorName: slot.Proxy.ActorName,
			}
		}
		resp.Approvers = append(resp.Approvers, slotResp)
	}
	return resp
}

func mapToListResponse(reqs []LeaveRequest) []LeaveRequestResponse {
	resp := make([]LeaveRequestResponse, len(reqs))
	for i, req := range reqs {
		resp[i] = mapToResponse(req)
	}
	return resp
}
