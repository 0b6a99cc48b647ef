package leaverequest

import (
	"context"
	"database/sql"
	"time"

	leaverequesterrors "leaveflow/internal/leaverequest/errors"

	"gorm.io/gorm"
)

//go:generate mockgen -source=request_repo.go -destination=mock/request_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, req *LeaveRequest) error
	FindByID(ctx context.Context, id string) (*LeaveRequest, error)
	FindAllByRequester(ctx context.Context, requesterID string) ([]LeaveRequest, error)
	FindAll(ctx context.Context) ([]LeaveRequest, error)
	HasActiveRequestOnDate(ctx context.Context, requesterID string, date time.Time) (bool, error)
	UpdateSlotDecision(ctx context.Context, slot *ApproverSlot) error
	UpdateStatusWithVersion(ctx context.Context, id, status string, expectedVersion int) error
	DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Create(ctx context.Context, req *LeaveRequest) error {
	exec := r.execer()

	_, err := exec.ExecContext(ctx, `
        INSERT INTO leave_requests (
            id, request_number, requester_id, leave_kind, date, reason, status, version,
            created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `,
		req.ID, req.RequestNumber, req.RequesterID,
		req.LeaveKind, req.Date, req.Reason, req.Status, req.Version,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for i := range req.Approvers {
		slot := &req.Approvers[i]
		_, err := exec.ExecContext(ctx, `
            INSERT INTO approver_slots (
                id, request_id, step, approver_id, status, created_at, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        `,
			slot.ID, req.ID, slot.Step, slot.ApproverID, slot.Status,
			slot.CreatedAt, slot.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*LeaveRequest, error) {
	var req LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Approvers", func(db *gorm.DB) *gorm.DB {
			return db.Order("step ASC, created_at ASC")
		}).
		First(&req, "id = ?", id).Error
	return &req, err
}

func (r *repository) FindAllByRequester(ctx context.Context, requesterID string) ([]LeaveRequest, error) {
	var reqs []LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Approvers", func(db *gorm.DB) *gorm.DB {
			return db.Order("step ASC, created_at ASC")
		}).
		Where("requester_id = ?", requesterID).
		Order("date DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *repository) FindAll(ctx context.Context) ([]LeaveRequest, error) {
	var reqs []LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Approvers", func(db *gorm.DB) *gorm.DB {
			return db.Order("step ASC, created_at ASC")
		}).
		Order("date DESC").
		Find(&reqs).Error
	return reqs, err
}

// HasActiveRequestOnDate implements the duplicate-submission guard: any
// non-rejected request of the requester on the same date blocks a new one.
// Cancelled requests are deleted outright, so they never match.
func (r *repository) HasActiveRequestOnDate(ctx context.Context, requesterID string, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LeaveRequest{}).
		Where("requester_id = ?", requesterID).
		Where("date = ?", date).
		Where("status <> ?", StatusRejected).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateSlotDecision(ctx context.Context, slot *ApproverSlot) error {
	exec := r.execer()

	var proxyActorID, proxyActorName any
	if slot.Proxy != nil {
		proxyActorID = slot.Proxy.ActorID
		proxyActorName = slot.Proxy.ActorName
	}

	_, err := exec.ExecContext(ctx, `
        UPDATE approver_slots
        SET status = $2,
            decided_at = $3,
            proxy_actor_id = $4,
            proxy_actor_name = $5,
            updated_at = NOW()
        WHERE id = $1
    `,
		slot.ID, slot.Status, slot.DecidedAt, proxyActorID, proxyActorName,
	)
	return err
}

// UpdateStatusWithVersion is the optimistic write that serializes decisions
// on one request. A version mismatch means another decision committed in
// between; the caller re-reads and reapplies rather than merging.
func (r *repository) UpdateStatusWithVersion(ctx context.Context, id, status string, expectedVersion int) error {
	exec := r.execer()

	res, err := exec.ExecContext(ctx, `
        UPDATE leave_requests
        SET status = $2,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1 AND version = $3
    `,
		id, status, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return leaverequesterrors.ErrConcurrentModification
	}
	return nil
}

func (r *repository) DeleteWithVersion(ctx context.Context, id string, expectedVersion int) error {
	exec := r.execer()

	res, err := exec.ExecContext(ctx, `
        DELETE FROM leave_requests
        WHERE id = $1 AND version = $2
    `,
		id, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return leaverequesterrors.ErrConcurrentModification
	}
	return nil
}

func (r *repository) execer() interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db.ConnPool
}
