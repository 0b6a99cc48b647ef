package leaverequest

import (
	"time"

	"github.com/google/uuid"
)

type LeaveRequest struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestNumber string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_leave_requests_number"`
	RequesterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_leave_requests_requester_date_active,where:status <> 'REJECTED'"`

	LeaveKind string    `gorm:"type:varchar(20);not null"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_leave_requests_requester_date_active,where:status <> 'REJECTED'"`
	Reason    string    `gorm:"type:text"`

	// Derived from the slots, never assigned directly by callers.
	Status  string `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_leave_requests_status"`
	Version int    `gorm:"not null;default:1"`

	Approvers []ApproverSlot `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveRequest) TableName() string { return "leave_requests" }

// ProxyInfo records who actually decided a slot when it was not the
// designated approver. The slot keeps its approver_id for audit.
type ProxyInfo struct {
	ActorID   uuid.UUID `gorm:"column:actor_id;type:uuid"`
	ActorName string    `gorm:"column:actor_name;type:varchar(120)"`
}

type ApproverSlot struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index:idx_approver_slots_request"`
	Step       int       `gorm:"not null"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null"`

	Status    string     `gorm:"type:varchar(20);not null;default:'PENDING'"`
	DecidedAt *time.Time `gorm:"type:timestamptz"`
	Proxy     *ProxyInfo `gorm:"embedded;embeddedPrefix:proxy_"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ApproverSlot) TableName() string { return "approver_slots" }
