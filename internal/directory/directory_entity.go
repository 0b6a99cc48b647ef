package directory

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleEmployee  = "EMPLOYEE"
	RolePresident = "PRESIDENT"
	RoleHR        = "HR"
	RoleAdmin     = "ADMIN"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName string    `gorm:"type:varchar(120);not null"`
	Email    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email"`
	Role     string    `gorm:"type:varchar(20);not null;default:'EMPLOYEE'"`
	Active   bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_users_deleted_at"`
}

type Group struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name string    `gorm:"type:varchar(120);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_groups_deleted_at"`
}

type GroupMember struct {
	GroupID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_group_members_user"`

	CreatedAt time.Time
}

// LeaveManager marks a user as holder of the proxy-approval capability.
type LeaveManager struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Active bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
