package directory

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=directory_repo.go -destination=mock/directory_repo_mock.go -package=mock
type Repository interface {
	FindUserByID(ctx context.Context, userID string) (*User, error)
	FindGroupByID(ctx context.Context, groupID string) (*Group, error)
	MemberIDsOf(ctx context.Context, groupID string) ([]string, error)
	FindUserIDsByRole(ctx context.Context, role string) ([]string, error)
	IsActiveLeaveManager(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindUserByID(ctx context.Context, userID string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).
		First(&u, "id = ?", userID).Error
	return &u, err
}

func (r *repository) FindGroupByID(ctx context.Context, groupID string) (*Group, error) {
	var g Group
	err := r.db.WithContext(ctx).
		First(&g, "id = ?", groupID).Error
	return &g, err
}

func (r *repository) MemberIDsOf(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("group_members").
		Joins("JOIN users ON users.id = group_members.user_id").
		Where("group_members.group_id = ?", groupID).
		Where("users.active = true").
		Where("users.deleted_at IS NULL").
		Order("group_members.created_at ASC").
		Pluck("group_members.user_id::text", &ids).Error
	return ids, err
}

func (r *repository) FindUserIDsByRole(ctx context.Context, role string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&User{}).
		Where("role = ?", role).
		Where("active = true").
		Order("created_at ASC").
		Pluck("id::text", &ids).Error
	return ids, err
}

func (r *repository) IsActiveLeaveManager(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LeaveManager{}).
		Where("user_id = ?", userID).
		Where("active = true").
		Count(&count).Error
	return count > 0, err
}
