package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	directoryerrors "leaveflow/internal/directory/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	userCacheKeyPrefix = "directory:user:"
	hrObserversKey     = "directory:hr_observers"
	cacheTTL           = 5 * time.Minute
)

func GetUserCacheKey(userID string) string {
	return userCacheKeyPrefix + userID
}

type UserInfo struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

//go:generate mockgen -source=directory_service.go -destination=mock/directory_service_mock.go -package=mock
type Service interface {
	MembersOf(ctx context.Context, groupID string) ([]string, error)
	GetUser(ctx context.Context, userID string) (UserInfo, error)
	IsLeaveManager(ctx context.Context, userID string) (bool, error)
	FinalApproverID(ctx context.Context) (string, error)
	HRObserverIDs(ctx context.Context) ([]string, error)
}

type service struct {
	repo   Repository
	rdb    *redis.Client
	sf     *singleflight.Group
	logger *zap.Logger
}

func NewService(repo Repository, rdb *redis.Client, logger ...*zap.Logger) Service {
	l := zap.L().Named("directory.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("directory.service")
	}
	return &service{
		repo:   repo,
		rdb:    rdb,
		sf:     &singleflight.Group{},
		logger: l,
	}
}

func (s *service) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	if _, err := s.repo.FindGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directoryerrors.ErrGroupNotFound
		}
		return nil, err
	}
	return s.repo.MemberIDsOf(ctx, groupID)
}

func (s *service) GetUser(ctx context.Context, userID string) (UserInfo, error) {
	cacheKey := GetUserCacheKey(userID)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var info UserInfo
			if json.Unmarshal([]byte(cached), &info) == nil {
				return info, nil
			}
		}
	}

	// Collapse concurrent lookups for the same user into one DB round trip
	v, err, _ := s.sf.Do(cacheKey, func() (any, error) {
		u, err := s.repo.FindUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return UserInfo{}, directoryerrors.ErrUserNotFound
			}
			return UserInfo{}, err
		}

		info := UserInfo{
			ID:       u.ID.String(),
			FullName: u.FullName,
			Email:    u.Email,
			Role:     u.Role,
		}

		if s.rdb != nil {
			if payload, err := json.Marshal(info); err == nil {
				if err := s.rdb.Set(ctx, cacheKey, payload, cacheTTL).Err(); err != nil {
					s.logger.Warn("cache user failed",
						zap.String("key", cacheKey),
						zap.Error(err),
					)
				}
			}
		}

		return info, nil
	})
	if err != nil {
		return UserInfo{}, err
	}

	return v.(UserInfo), nil
}

func (s *service) IsLeaveManager(ctx context.Context, userID string) (bool, error) {
	return s.repo.IsActiveLeaveManager(ctx, userID)
}

// FinalApproverID returns the user holding the president role, or empty when
// the directory has none. An empty result means submissions are resolved
// without a step-2 slot.
func (s *service) FinalApproverID(ctx context.Context) (string, error) {
	ids, err := s.repo.FindUserIDsByRole(ctx, RolePresident)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	if len(ids) > 1 {
		s.logger.Warn("multiple president users configured, using oldest",
			zap.Int("count", len(ids)),
		)
	}
	return ids[0], nil
}

func (s *service) HRObserverIDs(ctx context.Context) ([]string, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, hrObserversKey).Result(); err == nil {
			var ids []string
			if json.Unmarshal([]byte(cached), &ids) == nil {
				return ids, nil
			}
		}
	}

	v, err, _ := s.sf.Do(hrObserversKey, func() (any, error) {
		ids, err := s.repo.FindUserIDsByRole(ctx, RoleHR)
		if err != nil {
			return nil, err
		}

		if s.rdb != nil {
			if payload, err := json.Marshal(ids); err == nil {
				if err := s.rdb.Set(ctx, hrObserversKey, payload, cacheTTL).Err(); err != nil {
					s.logger.Warn("cache hr observers failed", zap.Error(err))
				}
			}
		}

		return ids, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]string), nil
}
