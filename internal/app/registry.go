package app

import (
	"leaveflow/internal/directory"
	"leaveflow/internal/leaverequest"
	"leaveflow/internal/messaging/kafka"
	"leaveflow/internal/middleware"
	"leaveflow/internal/rbac"
	"leaveflow/internal/rbac/infra"
	"leaveflow/internal/shared/counter"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	db, err := gormDB.DB()
	if err != nil {
		return err
	}

	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	directoryRepo := directory.NewRepository(gormDB)
	requestRepo := leaverequest.NewRepository(gormDB)
	counterRepo := counter.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC core ---
	enforcer, err := infra.NewEnforcer()
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer)
	if err := rbacService.LoadPolicy(); err != nil {
		return err
	}

	// --- Services ---
	directoryService := directory.NewService(directoryRepo, rdb)
	requestService := leaverequest.NewService(db, requestRepo, directoryService, counterRepo, outboxRepo)

	// --- Handlers ---
	requestHandler := leaverequest.NewHandlerWithRedis(requestService, rdb)

	// --- Routes ---
	router.Use(middleware.RequestID())
	router.Use(middleware.RateLimitByIP(rate.Limit(20), 40))

	api := router.Group("/api/v1")
	api.Use(middleware.Idempotency(rdb))
	{
		leaverequest.RegisterRoutes(api, requestHandler, rbacService)
	}

	return nil
}
