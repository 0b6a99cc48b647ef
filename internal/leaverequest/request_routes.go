package leaverequest

import (
	"leaveflow/internal/middleware"
	"leaveflow/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
) {
	requests := r.Group("/leave-requests")
	requests.Use(middleware.AuthMiddleware())
	{
		requests.GET("", middleware.RBACAuthorize(rbacService, "leave_request", "read"), handler.GetAll)
		requests.GET("/:id", middleware.RBACAuthorize(rbacService, "leave_request", "read"), handler.GetByID)
		requests.POST("", middleware.RBACAuthorize(rbacService, "leave_request", "create"), handler.Submit)
		requests.POST("/:id/decisions", middleware.RBACAuthorize(rbacService, "leave_request", "decide"), handler.Decide)
		requests.DELETE("/:id", middleware.RBACAuthorize(rbacService, "leave_request", "cancel"), handler.Cancel)
	}
}
