package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/hostel-allocation-api/internal/handler"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/service"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
)

type routeDeps struct {
	auth         *service.AuthService
	audit        *service.AsyncAuditWriter
	loginLimiter *middleware.IPRateLimiter

	authH        *handler.AuthHandler
	allocationH  *handler.AllocationHandler
	swapH        *handler.SwapHandler
	applicationH *handler.ApplicationHandler
	roomH        *handler.RoomHandler
	dashboardH   *handler.DashboardHandler
	metricsH     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metricsH.Health)
	r.GET("/ready", d.metricsH.Ready)
	r.GET("/metrics", d.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	jwt := middleware.JWT(d.auth)
	api := r.Group(cfg.APIPrefix)

	api.GET("/rooms/availability", middleware.WithResponseMeta(), d.roomH.Availability)

	auth := api.Group("/auth")
	auth.POST("/google", middleware.RateLimit(d.loginLimiter), d.authH.Google)
	auth.POST("/refresh", middleware.RateLimit(d.loginLimiter), d.authH.Refresh)
	auth.POST("/logout", jwt, d.authH.Logout)
	auth.GET("/me", jwt, d.authH.Me)

	student := api.Group("/student", jwt, middleware.RequireRoles(models.RoleStudent))
	student.POST("/preferences", d.allocationH.SetPreferences)
	student.GET("/preferences", d.allocationH.GetPreferences)
	student.DELETE("/preferences", d.allocationH.DeletePreferences)
	student.POST("/assign", d.allocationH.Assign)
	student.GET("/profile", d.allocationH.Profile)
	student.POST("/swap", d.swapH.Request)
	student.GET("/swaps", d.swapH.Mine)
	student.POST("/swap/:id/cancel", d.swapH.Cancel)
	student.POST("/change", d.applicationH.Apply)
	student.GET("/applications", d.applicationH.Mine)

	admin := api.Group("/admin", jwt, middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/applications", d.applicationH.List)
	admin.POST("/applications/:id/decide", d.applicationH.Decide)
	admin.GET("/swaps", d.swapH.List)
	admin.POST("/swaps/:id/decide", d.swapH.Decide)
	admin.POST("/rooms/upsert", d.roomH.Upsert)
	admin.GET("/rooms/export", middleware.Audit(d.audit, models.AuditActionRoomExport, "rooms"), d.roomH.Export)
	admin.GET("/rooms/:id", d.roomH.Get)
	admin.POST("/assign/batch", d.allocationH.BatchAssign)
	admin.GET("/stats", d.dashboardH.Stats)
}
