package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/middleware"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/service"
	"github.com/noah-isme/das-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/das-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/das-api/pkg/middleware/requestid"
)

// RouterDeps carries everything the HTTP surface is built from.
type RouterDeps struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableSwagger  bool

	Auth      middleware.TokenValidator
	Sites     siteService
	Reports   reportService
	Actions   actionService
	Approvals approvalService
	Audit     middleware.AuditWriter
	Metrics   *service.MetricsService
	DB        HealthChecker
	Logger    *zap.Logger
}

// NewRouter wires middleware and every route.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.APIPrefix == "" {
		deps.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, "/metrics", "/health", "/ready"))

	ops := NewMetricsHandler(deps.Metrics, deps.DB)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if deps.EnableSwagger {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.APIPrefix)
	api.Use(middleware.JWT(deps.Auth), middleware.WithResponseMeta())

	actions := NewActionHandler(deps.Actions)
	actionGroup := api.Group("/actions")
	actionGroup.POST("/submit", actions.Submit)
	actionGroup.GET("/my-actions", actions.MyActions)
	actionGroup.GET("/my-routed-actions", actions.MyRoutedActions)
	actionGroup.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleCCR, models.RoleEquipment), actions.All)
	actionGroup.PUT("/:actionId/status", actions.UpdateStatus)
	actionGroup.PUT("/:actionId/reroute", actions.Reroute)
	actionGroup.DELETE("/:actionId", actions.Delete)

	approvals := NewApprovalHandler(deps.Approvals)
	approvalGroup := api.Group("/approvals")
	approvalGroup.POST("", approvals.Create)
	approvalGroup.GET("", approvals.List)
	approvalGroup.GET("/stats", approvals.Stats)
	approvalGroup.POST("/check", middleware.RequireRoles(models.RoleAdmin), approvals.Check)
	approvalGroup.POST("/reset", middleware.RequireRoles(models.RoleAdmin), approvals.Reset)
	approvalGroup.GET("/:id", approvals.Get)
	approvalGroup.PUT("/:id/status", approvals.UpdateStatus)

	rtuApprovals := NewRTUTrackerApprovalHandler(deps.Approvals)
	rtuGroup := api.Group("/rtu-tracker-approvals")
	rtuGroup.POST("", rtuApprovals.Create)
	rtuGroup.GET("", rtuApprovals.List)
	rtuGroup.PUT("/:id/status", rtuApprovals.UpdateStatus)

	registerSites(api.Group("/equipment-offline-sites"), NewSiteHandler(models.CollectionEquipmentOffline, deps.Sites, deps.Reports), deps)
	registerSites(api.Group("/rtu-tracker-sites"), NewSiteHandler(models.CollectionRTUTracker, deps.Sites, deps.Reports), deps)

	return r
}

func registerSites(group *gin.RouterGroup, h *SiteHandler, deps RouterDeps) {
	group.POST("", h.Upsert)
	group.POST("/bulk", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionSiteBulkUpsert, models.AuditResourceSiteRecords), h.Bulk)
	group.GET("/file/:fileId", h.ListByFile)
	group.GET("/reports", h.Reports)
	group.GET("/reports/local-remote", h.LocalRemote)
	group.GET("/reports/details", h.Details)
	group.GET("/reports/filters", h.Filters)
	group.PUT("/update-days-offline", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionDaysOffline, models.AuditResourceSiteRecords), h.UpdateDaysOffline)
	group.DELETE("/:fileId/:rowKey", h.Delete)
}
