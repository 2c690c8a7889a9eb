package main

import (
	"context"
	"net/http"

	"casino-platform/internal/httpapi"
	"casino-platform/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, ready func(context.Context) error, secureCookie bool) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(httpapi.ClientEnv(secureCookie))

	// Token issuance sits in front of authMW; the login itself is audited.
	v1.POST("/auth/token", h.IssueToken)

	protected := v1.Group("")
	protected.Use(authMW)
	{
		protected.POST("/auth/logout", h.Logout)
		protected.POST("/audit/events", h.IngestEvents)
	}

	// ADMIN routes
	admin := protected.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSuperAdmin, rbac.RoleComplianceOfficer))
	{
		events := admin.Group("/audit")
		events.GET("/events", h.ListAuditEvents)
		events.GET("/events/summary", h.AuditSummary)
		events.GET("/errors", h.GetLastError)
		events.DELETE("/errors", h.ClearLastError)

		ret := admin.Group("/retention")
		ret.GET("/policies", h.ListPolicies)
		ret.PUT("/policies/:event_type", h.PutPolicy)
		ret.PATCH("/policies/:event_type/enabled", h.SetPolicyEnabled)
		ret.POST("/cleanup", h.RunCleanup)
		ret.POST("/cleanup/manual", h.RunManualCleanup)

		comp := admin.Group("/compliance")
		comp.GET("/requirements", h.ComplianceRequirements)
		comp.GET("/validation", h.ComplianceValidation)

		reports := admin.Group("/reports")
		reports.POST("", h.CreateReport)
		reports.GET("", h.ListReports)
		reports.GET("/:id", h.GetReport)
		reports.DELETE("/:id", h.DeleteReport)
		reports.PATCH("/:id/status", h.UpdateReportStatus)
	}
}
