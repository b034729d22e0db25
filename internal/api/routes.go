package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handlers *APIHandlers, logger *logrus.Logger) {
	// Global middleware
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORS())

	// Health and metrics (public)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := router.Group("/api/v1")
	{
		devices := v1.Group("/devices")
		{
			devices.POST("", handlers.CreateDevice)
			devices.GET("", handlers.ListDevices)
			devices.GET("/:id", handlers.GetDevice)
			devices.POST("/:id/activate", handlers.ActivateDevice)
			devices.POST("/:id/deactivate", handlers.DeactivateDevice)
			devices.DELETE("/:id", handlers.DeleteDevice)
			devices.GET("/:id/transactions", handlers.GetDeviceTransactions)
		}

		v1.GET("/transactions", handlers.ListTransactions)
	}
}
