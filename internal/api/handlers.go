package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"example.com/backstage/services/simulator/internal/core"
	"github.com/gin-gonic/gin"
)

// APIHandlers holds all HTTP handlers
type APIHandlers struct {
	services *core.ServiceRegistry
}

// NewAPIHandlers creates a new handler instance
func NewAPIHandlers(services *core.ServiceRegistry) *APIHandlers {
	return &APIHandlers{services: services}
}

var startTime = time.Now()

// HealthCheck returns service health status, including the live chain
// count used as the generation liveness signal.
func (h *APIHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"active_chains": h.services.Generator.ActiveCount(),
		"max_delay":     h.services.Source.MaxDelay().String(),
		"uptime":        time.Since(startTime).String(),
		"timestamp":     time.Now(),
		"service":       "access-simulator-api",
	})
}

// --- Device Lifecycle Endpoints ---

// CreateDevice registers a new simulated device in inactive status.
func (h *APIHandlers) CreateDevice(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	device, err := h.services.Devices.CreateDevice(c.Request.Context(), req.Name, req.Type, req.Address)
	if err != nil {
		var be core.BusinessError
		if errors.As(err, &be) {
			c.JSON(http.StatusBadRequest, gin.H{"error": be.Message, "code": be.Code})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create device"})
		}
		return
	}

	c.JSON(http.StatusCreated, device)
}

// ListDevices returns all devices, newest first.
func (h *APIHandlers) ListDevices(c *gin.Context) {
	devices, err := h.services.Devices.ListDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// GetDevice retrieves device details.
func (h *APIHandlers) GetDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	device, err := h.services.Devices.GetDevice(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, core.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get device"})
		}
		return
	}

	c.JSON(http.StatusOK, device)
}

// ActivateDevice starts transaction generation for a device.
func (h *APIHandlers) ActivateDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	device, err := h.services.Devices.ActivateDevice(c.Request.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDeviceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrDeviceAlreadyActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate device"})
		}
		return
	}

	c.JSON(http.StatusOK, device)
}

// DeactivateDevice stops transaction generation for a device.
func (h *APIHandlers) DeactivateDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	device, err := h.services.Devices.DeactivateDevice(c.Request.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDeviceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrDeviceAlreadyInactive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate device"})
		}
		return
	}

	c.JSON(http.StatusOK, device)
}

// DeleteDevice removes a device and cascades to all its transactions.
func (h *APIHandlers) DeleteDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	if err := h.services.Devices.DeleteDevice(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, core.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete device"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device deleted"})
}

// --- Transaction Query Endpoints ---

// GetDeviceTransactions returns a page of one device's transactions.
func (h *APIHandlers) GetDeviceTransactions(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	limit, offset := paginationParams(c)
	txs, total, err := h.services.Devices.ListTransactions(c.Request.Context(), uint(id), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
		"total":        total,
	})
}

// ListTransactions returns a page of transactions across all devices.
func (h *APIHandlers) ListTransactions(c *gin.Context) {
	deviceID, _ := strconv.ParseUint(c.Query("device_id"), 10, 32)

	limit, offset := paginationParams(c)
	txs, total, err := h.services.Devices.ListTransactions(c.Request.Context(), uint(deviceID), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
		"total":        total,
	})
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
