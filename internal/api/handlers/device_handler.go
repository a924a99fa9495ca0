package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"example.com/coastwatch/internal/cache"
	"example.com/coastwatch/internal/models"
	"example.com/coastwatch/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// DeviceService is the device lifecycle owned by the stream manager
type DeviceService interface {
	Register(cfg models.DeviceConfig) error
	SetActive(id string, active bool) (models.DeviceConfig, error)
	Reconfigure(id string, patch models.DevicePatch) (models.DeviceConfig, error)
	RecordService(id string, at time.Time) (models.DeviceConfig, error)
	Device(id string) (models.DeviceConfig, error)
	Devices() []models.DeviceConfig
	Running(id string) bool
}

// ReadingCache serves the most recent envelope per device
type ReadingCache interface {
	Enabled() bool
	Latest(ctx context.Context, deviceID string) (json.RawMessage, error)
}

// ServiceHistory lists persisted maintenance visits
type ServiceHistory interface {
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.DeviceServiceRecord, error)
}

const defaultHistoryLimit = 20

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	devices DeviceService
	cache   ReadingCache
	history ServiceHistory
	tracer  tracing.Tracer
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(devices DeviceService, cache ReadingCache, history ServiceHistory, tracer tracing.Tracer) *DeviceHandler {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	return &DeviceHandler{
		devices: devices,
		cache:   cache,
		history: history,
		tracer:  tracer,
	}
}

// CreateDeviceRequest registers a new telemetry source
type CreateDeviceRequest struct {
	ID              string            `json:"id" validate:"required,max=64"`
	Type            models.DeviceType `json:"type" validate:"required,device_type"`
	Location        models.Location   `json:"location"`
	IntervalSeconds float64           `json:"interval_seconds"`
	Active          *bool             `json:"active"`
	LastService     *time.Time        `json:"last_service"`
}

// ServiceRequest records a maintenance visit
type ServiceRequest struct {
	ServicedAt *time.Time `json:"serviced_at"`
}

// DeviceResponse is a device config plus its scheduling state
type DeviceResponse struct {
	models.DeviceConfig
	Running bool `json:"running"`
}

func (h *DeviceHandler) response(cfg models.DeviceConfig) DeviceResponse {
	return DeviceResponse{DeviceConfig: cfg, Running: h.devices.Running(cfg.ID)}
}

// HandleList returns every registered device
func (h *DeviceHandler) HandleList(c *gin.Context) {
	devices := h.devices.Devices()
	out := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, h.response(d))
	}
	c.JSON(http.StatusOK, out)
}

// HandleCreate registers a device and starts it when active
func (h *DeviceHandler) HandleCreate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-register-device")
	defer h.tracer.EndTransaction(txn)

	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tracer.RecordError(txn, err)
		badRequest(c, err)
		return
	}
	if err := ValidateStruct(req); err != nil {
		h.tracer.RecordError(txn, err)
		badRequest(c, err)
		return
	}

	cfg := models.DeviceConfig{
		ID:              req.ID,
		Type:            req.Type,
		Location:        req.Location,
		IntervalSeconds: req.IntervalSeconds,
		Active:          true,
		LastService:     time.Now().UTC(),
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if req.LastService != nil {
		cfg.LastService = *req.LastService
	}
	h.tracer.AddAttribute(txn, "device_id", cfg.ID)

	if err := h.devices.Register(cfg); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.response(cfg))
}

// HandleGet returns one device
func (h *DeviceHandler) HandleGet(c *gin.Context) {
	cfg, err := h.devices.Device(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(cfg))
}

// HandleReconfigure applies a partial update
func (h *DeviceHandler) HandleReconfigure(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-reconfigure-device")
	defer h.tracer.EndTransaction(txn)
	h.tracer.AddAttribute(txn, "device_id", c.Param("id"))

	var patch models.DevicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	if err := ValidateStruct(patch); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := h.devices.Reconfigure(c.Param("id"), patch)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(cfg))
}

// HandleActivate resumes a device's stream
func (h *DeviceHandler) HandleActivate(c *gin.Context) {
	h.setActive(c, true)
}

// HandleDeactivate stops a device's stream and keeps its configuration
func (h *DeviceHandler) HandleDeactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *DeviceHandler) setActive(c *gin.Context, active bool) {
	cfg, err := h.devices.SetActive(c.Param("id"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(cfg))
}

// HandleService records a maintenance visit, defaulting to now
func (h *DeviceHandler) HandleService(c *gin.Context) {
	var req ServiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	at := time.Now().UTC()
	if req.ServicedAt != nil {
		at = *req.ServicedAt
	}
	if at.After(time.Now().Add(time.Minute)) {
		badRequest(c, errors.New("serviced_at is in the future"))
		return
	}

	cfg, err := h.devices.RecordService(c.Param("id"), at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(cfg))
}

// HandleLatest returns the device's most recent cached envelope
func (h *DeviceHandler) HandleLatest(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.devices.Device(id); err != nil {
		respondError(c, err)
		return
	}
	if h.cache == nil || !h.cache.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reading cache is disabled"})
		return
	}

	raw, err := h.cache.Latest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reading cached for device"})
			return
		}
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// HandleServiceRecords returns the device's persisted service history
func (h *DeviceHandler) HandleServiceRecords(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.devices.Device(id); err != nil {
		respondError(c, err)
		return
	}
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service record database is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := h.history.ListByDevice(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// RegisterRoutes registers the handler's routes
func (h *DeviceHandler) RegisterRoutes(router gin.IRouter) {
	devices := router.Group("/devices")
	devices.GET("", h.HandleList)
	devices.POST("", h.HandleCreate)
	devices.GET("/:id", h.HandleGet)
	devices.PATCH("/:id", h.HandleReconfigure)
	devices.POST("/:id/activate", h.HandleActivate)
	devices.POST("/:id/deactivate", h.HandleDeactivate)
	devices.POST("/:id/service", h.HandleService)
	devices.GET("/:id/latest", h.HandleLatest)
	devices.GET("/:id/service-records", h.HandleServiceRecords)
}
