package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/repository"
	"github.com/pisync/server/internal/service"
)

// SyncAPI is the orchestrator surface the HTTP layer consumes.
type SyncAPI interface {
	TriggerSync(ctx context.Context, deviceID, userID string, force bool, syncType models.SyncType) (*service.TriggerResult, error)
	ListSyncLogs(ctx context.Context, deviceID string, limit int) ([]models.SyncLog, error)
	ListErrorLogs(ctx context.Context, days, limit int) ([]models.SyncLog, error)
	ListDevicesWithFailures(ctx context.Context) ([]models.Device, error)
}

// DeviceAPI is the device management surface the HTTP layer consumes.
type DeviceAPI interface {
	ListDevices(ctx context.Context, params repository.DeviceListParams) (*service.PaginatedDevices, error)
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	RegisterDevice(ctx context.Context, deviceID, deviceName string, location *string, userID string) (*models.Device, error)
	UpdateDevice(ctx context.Context, id string, update service.DeviceUpdate) (*models.Device, error)
}

// AuthAPI is the authentication surface the HTTP layer consumes.
type AuthAPI interface {
	Register(ctx context.Context, username, email, password string, role models.UserRole) error
	Login(ctx context.Context, email, password string) (string, error)
}

type Handlers struct {
	sync    SyncAPI
	devices DeviceAPI
	auth    AuthAPI
}

func NewHandlers(sync SyncAPI, devices DeviceAPI, auth AuthAPI) *Handlers {
	return &Handlers{sync: sync, devices: devices, auth: auth}
}

// respondError maps service error kinds to HTTP statuses. Internal detail
// stays in the log, never in the response body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
	default:
		log.Printf("Internal error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

type triggerSyncRequest struct {
	Force    bool            `json:"force"`
	SyncType models.SyncType `json:"syncType"`
}

func (h *Handlers) TriggerSync(c *gin.Context) {
	// Admin accounts manage the fleet but do not own devices; they cannot
	// trigger syncs.
	if callerRole(c) == models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Admins are not allowed to trigger syncs"})
		return
	}

	var req triggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
	}

	result, err := h.sync.TriggerSync(c.Request.Context(), c.Param("deviceId"), callerID(c), req.Force, req.SyncType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetSyncLogs(c *gin.Context) {
	limit := intQuery(c, "limit", 0)
	logs, err := h.sync.ListSyncLogs(c.Request.Context(), c.Param("deviceId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handlers) GetErrorLogs(c *gin.Context) {
	days := intQuery(c, "days", 0)
	limit := intQuery(c, "limit", 0)
	logs, err := h.sync.ListErrorLogs(c.Request.Context(), days, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handlers) GetDevicesWithFailures(c *gin.Context) {
	devices, err := h.sync.ListDevicesWithFailures(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handlers) GetDevices(c *gin.Context) {
	params := repository.DeviceListParams{
		Page:   intQuery(c, "page", 0),
		Limit:  intQuery(c, "limit", 0),
		Status: models.DeviceSyncState(c.Query("status")),
		Search: c.Query("search"),
	}
	page, err := h.devices.ListDevices(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) GetDeviceByDeviceID(c *gin.Context) {
	device, err := h.devices.GetDeviceByDeviceID(c.Request.Context(), c.Param("deviceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

type registerDeviceRequest struct {
	DeviceID   string  `json:"deviceId"`
	DeviceName string  `json:"deviceName"`
	Location   *string `json:"location"`
}

func (h *Handlers) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	device, err := h.devices.RegisterDevice(c.Request.Context(), req.DeviceID, req.DeviceName, req.Location, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

type updateDeviceRequest struct {
	DeviceName *string `json:"deviceName"`
	Location   *string `json:"location"`
	IsActive   *bool   `json:"isActive"`
}

func (h *Handlers) UpdateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	device, err := h.devices.UpdateDevice(c.Request.Context(), c.Param("id"), service.DeviceUpdate{
		DeviceName: req.DeviceName,
		Location:   req.Location,
		IsActive:   req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

type registerUserRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

func (h *Handlers) RegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
