package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/repository"
	"github.com/pisync/server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSyncAPI struct {
	triggerResult *service.TriggerResult
	triggerErr    error
	lastDeviceID  string
	lastUserID    string
	lastForce     bool
}

func (s *stubSyncAPI) TriggerSync(ctx context.Context, deviceID, userID string, force bool, syncType models.SyncType) (*service.TriggerResult, error) {
	s.lastDeviceID = deviceID
	s.lastUserID = userID
	s.lastForce = force
	return s.triggerResult, s.triggerErr
}

func (s *stubSyncAPI) ListSyncLogs(ctx context.Context, deviceID string, limit int) ([]models.SyncLog, error) {
	return nil, s.triggerErr
}

func (s *stubSyncAPI) ListErrorLogs(ctx context.Context, days, limit int) ([]models.SyncLog, error) {
	return []models.SyncLog{}, nil
}

func (s *stubSyncAPI) ListDevicesWithFailures(ctx context.Context) ([]models.Device, error) {
	return []models.Device{}, nil
}

type stubDeviceAPI struct{}

func (stubDeviceAPI) ListDevices(ctx context.Context, params repository.DeviceListParams) (*service.PaginatedDevices, error) {
	return &service.PaginatedDevices{Page: params.Page, Limit: params.Limit}, nil
}

func (stubDeviceAPI) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	return nil, fmt.Errorf("%w: device %s", service.ErrNotFound, deviceID)
}

func (stubDeviceAPI) RegisterDevice(ctx context.Context, deviceID, deviceName string, location *string, userID string) (*models.Device, error) {
	return &models.Device{DeviceID: deviceID, DeviceName: deviceName, UserID: userID}, nil
}

func (stubDeviceAPI) UpdateDevice(ctx context.Context, id string, update service.DeviceUpdate) (*models.Device, error) {
	return &models.Device{ID: id}, nil
}

type stubAuthAPI struct{}

func (stubAuthAPI) Register(ctx context.Context, username, email, password string, role models.UserRole) error {
	return nil
}

func (stubAuthAPI) Login(ctx context.Context, email, password string) (string, error) {
	return "", service.ErrInvalidCredentials
}

// stubVerifier accepts any token of the form "user:<id>:<role>".
type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*service.Claims, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "user" {
		return nil, fmt.Errorf("invalid token")
	}
	claims := &service.Claims{Username: parts[1], Role: models.UserRole(parts[2])}
	claims.Subject = parts[1]
	return claims, nil
}

func newTestRouter(sync SyncAPI) *gin.Engine {
	h := NewHandlers(sync, stubDeviceAPI{}, stubAuthAPI{})
	return NewRouter(h, stubVerifier{})
}

func TestTriggerSync_RequiresAuth(t *testing.T) {
	router := newTestRouter(&stubSyncAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/trigger/PI0001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerSync_PassesCallerIdentity(t *testing.T) {
	api := &stubSyncAPI{triggerResult: &service.TriggerResult{Accepted: true, Message: "Sync triggered for device PI0001"}}
	router := newTestRouter(api)

	body := strings.NewReader(`{"force": true, "syncType": "FULL"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sync/trigger/PI0001", body)
	req.Header.Set("Authorization", "Bearer user:alice:user")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PI0001", api.lastDeviceID)
	assert.Equal(t, "alice", api.lastUserID)
	assert.True(t, api.lastForce)

	var result service.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Accepted)
}

func TestTriggerSync_AdminsAreRejected(t *testing.T) {
	api := &stubSyncAPI{triggerResult: &service.TriggerResult{Accepted: true}}
	router := newTestRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/trigger/PI0001", nil)
	req.Header.Set("Authorization", "Bearer user:root:admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, api.lastDeviceID, "service must not be reached for admin callers")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("%w: device X", service.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: bad input", service.ErrValidation), http.StatusBadRequest},
		{"conflict", fmt.Errorf("%w: duplicate", service.ErrConflict), http.StatusConflict},
		{"internal", fmt.Errorf("database exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubSyncAPI{triggerErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/sync/trigger/PI0001", nil)
			req.Header.Set("Authorization", "Bearer user:alice:user")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "exploded", "internal detail must not leak")
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router := newTestRouter(&stubSyncAPI{})

	body := strings.NewReader(`{"email": "a@b.c", "password": "nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetDevices_ForwardsPagination(t *testing.T) {
	router := newTestRouter(&stubSyncAPI{})

	req := httptest.NewRequest(http.MethodGet, "/api/devices?page=2&limit=10", nil)
	req.Header.Set("Authorization", "Bearer user:alice:user")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var page service.PaginatedDevices
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Limit)
}
