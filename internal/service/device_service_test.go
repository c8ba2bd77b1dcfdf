package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeviceDirectory backs DeviceService tests with in-memory pagination
// matching the repository's ordering and filter semantics.
type fakeDeviceDirectory struct {
	mu      sync.Mutex
	devices map[string]*models.Device
}

func newFakeDeviceDirectory(devices ...*models.Device) *fakeDeviceDirectory {
	d := &fakeDeviceDirectory{devices: make(map[string]*models.Device)}
	for _, dev := range devices {
		d.devices[dev.ID] = dev
	}
	return d
}

func (f *fakeDeviceDirectory) GetByID(ctx context.Context, id string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, repository.ErrDeviceNotFound
}

func (f *fakeDeviceDirectory) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.DeviceID == deviceID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, repository.ErrDeviceNotFound
}

func (f *fakeDeviceDirectory) Create(ctx context.Context, device *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *device
	f.devices[device.ID] = &copied
	return nil
}

func (f *fakeDeviceDirectory) Update(ctx context.Context, id string, updates map[string]interface{}) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, repository.ErrDeviceNotFound
	}
	if v, ok := updates["device_name"]; ok {
		d.DeviceName = v.(string)
	}
	if v, ok := updates["location"]; ok {
		loc := v.(string)
		d.Location = &loc
	}
	if v, ok := updates["is_active"]; ok {
		d.IsActive = v.(bool)
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDeviceDirectory) List(ctx context.Context, params repository.DeviceListParams) ([]models.Device, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Device
	for _, d := range f.devices {
		if params.Status != "" && d.SyncStatus != params.Status {
			continue
		}
		matched = append(matched, *d)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	offset := (params.Page - 1) * params.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func TestListDevices_PaginationArithmetic(t *testing.T) {
	var fleet []*models.Device
	for i := 0; i < 25; i++ {
		d := testDevice(uuid.NewString()[:8], "user-1", models.DeviceStateSuccess)
		d.UpdatedAt = time.Now().Add(-time.Duration(i) * time.Minute)
		fleet = append(fleet, d)
	}
	svc := NewDeviceService(newFakeDeviceDirectory(fleet...))

	page, err := svc.ListDevices(context.Background(), repository.DeviceListParams{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Limit)
}

func TestListDevices_DefaultsAndValidation(t *testing.T) {
	svc := NewDeviceService(newFakeDeviceDirectory())

	page, err := svc.ListDevices(context.Background(), repository.DeviceListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 0, page.TotalPages)

	_, err = svc.ListDevices(context.Background(), repository.DeviceListParams{Status: "BROKEN"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListDevices_StatusFilter(t *testing.T) {
	failed := testDevice("PI0001", "user-1", models.DeviceStateFailed)
	ok := testDevice("PI0002", "user-1", models.DeviceStateSuccess)
	svc := NewDeviceService(newFakeDeviceDirectory(failed, ok))

	page, err := svc.ListDevices(context.Background(), repository.DeviceListParams{Status: models.DeviceStateFailed})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "PI0001", page.Data[0].DeviceID)
}

func TestRegisterDevice(t *testing.T) {
	dir := newFakeDeviceDirectory()
	svc := NewDeviceService(dir)

	location := "Library"
	device, err := svc.RegisterDevice(context.Background(), "PI0100", "PiBook-PI0100", &location, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatePending, device.SyncStatus, "new devices start PENDING")
	assert.True(t, device.IsActive)
	assert.NotEmpty(t, device.ID)

	// Duplicate external id is a conflict
	_, err = svc.RegisterDevice(context.Background(), "PI0100", "other", nil, "user-2")
	assert.ErrorIs(t, err, ErrConflict)

	// Missing fields are validation errors
	_, err = svc.RegisterDevice(context.Background(), "", "name", nil, "user-1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.RegisterDevice(context.Background(), "PI0101", "name", nil, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateDevice(t *testing.T) {
	device := testDevice("PI0001", "user-1", models.DeviceStateSuccess)
	dir := newFakeDeviceDirectory(device)
	svc := NewDeviceService(dir)

	name := "Renamed"
	inactive := false
	updated, err := svc.UpdateDevice(context.Background(), device.ID, DeviceUpdate{DeviceName: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DeviceName)
	assert.False(t, updated.IsActive)

	_, err = svc.UpdateDevice(context.Background(), device.ID, DeviceUpdate{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateDevice(context.Background(), uuid.NewString(), DeviceUpdate{DeviceName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}
