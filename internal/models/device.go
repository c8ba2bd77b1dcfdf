package models

import "time"

// Device is a registered remote unit whose sync state is tracked.
// ID is the internal identity; DeviceID is the external, caller-supplied
// identifier and is immutable after registration.
type Device struct {
	ID           string          `gorm:"column:id;primaryKey" json:"id"`
	DeviceID     string          `gorm:"column:device_id;uniqueIndex" json:"deviceId"`
	DeviceName   string          `gorm:"column:device_name" json:"deviceName"`
	Location     *string         `gorm:"column:location" json:"location,omitempty"`
	SyncStatus   DeviceSyncState `gorm:"column:sync_status" json:"syncStatus"`
	LastSyncTime *time.Time      `gorm:"column:last_sync_time" json:"lastSyncTime,omitempty"`
	IsActive     bool            `gorm:"column:is_active" json:"isActive"`
	UserID       string          `gorm:"column:user_id;index" json:"userId"`
	SyncLogs     []SyncLog       `gorm:"foreignKey:DeviceID;references:ID" json:"syncLogs,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Device) TableName() string {
	return "devices"
}
