package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SyncData is the structured attempt-result payload stored on a sync log.
// All fields except SyncType and TriggeredAt are optional; which ones are set
// depends on how far the attempt got.
type SyncData struct {
	SyncType         SyncType   `json:"syncType"`
	TriggeredAt      time.Time  `json:"triggeredAt"`
	ForcedSync       bool       `json:"forcedSync,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
	BytesTransferred *int64     `json:"bytesTransferred,omitempty"`
	FilesTransferred *int64     `json:"filesTransferred,omitempty"`
	ErrorCode        *string    `json:"errorCode,omitempty"`
	DurationMillis   *int64     `json:"duration,omitempty"`
}

// Value serializes the payload to JSON for the jsonb column.
func (d SyncData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync data: %w", err)
	}
	return b, nil
}

// Scan deserializes the jsonb column back into the payload.
func (d *SyncData) Scan(value interface{}) error {
	if value == nil {
		*d = SyncData{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported sync data column type %T", value)
	}
	if err := json.Unmarshal(b, d); err != nil {
		return fmt.Errorf("failed to unmarshal sync data: %w", err)
	}
	return nil
}

// SyncLog records one attempt to synchronize a device. A log is created in
// PENDING and moves to exactly one terminal outcome exactly once; terminal
// logs are never modified again and are retained as the audit trail.
type SyncLog struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	DeviceID     string         `gorm:"column:device_id;index" json:"deviceId"`
	Device       *Device        `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	Status       AttemptOutcome `gorm:"column:status;index" json:"status"`
	ErrorMessage *string        `gorm:"column:error_message" json:"errorMessage,omitempty"`
	SyncData     SyncData       `gorm:"column:sync_data;type:jsonb" json:"syncData"`
	CreatedAt    time.Time      `gorm:"column:created_at;index" json:"createdAt"`
}

// TableName specifies the table name for GORM
func (SyncLog) TableName() string {
	return "sync_logs"
}
