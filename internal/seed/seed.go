package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pisync/server/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var demoLocations = []string{"School A", "School B", "School C", "Community Center", "Library"}

// Run populates demo data for development: one demo user, twenty devices
// with a plausible status mix, and a few historical sync logs per device.
// Skips seeding when devices already exist.
func Run(ctx context.Context, db *gorm.DB) error {
	var deviceCount int64
	if err := db.WithContext(ctx).Model(&models.Device{}).Count(&deviceCount).Error; err != nil {
		return fmt.Errorf("failed to count devices: %w", err)
	}
	if deviceCount > 0 {
		log.Printf("Database already has %d devices. Skipping seed.", deviceCount)
		return nil
	}

	user, err := demoUser(ctx, db)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()

	devices := make([]models.Device, 0, 20)
	for i := 1; i <= 20; i++ {
		deviceID := fmt.Sprintf("PI%04d", i)

		// 70% success, 20% failure, 10% pending
		var status models.DeviceSyncState
		switch roll := rng.Float64(); {
		case roll < 0.7:
			status = models.DeviceStateSuccess
		case roll < 0.9:
			status = models.DeviceStateFailed
		default:
			status = models.DeviceStatePending
		}

		var lastSync *time.Time
		if status != models.DeviceStatePending {
			t := now.AddDate(0, 0, -rng.Intn(30))
			lastSync = &t
		}

		location := demoLocations[rng.Intn(len(demoLocations))]
		devices = append(devices, models.Device{
			ID:           uuid.NewString(),
			DeviceID:     deviceID,
			DeviceName:   "PiBook-" + deviceID,
			Location:     &location,
			SyncStatus:   status,
			LastSyncTime: lastSync,
			IsActive:     true,
			UserID:       user.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := db.WithContext(ctx).Create(&devices).Error; err != nil {
		return fmt.Errorf("failed to seed devices: %w", err)
	}
	log.Printf("Created %d devices", len(devices))

	logs := make([]models.SyncLog, 0, len(devices)*3)
	for _, device := range devices {
		for j := 0; j < 1+rng.Intn(3); j++ {
			createdAt := now.AddDate(0, 0, -rng.Intn(14))
			outcome := models.OutcomeSuccess
			var errorMessage *string
			data := models.SyncData{
				SyncType:    models.SyncTypeDelta,
				TriggeredAt: createdAt,
			}
			if rng.Float64() > 0.8 {
				outcome = models.OutcomeFailed
				msg := "Connection timeout during file transfer"
				code := "TIMEOUT"
				failedAt := createdAt.Add(5 * time.Second)
				errorMessage = &msg
				data.ErrorCode = &code
				data.FailedAt = &failedAt
			} else {
				completedAt := createdAt.Add(5 * time.Second)
				bytes := rng.Int63n(1024 * 1024)
				files := rng.Int63n(50)
				data.CompletedAt = &completedAt
				data.BytesTransferred = &bytes
				data.FilesTransferred = &files
			}
			logs = append(logs, models.SyncLog{
				ID:           uuid.NewString(),
				DeviceID:     device.ID,
				Status:       outcome,
				ErrorMessage: errorMessage,
				SyncData:     data,
				CreatedAt:    createdAt,
			})
		}
	}

	if err := db.WithContext(ctx).Create(&logs).Error; err != nil {
		return fmt.Errorf("failed to seed sync logs: %w", err)
	}
	log.Printf("Created %d sync logs", len(logs))
	return nil
}

func demoUser(ctx context.Context, db *gorm.DB) (*models.User, error) {
	var existing models.User
	err := db.WithContext(ctx).First(&existing, "email = ?", "demo@pisync.local").Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up demo user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.NewString(),
		Username:  "demo",
		Email:     "demo@pisync.local",
		Password:  string(hashed),
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}
	log.Println("Created demo user demo@pisync.local")
	return user, nil
}
