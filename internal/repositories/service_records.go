package repositories

import (
	"context"
	"time"

	"example.com/coastwatch/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ServiceRecordRepository reads device maintenance history
type ServiceRecordRepository struct {
	readOnlyDB *gorm.DB
}

// NewServiceRecordRepository creates a new repository
func NewServiceRecordRepository(readOnlyDB *gorm.DB) *ServiceRecordRepository {
	return &ServiceRecordRepository{readOnlyDB: readOnlyDB}
}

type latestService struct {
	DeviceID    string
	LastService time.Time
}

// LatestServiceDates returns the most recent service time for every device with a record
func (r *ServiceRecordRepository) LatestServiceDates(ctx context.Context) (map[string]time.Time, error) {
	var rows []latestService
	if err := latestServiceQuery(r.readOnlyDB.WithContext(ctx)).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get latest service dates")
	}

	dates := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		dates[row.DeviceID] = row.LastService
	}
	return dates, nil
}

// ListByDevice returns a device's service history, newest first
func (r *ServiceRecordRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.DeviceServiceRecord, error) {
	var records []models.DeviceServiceRecord
	err := r.readOnlyDB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("serviced_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list service records")
	}
	return records, nil
}

func latestServiceQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&models.DeviceServiceRecord{}).
		Select("device_id, MAX(serviced_at) AS last_service").
		Group("device_id")
}
