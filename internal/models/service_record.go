package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceServiceRecord is a maintenance visit recorded by field technicians
type DeviceServiceRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID   string    `gorm:"index;not null" json:"device_id"`
	ServicedAt time.Time `gorm:"not null" json:"serviced_at"`
	Technician string    `json:"technician"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table shared with the maintenance system
func (DeviceServiceRecord) TableName() string {
	return "device_service_records"
}
