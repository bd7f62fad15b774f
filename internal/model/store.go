package model

import "time"

// KVEntry is one key of the profile's durable key-value store.
type KVEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Booking outcomes recorded in the history.
const (
	OutcomeCancelled = "cancelled"
	OutcomeExpired   = "expired"
	OutcomeDiscarded = "discarded"
)

// BookingRecord is the archived trace of a finished booking.
type BookingRecord struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	MachineID   string      `gorm:"size:64;not null;index" json:"machineId"`
	MachineName string      `gorm:"size:128;not null" json:"machineName"`
	Type        MachineType `gorm:"size:16;not null" json:"type"`
	Outcome     string      `gorm:"size:16;not null" json:"outcome"`
	PeriodStart time.Time   `gorm:"not null" json:"periodStart"`
	PeriodEnd   time.Time   `gorm:"not null" json:"periodEnd"`        // Predicted end
	ObservedAt  time.Time   `gorm:"not null;index" json:"observedAt"` // When the booking was released
}
