package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Machines []SubscriptionMachine `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionMachine links a subscription to a machine it wants to hear about.
type SubscriptionMachine struct {
	Endpoint  string `gorm:"primaryKey"`
	MachineID string `gorm:"primaryKey;size:64;index"`
}
