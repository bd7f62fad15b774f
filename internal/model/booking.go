package model

import "time"

// ActiveBooking is the single booking a profile may hold. StartTime is in
// milliseconds since the Unix epoch, matching the persisted form.
type ActiveBooking struct {
	MachineID       string      `json:"machineId"`
	MachineName     string      `json:"machineName"`
	Type            MachineType `json:"type"`
	StartTime       int64       `json:"startTime"`
	DurationMinutes int         `json:"durationMinutes"`
}

// EndsAt is the only source of truth for expiry.
func (b ActiveBooking) EndsAt() time.Time {
	return time.UnixMilli(b.StartTime).Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Remaining returns how long the booking still runs at now; it is <= 0 once
// the booking has expired.
func (b ActiveBooking) Remaining(now time.Time) time.Duration {
	return b.EndsAt().Sub(now)
}

// Same reports whether o describes the same booking as b.
func (b ActiveBooking) Same(o ActiveBooking) bool {
	return b.MachineID == o.MachineID && b.StartTime == o.StartTime
}
