// Package domain holds the shared types of the cash-logistics core: the
// entities backing the store schema, the finding records produced by the
// rule engine, and the structured error model.
package domain

import "time"

// Location is a retail site requiring armored carrier pickups.
// StoreCode is the stable external identifier; AvgDailyVolume is never negative.
type Location struct {
	ID             int64    `json:"id"`
	StoreCode      string   `json:"store_code"`
	Name           string   `json:"name"`
	Region         string   `json:"region"`
	AvgDailyVolume float64  `json:"avg_daily_volume"`
	PickupFreq     int      `json:"pickup_frequency"` // pickups per week, 1..5
	RiskTier       string   `json:"risk_tier"`        // "high" | "medium" | "low"
	SmartSafe      bool     `json:"smart_safe"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// Carrier is an armored transport company with its pricing terms.
type Carrier struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	BasePickupCost     float64 `json:"base_pickup_cost"`
	PerMileCost        float64 `json:"per_mile_cost"`
	OvertimeMultiplier float64 `json:"overtime_rate_multiplier"`
	MaxDailyStops      int     `json:"max_daily_stops"`
}

// PickupSchedule is a recurring commitment: carrier visits location on a
// weekday at a fixed time. At most one active schedule exists per
// (location, weekday).
type PickupSchedule struct {
	ID            int64  `json:"id"`
	LocationID    int64  `json:"location_id"`
	CarrierID     int64  `json:"carrier_id"`
	DayOfWeek     int    `json:"day_of_week"` // 0=Monday .. 6=Sunday
	ScheduledTime string `json:"scheduled_time"` // "HH:MM"
	RouteSequence int    `json:"route_sequence"`
	Active        bool   `json:"active"`
}

// Pickup outcome statuses as persisted in scheduled_pickups.status. The
// absence of an outcome row for an implied occurrence date is itself
// meaningful: it counts as a miss.
const (
	PickupCompleted = "completed"
	PickupMissed    = "missed"
	PickupLate      = "late"
)

// DateOnly is the ISO date layout used everywhere dates are persisted.
const DateOnly = "2006-01-02"

// Weekday maps a time.Time to the schema's 0=Monday..6=Sunday convention.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
