package rules

import (
	"context"
	"fmt"
	"sort"
)

// Mismatch kinds.
const (
	MismatchModalDay     = "modal-day"
	MismatchOverService  = "over-service"
	MismatchUnderService = "under-service"
)

// Mismatch flags a location whose pickup schedule does not line up with how
// cash actually arrives.
type Mismatch struct {
	LocationID     int64   `json:"locationId"`
	StoreCode      string  `json:"storeCode"`
	LocationName   string  `json:"locationName"`
	Kind           string  `json:"kind"`
	AvgDailyVolume float64 `json:"avgDailyVolume"`
	WeeklyPickups  int     `json:"weeklyPickups"`
	DepositDay     int     `json:"depositDay,omitempty"` // 0=Monday..6=Sunday
	PickupDay      int     `json:"pickupDay,omitempty"`
	DayDistance    int     `json:"dayDistance,omitempty"`
	Detail         string  `json:"detail"`
}

// ScheduleMismatches compares each location's heaviest deposit weekday with
// its heaviest pickup weekday, and independently flags over- and
// under-serviced locations by volume versus weekly pickup count.
func (e *Engine) ScheduleMismatches(ctx context.Context, th Thresholds) ([]Mismatch, error) {
	rs, err := e.store.Select(ctx, `
		SELECT id, store_code, name, avg_daily_volume, pickup_frequency FROM locations`)
	if err != nil {
		return nil, err
	}

	depositModal, err := e.modalDepositDays(ctx)
	if err != nil {
		return nil, err
	}
	pickupModal, pickupCount, err := e.pickupDays(ctx)
	if err != nil {
		return nil, err
	}

	var out []Mismatch
	for _, r := range rs.Rows {
		locationID := int64(asInt(r[0]))
		m := Mismatch{
			LocationID:     locationID,
			StoreCode:      asString(r[1]),
			LocationName:   asString(r[2]),
			AvgDailyVolume: asFloat(r[3]),
		}
		m.WeeklyPickups = pickupCount[locationID]
		if m.WeeklyPickups == 0 {
			m.WeeklyPickups = asInt(r[4])
		}

		if dd, okD := depositModal[locationID]; okD {
			if pd, okP := pickupModal[locationID]; okP {
				dist := circularDayDistance(dd, pd)
				if dist > th.MismatchTolerance {
					modal := m
					modal.Kind = MismatchModalDay
					modal.DepositDay = dd
					modal.PickupDay = pd
					modal.DayDistance = dist
					modal.Detail = fmt.Sprintf("heaviest deposits land on day %d but pickups centre on day %d (%d apart)", dd, pd, dist)
					out = append(out, modal)
				}
			}
		}

		if m.AvgDailyVolume <= th.OverServiceMaxVolume && m.WeeklyPickups >= th.OverServiceMinPickups {
			over := m
			over.Kind = MismatchOverService
			over.Detail = fmt.Sprintf("$%.0f/day does not justify %d pickups/week", m.AvgDailyVolume, m.WeeklyPickups)
			out = append(out, over)
		}
		if m.AvgDailyVolume >= th.UnderServiceMinVolume && m.WeeklyPickups <= th.UnderServiceMaxPickups {
			under := m
			under.Kind = MismatchUnderService
			under.Detail = fmt.Sprintf("$%.0f/day served by only %d pickups/week", m.AvgDailyVolume, m.WeeklyPickups)
			out = append(out, under)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreCode != out[j].StoreCode {
			return out[i].StoreCode < out[j].StoreCode
		}
		return out[i].Kind < out[j].Kind
	})
	e.logger.Info("schedule mismatches evaluated", "found", len(out))
	return out, nil
}

// modalDepositDays picks, per location, the weekday carrying the largest
// total deposit amount. Ties resolve to the earliest weekday.
func (e *Engine) modalDepositDays(ctx context.Context) (map[int64]int, error) {
	rs, err := e.store.Select(ctx, `
		SELECT location_id, day_of_week, SUM(amount)
		FROM deposits
		GROUP BY location_id, day_of_week
		ORDER BY location_id, day_of_week`)
	if err != nil {
		return nil, err
	}
	best := make(map[int64]int)
	bestAmount := make(map[int64]float64)
	for _, r := range rs.Rows {
		id := int64(asInt(r[0]))
		amount := asFloat(r[2])
		if amount > bestAmount[id] {
			bestAmount[id] = amount
			best[id] = asInt(r[1])
		}
	}
	return best, nil
}

// pickupDays returns each location's modal pickup weekday, weighted by cash
// actually collected, and its active weekly pickup count. Locations with no
// collection history fall back to their earliest scheduled weekday.
func (e *Engine) pickupDays(ctx context.Context) (map[int64]int, map[int64]int, error) {
	rs, err := e.store.Select(ctx, `
		SELECT location_id, day_of_week
		FROM pickup_schedules
		WHERE active = 1
		ORDER BY location_id, day_of_week`)
	if err != nil {
		return nil, nil, err
	}
	modal := make(map[int64]int)
	count := make(map[int64]int)
	seen := make(map[int64]bool)
	for _, r := range rs.Rows {
		id := int64(asInt(r[0]))
		count[id]++
		if !seen[id] {
			modal[id] = asInt(r[1])
			seen[id] = true
		}
	}

	// sqlite's %w counts from Sunday; shift to Monday-based days.
	history, err := e.store.Select(ctx, `
		SELECT location_id,
		       (CAST(strftime('%w', scheduled_date) AS INTEGER) + 6) % 7,
		       SUM(COALESCE(cash_collected, 0))
		FROM scheduled_pickups
		WHERE status IN ('completed', 'late')
		GROUP BY 1, 2
		ORDER BY 1, 2`)
	if err != nil {
		return nil, nil, err
	}
	bestCash := make(map[int64]float64)
	for _, r := range history.Rows {
		id := int64(asInt(r[0]))
		cash := asFloat(r[2])
		if cash > bestCash[id] {
			bestCash[id] = cash
			modal[id] = asInt(r[1])
		}
	}
	return modal, count, nil
}

// circularDayDistance measures weekday separation on the 7-day ring, so
// Sunday (6) and Monday (0) are one day apart.
func circularDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, 7-d)
}

func (m Mismatch) summary() string {
	return fmt.Sprintf("%s (%s) %s: %s", m.LocationName, m.StoreCode, m.Kind, m.Detail)
}
