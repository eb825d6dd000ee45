package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cashops/internal/domain"
)

// MissedPickup is one schedule occurrence with no completed outcome.
type MissedPickup struct {
	LocationID    int64   `json:"locationId"`
	StoreCode     string  `json:"storeCode"`
	LocationName  string  `json:"locationName"`
	Carrier       string  `json:"carrier"`
	ScheduledDate string  `json:"scheduledDate"`
	ScheduledTime string  `json:"scheduledTime"`
	DaysSince     int     `json:"daysSinceLastPickup"`
	CashAtRisk    float64 `json:"cashAtRisk"`
	SLACredit     float64 `json:"slaCredit"`
}

type scheduleRow struct {
	locationID int64
	storeCode  string
	name       string
	avgVolume  float64
	dayOfWeek  int
	timeOfDay  string
	carrier    string
}

// MissedPickups expands every active schedule over [start, end] and reports
// each occurrence that has no completed outcome row. Cash at risk is the
// location's trailing average daily deposit multiplied by the days elapsed
// since its last completed pickup, clamped at the range start.
func (e *Engine) MissedPickups(ctx context.Context, start, end time.Time, th Thresholds) ([]MissedPickup, error) {
	if end.Before(start) {
		return nil, domain.NewError(domain.ErrInvalidArguments, "end date precedes start date")
	}

	schedules, err := e.activeSchedules(ctx)
	if err != nil {
		return nil, err
	}
	completed, err := e.completedDates(ctx, end)
	if err != nil {
		return nil, err
	}
	trailing, err := e.trailingAverages(ctx, end, th.TrailingWindowDays)
	if err != nil {
		return nil, err
	}

	byDay := make(map[int][]scheduleRow)
	for _, s := range schedules {
		byDay[s.dayOfWeek] = append(byDay[s.dayOfWeek], s)
	}

	var out []MissedPickup
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, s := range byDay[domain.Weekday(d)] {
			date := d.Format(domain.DateOnly)
			if completed[s.locationID][date] {
				continue
			}

			last := lastCompletedBefore(completed[s.locationID], d)
			if last.IsZero() || last.Before(start) {
				last = start
			}
			days := int(d.Sub(last).Hours() / 24)

			avg, ok := trailing[s.locationID]
			if !ok || avg <= 0 {
				avg = s.avgVolume
			}

			out = append(out, MissedPickup{
				LocationID:    s.locationID,
				StoreCode:     s.storeCode,
				LocationName:  s.name,
				Carrier:       s.carrier,
				ScheduledDate: date,
				ScheduledTime: s.timeOfDay,
				DaysSince:     days,
				CashAtRisk:    avg * float64(days),
				SLACredit:     th.SLACreditPerMiss,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate != out[j].ScheduledDate {
			return out[i].ScheduledDate < out[j].ScheduledDate
		}
		return out[i].StoreCode < out[j].StoreCode
	})
	e.logger.Info("missed pickups evaluated",
		"start", start.Format(domain.DateOnly),
		"end", end.Format(domain.DateOnly),
		"found", len(out))
	return out, nil
}

func (e *Engine) activeSchedules(ctx context.Context) ([]scheduleRow, error) {
	rs, err := e.store.Select(ctx, `
		SELECT ps.location_id, l.store_code, l.name, l.avg_daily_volume,
		       ps.day_of_week, ps.scheduled_time, c.name
		FROM pickup_schedules ps
		JOIN locations l ON l.id = ps.location_id
		JOIN carriers c ON c.id = ps.carrier_id
		WHERE ps.active = 1`)
	if err != nil {
		return nil, err
	}
	out := make([]scheduleRow, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		out = append(out, scheduleRow{
			locationID: int64(asInt(r[0])),
			storeCode:  asString(r[1]),
			name:       asString(r[2]),
			avgVolume:  asFloat(r[3]),
			dayOfWeek:  asInt(r[4]),
			timeOfDay:  asString(r[5]),
			carrier:    asString(r[6]),
		})
	}
	return out, nil
}

// completedDates returns, per location, the set of dates up to end with a
// completed outcome row.
func (e *Engine) completedDates(ctx context.Context, end time.Time) (map[int64]map[string]bool, error) {
	rs, err := e.store.Select(ctx, `
		SELECT location_id, scheduled_date
		FROM scheduled_pickups
		WHERE status = ? AND scheduled_date <= ?`,
		domain.PickupCompleted, end.Format(domain.DateOnly))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]map[string]bool)
	for _, r := range rs.Rows {
		id := int64(asInt(r[0]))
		if out[id] == nil {
			out[id] = make(map[string]bool)
		}
		out[id][asString(r[1])] = true
	}
	return out, nil
}

// trailingAverages computes the per-location mean daily deposit over the
// window ending at end.
func (e *Engine) trailingAverages(ctx context.Context, end time.Time, windowDays int) (map[int64]float64, error) {
	from := end.AddDate(0, 0, -windowDays).Format(domain.DateOnly)
	rs, err := e.store.Select(ctx, `
		SELECT location_id, AVG(amount)
		FROM deposits
		WHERE deposit_date > ? AND deposit_date <= ?
		GROUP BY location_id`,
		from, end.Format(domain.DateOnly))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(rs.Rows))
	for _, r := range rs.Rows {
		out[int64(asInt(r[0]))] = asFloat(r[1])
	}
	return out, nil
}

func lastCompletedBefore(dates map[string]bool, day time.Time) time.Time {
	var best time.Time
	for ds := range dates {
		t, ok := parseDate(ds)
		if !ok {
			continue
		}
		if t.Before(day) && t.After(best) {
			best = t
		}
	}
	return best
}

func (m MissedPickup) summary() string {
	return fmt.Sprintf("missed pickup at %s (%s) on %s: ~$%.0f uncollected after %d day(s)",
		m.LocationName, m.StoreCode, m.ScheduledDate, m.CashAtRisk, m.DaysSince)
}
