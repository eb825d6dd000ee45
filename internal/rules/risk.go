package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cashops/internal/domain"
)

// RiskReport scores one location's uncollected-cash exposure as of a date.
type RiskReport struct {
	LocationID      int64   `json:"locationId"`
	StoreCode       string  `json:"storeCode"`
	LocationName    string  `json:"locationName"`
	AvgDailyVolume  float64 `json:"avgDailyVolume"`
	DaysSincePickup int     `json:"daysSincePickup"`
	CashExposure    float64 `json:"cashExposure"`
	HighRisk        bool    `json:"highRisk"`
	Reason          string  `json:"reason"`
}

// HighRiskLocations scores every location and reports the high-risk ones. A
// location is high risk when it is high volume and has gone more than a day
// without a completed pickup, or when cash has sat longer than the
// CashSittingHours limit regardless of volume.
func (e *Engine) HighRiskLocations(ctx context.Context, asOf time.Time, th Thresholds) ([]RiskReport, error) {
	rs, err := e.store.Select(ctx, `
		SELECT l.id, l.store_code, l.name, l.avg_daily_volume,
		       MAX(CASE WHEN sp.status = ? AND sp.scheduled_date <= ? THEN sp.scheduled_date END),
		       MIN(d.deposit_date)
		FROM locations l
		LEFT JOIN scheduled_pickups sp ON sp.location_id = l.id
		LEFT JOIN deposits d ON d.location_id = l.id
		GROUP BY l.id`,
		domain.PickupCompleted, asOf.Format(domain.DateOnly))
	if err != nil {
		return nil, err
	}

	trailing, err := e.trailingAverages(ctx, asOf, th.TrailingWindowDays)
	if err != nil {
		return nil, err
	}

	sittingDays := th.CashSittingHours / 24
	var out []RiskReport
	for _, r := range rs.Rows {
		locationID := int64(asInt(r[0]))
		volume := asFloat(r[3])

		// With no completed pickup on record, cash has accumulated since
		// the first deposit we know about.
		ref := asString(r[4])
		if ref == "" {
			ref = asString(r[5])
		}
		since, ok := parseDate(ref)
		if !ok {
			continue
		}
		days := int(asOf.Sub(since).Hours() / 24)
		if days < 0 {
			days = 0
		}

		avg, hasAvg := trailing[locationID]
		if !hasAvg || avg <= 0 {
			avg = volume
		}

		report := RiskReport{
			LocationID:      locationID,
			StoreCode:       asString(r[1]),
			LocationName:    asString(r[2]),
			AvgDailyVolume:  volume,
			DaysSincePickup: days,
			CashExposure:    avg * float64(days),
		}
		switch {
		case volume >= th.HighVolume && days > 1:
			report.HighRisk = true
			report.Reason = fmt.Sprintf("high-volume store ($%.0f/day) uncollected for %d days", volume, days)
		case float64(days) > sittingDays:
			report.HighRisk = true
			report.Reason = fmt.Sprintf("cash sitting %d days, limit is %.1f", days, sittingDays)
		}
		if report.HighRisk {
			out = append(out, report)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CashExposure > out[j].CashExposure })
	e.logger.Info("risk scored", "asOf", asOf.Format(domain.DateOnly), "highRisk", len(out))
	return out, nil
}

func (r RiskReport) summary() string {
	return fmt.Sprintf("%s (%s): ~$%.0f exposed, %d day(s) since last pickup (%s)",
		r.LocationName, r.StoreCode, r.CashExposure, r.DaysSincePickup, r.Reason)
}
