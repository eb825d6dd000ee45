package rules

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

// ConsolidationStop is one location inside a consolidation candidate group.
type ConsolidationStop struct {
	LocationID    int64  `json:"locationId"`
	StoreCode     string `json:"storeCode"`
	LocationName  string `json:"locationName"`
	ScheduledTime string `json:"scheduledTime"`
}

// Consolidation describes locations served by the same carrier on the same
// weekday at different times, which could share a single route.
type Consolidation struct {
	Carrier          string              `json:"carrier"`
	DayOfWeek        int                 `json:"dayOfWeek"` // 0=Monday..6=Sunday
	Stops            []ConsolidationStop `json:"stops"`
	MaxPairwiseKm    float64             `json:"maxPairwiseKm,omitempty"`
	EstimatedMonthly float64             `json:"estimatedMonthlySaving"`
}

// ConsolidationOpportunities groups active schedules by (carrier, weekday)
// and reports groups of two or more locations picked up at different times.
// When every member has surveyed coordinates, groups wider than
// MaxConsolidationKm are dropped; a single missing coordinate disables the
// distance gate for that group.
func (e *Engine) ConsolidationOpportunities(ctx context.Context, th Thresholds) ([]Consolidation, error) {
	rs, err := e.store.Select(ctx, `
		SELECT c.name, ps.day_of_week, ps.scheduled_time, c.base_pickup_cost,
		       l.id, l.store_code, l.name, l.latitude, l.longitude
		FROM pickup_schedules ps
		JOIN locations l ON l.id = ps.location_id
		JOIN carriers c ON c.id = ps.carrier_id
		WHERE ps.active = 1
		ORDER BY c.name, ps.day_of_week, ps.scheduled_time`)
	if err != nil {
		return nil, err
	}

	type member struct {
		stop     ConsolidationStop
		lat, lng float64
		located  bool
		baseCost float64
	}
	type groupKey struct {
		carrier string
		day     int
	}
	groups := make(map[groupKey][]member)
	for _, r := range rs.Rows {
		key := groupKey{carrier: asString(r[0]), day: asInt(r[1])}
		m := member{
			stop: ConsolidationStop{
				LocationID:    int64(asInt(r[4])),
				StoreCode:     asString(r[5]),
				LocationName:  asString(r[6]),
				ScheduledTime: asString(r[2]),
			},
			baseCost: asFloat(r[3]),
		}
		var okLat, okLng bool
		m.lat, okLat = asNullFloat(r[7])
		m.lng, okLng = asNullFloat(r[8])
		m.located = okLat && okLng
		groups[key] = append(groups[key], m)
	}

	var out []Consolidation
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		times := make(map[string]bool)
		for _, m := range members {
			times[m.stop.ScheduledTime] = true
		}
		if len(times) < 2 {
			continue
		}

		allLocated := true
		for _, m := range members {
			if !m.located {
				allLocated = false
				break
			}
		}
		var maxKm float64
		if allLocated {
			for i := range members {
				for j := i + 1; j < len(members); j++ {
					km := haversineKm(members[i].lat, members[i].lng, members[j].lat, members[j].lng)
					maxKm = math.Max(maxKm, km)
				}
			}
			if th.MaxConsolidationKm > 0 && maxKm > th.MaxConsolidationKm {
				continue
			}
		}

		// Merging n stops into one route saves n-1 base pickup charges
		// each week the route runs.
		saving := float64(len(members)-1) * members[0].baseCost * 4.33

		c := Consolidation{
			Carrier:          key.carrier,
			DayOfWeek:        key.day,
			MaxPairwiseKm:    maxKm,
			EstimatedMonthly: saving,
		}
		for _, m := range members {
			c.Stops = append(c.Stops, m.stop)
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Carrier != out[j].Carrier {
			return out[i].Carrier < out[j].Carrier
		}
		return out[i].DayOfWeek < out[j].DayOfWeek
	})
	e.logger.Info("consolidation opportunities evaluated", "found", len(out))
	return out, nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func (c Consolidation) summary() string {
	return fmt.Sprintf("%s could merge %d stops on day %d into one route (~$%.0f/month)",
		c.Carrier, len(c.Stops), c.DayOfWeek, c.EstimatedMonthly)
}
