// Package seed creates and populates the demo cash-logistics database. It
// is the external seeding collaborator: the tool-server core only ever reads
// the schema this package creates.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"cashops/internal/domain"

	_ "modernc.org/sqlite"
)

var storePrefixes = []string{
	"Downtown", "Eastside", "Westgate", "Central", "Harbor", "Valley",
	"Highland", "Riverside", "Lakeside", "Summit", "Crossroads", "Plaza",
	"Market", "Gateway", "Parkway", "Metro", "Village", "Square",
}

// pickupDaysByFreq maps a weekly pickup frequency to its weekdays
// (0=Monday..6=Sunday).
var pickupDaysByFreq = map[int][]int{
	1: {1},             // Tuesday only
	2: {1, 4},          // Tuesday, Friday
	3: {0, 2, 4},       // Monday, Wednesday, Friday
	4: {0, 1, 3, 4},    // Mon, Tue, Thu, Fri
	5: {0, 1, 2, 3, 4}, // Mon-Fri
}

// Run generates a fresh demo database at dbPath. Any existing file is
// replaced. Generation is deterministic for a given profile seed.
func Run(ctx context.Context, dbPath string, p Profile, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("cannot create schema: %w", err)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -p.DaysOfHistory)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	carriers, err := insertCarriers(ctx, tx)
	if err != nil {
		return fmt.Errorf("carriers: %w", err)
	}

	locations, err := insertLocations(ctx, tx, p, rng)
	if err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	logger.Info("generated locations", "count", len(locations))

	schedules, err := insertSchedules(ctx, tx, locations, carriers, rng)
	if err != nil {
		return fmt.Errorf("schedules: %w", err)
	}

	nDeposits, err := insertDeposits(ctx, tx, locations, start, end, rng)
	if err != nil {
		return fmt.Errorf("deposits: %w", err)
	}
	logger.Info("generated deposits", "count", nDeposits, "days", p.DaysOfHistory)

	nPickups, nMissed, err := insertOutcomes(ctx, tx, p, locations, schedules, start, end, rng)
	if err != nil {
		return fmt.Errorf("outcomes: %w", err)
	}
	logger.Info("generated pickup outcomes", "count", nPickups, "missed", nMissed)

	if err := insertInvoices(ctx, tx, carriers, end, rng); err != nil {
		return fmt.Errorf("invoices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("database seeded", "path", dbPath)
	return nil
}

func insertCarriers(ctx context.Context, tx *sql.Tx) ([]domain.Carrier, error) {
	carriers := []domain.Carrier{
		{Name: "Meridian Armored", BasePickupCost: 21.50, PerMileCost: 1.85, OvertimeMultiplier: 1.5, MaxDailyStops: 40},
		{Name: "Ironclad Transit", BasePickupCost: 19.75, PerMileCost: 2.10, OvertimeMultiplier: 1.5, MaxDailyStops: 32},
	}

	for i, c := range carriers {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, overtime_rate_multiplier, max_daily_stops)
			 VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.BasePickupCost, c.PerMileCost, c.OvertimeMultiplier, c.MaxDailyStops)
		if err != nil {
			return nil, err
		}
		if carriers[i].ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return carriers, nil
}

func insertLocations(ctx context.Context, tx *sql.Tx, p Profile, rng *rand.Rand) ([]domain.Location, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO locations (store_code, name, region, avg_daily_volume, pickup_frequency, risk_tier, smart_safe, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	// regionAnchor gives each region a rough geographic center so the
	// consolidation distance gate has something to work with.
	regionAnchor := func(region string, i int) (float64, float64) {
		base := float64(i%len(p.Regions)) * 2.0
		return 40.0 + base + rng.Float64(), -96.0 + base + rng.Float64()
	}

	type spec struct {
		code      string
		name      string
		region    string
		freq      int
		avgVolume float64
		smartSafe bool
	}

	// The three scenario stores are always present: over-serviced,
	// under-serviced (the risk story), and a well-matched baseline.
	specials := []spec{
		{"342", "Westgate Commons #342", p.Regions[1%len(p.Regions)], 5, 1800, true},
		{"127", "Downtown Flagship #127", p.Regions[0], 2, 8200, false},
		{"089", "Central Plaza #089", p.Regions[2%len(p.Regions)], 3, 4500, true},
	}

	used := map[string]bool{"342": true, "127": true, "089": true}
	all := specials
	for len(all) < p.Locations {
		code := fmt.Sprintf("%03d", rng.Intn(999)+1)
		if used[code] {
			continue
		}
		used[code] = true

		avg := rng.NormFloat64()*1200 + 4500
		avg = max(2000, min(7000, avg))

		var freq int
		switch {
		case avg < 3000:
			freq = weighted(rng, []int{1, 2, 3}, []float64{0.3, 0.5, 0.2})
		case avg < 5000:
			freq = weighted(rng, []int{2, 3, 4}, []float64{0.3, 0.5, 0.2})
		default:
			freq = weighted(rng, []int{3, 4, 5}, []float64{0.2, 0.5, 0.3})
		}
		// Deliberate mismatches for the schedule-mismatch rule to find.
		if rng.Float64() < 0.15 {
			if avg > 5000 && freq > 3 {
				freq = rng.Intn(2) + 1
			} else if avg < 3500 && freq < 3 {
				freq = rng.Intn(2) + 4
			}
		}

		prefix := storePrefixes[rng.Intn(len(storePrefixes))]
		all = append(all, spec{
			code:      code,
			name:      fmt.Sprintf("%s #%s", prefix, code),
			region:    p.Regions[rng.Intn(len(p.Regions))],
			freq:      freq,
			avgVolume: float64(int(avg*100)) / 100,
			smartSafe: rng.Float64() < 0.4,
		})
	}

	var out []domain.Location
	for i, s := range all {
		loc := domain.Location{
			StoreCode:      s.code,
			Name:           s.name,
			Region:         s.region,
			AvgDailyVolume: s.avgVolume,
			PickupFreq:     s.freq,
			RiskTier:       "low",
			SmartSafe:      s.smartSafe,
		}
		switch {
		case loc.AvgDailyVolume >= 6000:
			loc.RiskTier = "high"
		case loc.AvgDailyVolume >= 3500:
			loc.RiskTier = "medium"
		}

		if rng.Float64() < 0.8 { // some sites have no surveyed coordinates
			la, ln := regionAnchor(loc.Region, i)
			loc.Latitude, loc.Longitude = &la, &ln
		}

		var lat, lng any
		if loc.Latitude != nil {
			lat, lng = *loc.Latitude, *loc.Longitude
		}
		res, err := stmt.ExecContext(ctx, loc.StoreCode, loc.Name, loc.Region, loc.AvgDailyVolume,
			loc.PickupFreq, loc.RiskTier, boolInt(loc.SmartSafe), lat, lng)
		if err != nil {
			return nil, err
		}
		if loc.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func insertSchedules(ctx context.Context, tx *sql.Tx, locations []domain.Location, carriers []domain.Carrier, rng *rand.Rand) ([]domain.PickupSchedule, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pickup_schedules (location_id, carrier_id, day_of_week, scheduled_time, route_sequence, active)
		 VALUES (?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var out []domain.PickupSchedule
	for i, loc := range locations {
		carrier := carriers[i%len(carriers)]
		for seq, day := range pickupDaysByFreq[loc.PickupFreq] {
			hh := rng.Intn(5) + 9 // 09:00 .. 13:45
			mm := []int{0, 15, 30, 45}[rng.Intn(4)]
			s := domain.PickupSchedule{
				LocationID:    loc.ID,
				CarrierID:     carrier.ID,
				DayOfWeek:     day,
				ScheduledTime: fmt.Sprintf("%02d:%02d", hh, mm),
				RouteSequence: seq + 1,
				Active:        true,
			}
			res, err := stmt.ExecContext(ctx, s.LocationID, s.CarrierID, s.DayOfWeek, s.ScheduledTime, s.RouteSequence)
			if err != nil {
				return nil, err
			}
			if s.ID, err = res.LastInsertId(); err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func insertDeposits(ctx context.Context, tx *sql.Tx, locations []domain.Location, start, end time.Time, rng *rand.Rand) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO deposits (location_id, deposit_date, deposit_time, amount, day_of_week)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, loc := range locations {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dow := domain.Weekday(d)
			base := loc.AvgDailyVolume
			if dow >= 5 { // weekend deposits run about 40% higher
				base *= 1.4
			}
			variation := rng.NormFloat64()*0.15 + 1.0
			variation = max(0.7, min(1.3, variation))
			amount := float64(int(base*variation*100)) / 100

			hh := rng.Intn(4) + 18
			depositTime := fmt.Sprintf("%02d:%02d:00", hh, rng.Intn(60))
			if _, err := stmt.ExecContext(ctx, loc.ID, d.Format(domain.DateOnly), depositTime, amount, dow); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func insertOutcomes(ctx context.Context, tx *sql.Tx, p Profile, locations []domain.Location, schedules []domain.PickupSchedule, start, end time.Time, rng *rand.Rand) (total, missed int, err error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheduled_pickups (schedule_id, location_id, scheduled_date, scheduled_time, actual_time, status,
		                                base_cost, fuel_surcharge, overtime_cost, insurance_cost, total_cost, cash_collected)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	// Pick the occurrences that become misses. Half are recorded with an
	// explicit 'missed' status, half leave no outcome row at all; both shapes
	// occur in real carrier feeds and both count as missed downstream.
	type occurrence struct {
		sched domain.PickupSchedule
		date  time.Time
	}
	var all []occurrence
	byLocation := make(map[int64][]domain.PickupSchedule)
	for _, s := range schedules {
		byLocation[s.LocationID] = append(byLocation[s.LocationID], s)
	}
	for _, loc := range locations {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dow := domain.Weekday(d)
			for _, s := range byLocation[loc.ID] {
				if s.DayOfWeek == dow {
					all = append(all, occurrence{sched: s, date: d})
				}
			}
		}
	}

	missedSet := make(map[int]bool)
	for len(missedSet) < p.MissedPickups && len(missedSet) < len(all) {
		missedSet[rng.Intn(len(all))] = true
	}

	locBy := make(map[int64]domain.Location)
	for _, l := range locations {
		locBy[l.ID] = l
	}

	for i, occ := range all {
		if missedSet[i] {
			missed++
			if missed%2 == 0 {
				if _, err := stmt.ExecContext(ctx,
					occ.sched.ID, occ.sched.LocationID, occ.date.Format(domain.DateOnly), occ.sched.ScheduledTime,
					nil, domain.PickupMissed, 0, 0, 0, 0, 0, nil); err != nil {
					return total, missed, err
				}
			}
			continue
		}

		loc := locBy[occ.sched.LocationID]
		status := domain.PickupCompleted
		actual := occ.sched.ScheduledTime
		overtime := 0.0
		if rng.Float64() < p.LatePickupPct {
			status = domain.PickupLate
			lateMin := rng.Intn(76) + 15
			actual = addMinutes(occ.sched.ScheduledTime, lateMin)
			overtime = 12.50
		} else {
			actual = addMinutes(occ.sched.ScheduledTime, rng.Intn(21)-10)
		}

		cash := loc.AvgDailyVolume * 7 / float64(loc.PickupFreq)
		base := 21.50
		fuel := float64(int(base*0.08*100)) / 100
		insurance := float64(int(cash*0.001*100)) / 100
		totalCost := base + fuel + overtime + insurance

		if _, err := stmt.ExecContext(ctx,
			occ.sched.ID, occ.sched.LocationID, occ.date.Format(domain.DateOnly), occ.sched.ScheduledTime,
			actual+":00", status, base, fuel, overtime, insurance, totalCost, cash); err != nil {
			return total, missed, err
		}
		total++
	}
	return total, missed, nil
}

func insertInvoices(ctx context.Context, tx *sql.Tx, carriers []domain.Carrier, end time.Time, rng *rand.Rand) error {
	for monthsAgo := 3; monthsAgo >= 1; monthsAgo-- {
		month := end.AddDate(0, -monthsAgo, 0).Format("2006-01")
		for _, carrier := range carriers {
			var stops int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM scheduled_pickups sp
				 JOIN pickup_schedules ps ON ps.id = sp.schedule_id
				 WHERE ps.carrier_id = ? AND substr(sp.scheduled_date, 1, 7) = ?
				   AND sp.status IN ('completed', 'late')`,
				carrier.ID, month).Scan(&stops)
			if err != nil {
				return err
			}
			if stops == 0 {
				stops = rng.Intn(201) + 200
			}
			perStop := float64(int((rng.Float64()*4+18.5)*100)) / 100
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO carrier_invoices (carrier_id, month, total_stops, cost_per_stop, total_amount)
				 VALUES (?, ?, ?, ?, ?)`,
				carrier.ID, month, stops, perStop, float64(stops)*perStop); err != nil {
				return err
			}
		}
	}
	return nil
}

func addMinutes(hhmm string, delta int) string {
	var hh, mm int
	fmt.Sscanf(hhmm, "%d:%d", &hh, &mm)
	total := hh*60 + mm + delta
	total = max(0, min(total, 23*60+59))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func weighted(rng *rand.Rand, values []int, weights []float64) int {
	r := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
