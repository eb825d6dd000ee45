// Package rules implements the analytic rule engine: missed-pickup detection,
// risk scoring, schedule-mismatch detection and consolidation-opportunity
// detection over the cash-logistics store. Every rule is read-only and
// deterministic for a fixed database state.
package rules

import (
	"log/slog"
	"time"

	"cashops/internal/config"
	"cashops/internal/domain"
	"cashops/internal/store"
)

// Thresholds carries every tunable a rule consults. Callers pass it
// explicitly on each invocation; rules never read configuration themselves.
type Thresholds struct {
	HighVolume             float64 // dollars/day considered high volume
	CashSittingHours       float64 // uncollected-cash age limit
	TrailingWindowDays     int     // deposit-average window
	MismatchTolerance      int     // modal-day circular distance allowed
	SLACreditPerMiss       float64
	OverServiceMaxVolume   float64
	OverServiceMinPickups  int
	UnderServiceMinVolume  float64
	UnderServiceMaxPickups int
	MaxConsolidationKm     float64 // 0 disables the distance gate
}

// ThresholdsFromConfig flattens the rules section of the runtime config.
func ThresholdsFromConfig(rc config.RulesConfig) Thresholds {
	return Thresholds{
		HighVolume:             rc.HighVolumeThreshold,
		CashSittingHours:       rc.CashSittingHours,
		TrailingWindowDays:     rc.TrailingWindowDays,
		MismatchTolerance:      rc.MismatchToleranceDays,
		SLACreditPerMiss:       rc.SLACreditPerMiss,
		OverServiceMaxVolume:   rc.OverService.DailyVolume,
		OverServiceMinPickups:  rc.OverService.WeeklyPickups,
		UnderServiceMinVolume:  rc.UnderService.DailyVolume,
		UnderServiceMaxPickups: rc.UnderService.WeeklyPickups,
		MaxConsolidationKm:     rc.Consolidation.MaxDistanceKm,
	}
}

// Engine evaluates rules against a store. It holds no mutable state.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

func NewEngine(st *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, logger: logger.With("component", "rules")}
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(domain.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Result-set cells come back from the driver as int64, float64, string or
// nil; these coercions keep the rule bodies readable.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func asNullFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return asFloat(v), true
}
