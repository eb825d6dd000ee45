// Package tools defines the closed set of tools the server exposes and the
// dispatcher that routes a named call, with validated arguments, to the store
// or the rule engine.
package tools

import (
	"fmt"
	"time"

	"cashops/internal/domain"
)

// Kind enumerates every tool the server ships. The set is closed: adding a
// tool means adding a Kind and extending the exhaustive switches below, and
// nothing is dispatched by bare string.
type Kind int

const (
	KindListTables Kind = iota
	KindDescribeTable
	KindReadQuery
	KindWriteQuery
	KindMissedPickups
	KindRiskScore
	KindScheduleMismatch
	KindConsolidation
)

// Name returns the wire name the tool is registered under.
func (k Kind) Name() string {
	switch k {
	case KindListTables:
		return "list_tables"
	case KindDescribeTable:
		return "describe_table"
	case KindReadQuery:
		return "read_query"
	case KindWriteQuery:
		return "write_query"
	case KindMissedPickups:
		return "detect_missed_pickups"
	case KindRiskScore:
		return "score_location_risk"
	case KindScheduleMismatch:
		return "detect_schedule_mismatches"
	case KindConsolidation:
		return "find_consolidation_opportunities"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds returns every tool kind in registration order.
func Kinds() []Kind {
	return []Kind{
		KindListTables,
		KindDescribeTable,
		KindReadQuery,
		KindWriteQuery,
		KindMissedPickups,
		KindRiskScore,
		KindScheduleMismatch,
		KindConsolidation,
	}
}

// KindFromName resolves a wire name back to its Kind. An unresolvable name is
// an unknown_tool error, never a silent fallback.
func KindFromName(name string) (Kind, error) {
	for _, k := range Kinds() {
		if k.Name() == name {
			return k, nil
		}
	}
	return 0, domain.NewError(domain.ErrUnknownTool, "unknown tool %q", name)
}

// Argument extraction is pure: it touches only the args map and never the
// store, so a bad call fails before any I/O.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", domain.NewError(domain.ErrInvalidArguments, "missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.NewError(domain.ErrInvalidArguments, "argument %q must be a string, got %T", key, v)
	}
	if s == "" {
		return "", domain.NewError(domain.ErrInvalidArguments, "argument %q must not be empty", key)
	}
	return s, nil
}

func dateArg(args map[string]any, key string) (time.Time, error) {
	s, err := stringArg(args, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(domain.DateOnly, s)
	if err != nil {
		return time.Time{}, domain.NewError(domain.ErrInvalidArguments, "argument %q must be a YYYY-MM-DD date, got %q", key, s)
	}
	return t, nil
}

// optionalDateArg returns fallback when the key is absent, but still rejects
// a present-but-malformed value.
func optionalDateArg(args map[string]any, key string, fallback time.Time) (time.Time, error) {
	if _, ok := args[key]; !ok {
		return fallback, nil
	}
	return dateArg(args, key)
}
