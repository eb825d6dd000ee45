package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cashops/internal/domain"
	"cashops/internal/metrics"
	"cashops/internal/rules"
	"cashops/internal/store"
)

// Dispatcher routes validated tool calls to the store and the rule engine.
type Dispatcher struct {
	store      *store.Store
	engine     *rules.Engine
	thresholds rules.Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

func NewDispatcher(st *store.Store, engine *rules.Engine, th rules.Thresholds, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:      st,
		engine:     engine,
		thresholds: th,
		logger:     logger.With("component", "tools"),
		now:        time.Now,
	}
}

// WriteResult reports the outcome of a mutating statement.
type WriteResult struct {
	RowsAffected int64 `json:"rowsAffected"`
}

// Dispatch executes one tool call. Argument decoding happens before any
// store access, so invalid calls are rejected without touching the database.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, args map[string]any) (any, error) {
	began := time.Now()
	result, err := d.dispatch(ctx, kind, args)
	elapsed := time.Since(began)

	label := fmt.Sprintf("tool=%q", kind.Name())
	metrics.Collector.Counter("cashops_tool_calls_total", "Tool invocations by tool name.", label).Inc()
	if err != nil {
		metrics.Collector.Counter("cashops_tool_errors_total", "Failed tool invocations by tool name.", label).Inc()
		d.logger.Warn("tool call failed", "tool", kind.Name(), "kind", domain.KindOf(err), "elapsed", elapsed, "error", err)
		return nil, err
	}
	d.logger.Info("tool call served", "tool", kind.Name(), "elapsed", elapsed)
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, args map[string]any) (any, error) {
	switch kind {
	case KindListTables:
		return d.store.ListTables(ctx)

	case KindDescribeTable:
		name, err := stringArg(args, "table_name")
		if err != nil {
			return nil, err
		}
		return d.store.DescribeTable(ctx, name)

	case KindReadQuery:
		query, err := stringArg(args, "query")
		if err != nil {
			return nil, err
		}
		return d.store.ReadQuery(ctx, query)

	case KindWriteQuery:
		query, err := stringArg(args, "query")
		if err != nil {
			return nil, err
		}
		affected, err := d.store.WriteQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return WriteResult{RowsAffected: affected}, nil

	case KindMissedPickups:
		start, err := dateArg(args, "start_date")
		if err != nil {
			return nil, err
		}
		end, err := dateArg(args, "end_date")
		if err != nil {
			return nil, err
		}
		return d.engine.MissedPickups(ctx, start, end, d.thresholds)

	case KindRiskScore:
		asOf, err := optionalDateArg(args, "as_of_date", d.now().UTC().Truncate(24*time.Hour))
		if err != nil {
			return nil, err
		}
		return d.engine.HighRiskLocations(ctx, asOf, d.thresholds)

	case KindScheduleMismatch:
		return d.engine.ScheduleMismatches(ctx, d.thresholds)

	case KindConsolidation:
		return d.engine.ConsolidationOpportunities(ctx, d.thresholds)
	}
	return nil, domain.NewError(domain.ErrUnknownTool, "unknown tool kind %d", int(kind))
}
