// Package mcpserver exposes the tool set over the Model Context Protocol on
// stdio. It is pure wiring: every tool definition maps onto one dispatcher
// kind, and no business logic lives here.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"cashops/internal/domain"
	"cashops/internal/tools"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `Cash logistics analysis server. Use list_tables and
describe_table to discover the schema, read_query for ad-hoc SELECT analysis,
and the detect_*/score_*/find_* tools for pre-built rule evaluations over
pickup schedules, deposits and carrier costs. Days of week are 0=Monday
through 6=Sunday and dates are YYYY-MM-DD.`

// New builds the MCP server with every tool kind registered.
func New(dispatcher *tools.Dispatcher, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")

	s := server.NewMCPServer(
		"cashops",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, kind := range tools.Kinds() {
		s.AddTool(definition(kind), handler(dispatcher, kind, logger))
	}
	return s
}

// Serve runs the stdio session until the client disconnects. Protocol-level
// logging stays on stderr; stdout carries frames only.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func definition(kind tools.Kind) mcp.Tool {
	switch kind {
	case tools.KindListTables:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("List every table in the cash-logistics database."),
		)
	case tools.KindDescribeTable:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Describe the columns of one table: name, type, nullability, primary key."),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description("Table to describe, as returned by list_tables."),
			),
		)
	case tools.KindReadQuery:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Run a single read-only SQL statement (SELECT, WITH, EXPLAIN) and return rows."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("One retrieval statement. Mutations are rejected; use write_query."),
			),
		)
	case tools.KindWriteQuery:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Run a single mutating SQL statement and return the affected row count."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("One INSERT, UPDATE or DELETE statement."),
			),
		)
	case tools.KindMissedPickups:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Find scheduled pickups with no completed outcome in a date range, with cash-at-risk estimates."),
			mcp.WithString("start_date",
				mcp.Required(),
				mcp.Description("Range start, YYYY-MM-DD."),
			),
			mcp.WithString("end_date",
				mcp.Required(),
				mcp.Description("Range end, YYYY-MM-DD, inclusive."),
			),
		)
	case tools.KindRiskScore:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Score every location's uncollected-cash exposure and return the high-risk ones."),
			mcp.WithString("as_of_date",
				mcp.Description("Scoring date, YYYY-MM-DD. Defaults to today."),
			),
		)
	case tools.KindScheduleMismatch:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Flag locations whose pickup schedule diverges from their deposit pattern, including over- and under-serviced stores."),
		)
	case tools.KindConsolidation:
		return mcp.NewTool(kind.Name(),
			mcp.WithDescription("Find same-carrier same-day pickups at different times that could merge into one route."),
		)
	}
	// Kinds() is the closed registration set; an unlisted kind cannot reach
	// here.
	return mcp.NewTool(kind.Name())
}

func handler(dispatcher *tools.Dispatcher, kind tools.Kind, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := dispatcher.Dispatch(ctx, kind, req.GetArguments())
		if err != nil {
			return errorResult(err, logger), nil
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return errorResult(domain.WrapError(domain.ErrQueryError, err, "cannot encode result: %v", err), logger), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// errorResult encodes a failure as a structured {kind, message} tool error,
// so the client can branch on the kind instead of parsing prose.
func errorResult(err error, logger *slog.Logger) *mcp.CallToolResult {
	payload, merr := json.Marshal(map[string]string{
		"kind":    string(domain.KindOf(err)),
		"message": err.Error(),
	})
	if merr != nil {
		logger.Error("cannot encode tool error", "error", merr)
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(payload))
}
