package metrics

import (
	"strings"
	"testing"
)

func TestCounterIdentity(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("cashops_test_total", "help", `tool="x"`)
	b := c.Counter("cashops_test_total", "help", `tool="x"`)
	if a != b {
		t.Fatal("same name+labels returned distinct counters")
	}
	other := c.Counter("cashops_test_total", "help", `tool="y"`)
	if a == other {
		t.Fatal("distinct labels share a counter")
	}

	a.Inc()
	a.Add(2)
	if a.Value() != 3 {
		t.Errorf("counter value = %d, want 3", a.Value())
	}
	if other.Value() != 0 {
		t.Errorf("sibling counter value = %d, want 0", other.Value())
	}
}

func TestGauge(t *testing.T) {
	c := NewMetricsCollector()
	g := c.Gauge("cashops_open_sessions", "help", "")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 4 {
		t.Errorf("gauge value = %d, want 4", g.Value())
	}
}

func TestRenderExposition(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("cashops_tool_calls_total", "Tool invocations by tool name.", `tool="read_query"`).Add(7)
	c.Gauge("cashops_open_sessions", "Open stdio sessions.", "").Set(1)

	out := c.Render()
	for _, want := range []string{
		"# TYPE cashops_uptime_seconds gauge",
		"# HELP cashops_tool_calls_total Tool invocations by tool name.",
		"# TYPE cashops_tool_calls_total counter",
		`cashops_tool_calls_total{tool="read_query"} 7`,
		"cashops_open_sessions 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q\n%s", want, out)
		}
	}
}
