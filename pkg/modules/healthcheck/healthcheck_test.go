package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

var riskTables = map[string]any{"tables": []any{
	map[string]any{
		"caption": "High-Risk Security Settings",
		"headers": []string{"Status", "Setting", "Group", "Your Value", "Standard Value"},
		"rows": [][]string{
			{"Critical", "Minimum password length", "Password Policies", "5", "8"},
		},
	},
	map[string]any{
		"caption": "Medium-Risk Security Settings",
		"headers": []string{"Status", "Setting", "Group", "Your Value", "Standard Value"},
		"rows": [][]string{
			{"Warning", "Lockout effective period", "Password Policies", "15 minutes", "30 minutes"},
			{"Compliant", "Require HttpOnly", "Session Settings", "Checked", "Checked"},
		},
	},
	map[string]any{
		"caption": "Informational Security Settings",
		"headers": []string{"Status", "Setting", "Group", "Your Value", "Standard Value"},
		"rows":    [][]string{{"Compliant", "Clickjack protection", "Session Settings", "Checked", "Checked"}},
	},
}}

func navigableStub() *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true, "rows": 4}).
		Return("expand", map[string]any{"expanded": 2})
}

func newTestModule() *Module {
	m := newModule()
	m.Pacing = pageflow.Pacing{RetryAttempts: 3}
	return m
}

func execContext(stub *probetest.Stub, progress engine.ProgressFunc) engine.ExecutionContext {
	return engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab, Customer: "Acme", Progress: progress}
}

func TestDescriptor(t *testing.T) {
	m := newModule()
	assert.Equal(t, "health-check", m.Descriptor().ID)
	assert.Equal(t, 150*time.Second, m.Descriptor().Timeout)
	assert.Equal(t, "4_health_check", m.Filename())
}

func TestScrape_ReadsScoreAndRisks(t *testing.T) {
	stub := navigableStub().
		Return("text", map[string]any{"found": true, "text": "87%"}).
		Return("tables", riskTables)
	var progress []int
	m := newTestModule()

	raw, err := m.Scrape(context.Background(), execContext(stub, func(p int, _ string) { progress = append(progress, p) }))
	require.NoError(t, err)

	d := raw.(*Data)
	assert.InDelta(t, 87.0, d.Percentage, 0.001)
	assert.Len(t, d.Items[RiskHigh], 1)
	assert.Len(t, d.Items[RiskMedium], 2)
	assert.Len(t, d.Items[RiskInformational], 1)
	assert.Equal(t, 1, d.Attempts)
	assert.True(t, d.Ready)
	assert.Equal(t, []int{0, 25, 50, 75, 100}, progress)
	assert.Equal(t, 1, stub.Count("expand"))
}

func TestScrape_RetriesWhileEmpty(t *testing.T) {
	empty := map[string]any{"tables": []any{}}
	stub := navigableStub().
		Sequence("text", map[string]any{"found": false, "text": ""}, map[string]any{"found": true, "text": "92%"}).
		Sequence("tables", empty, riskTables)
	m := newTestModule()

	raw, err := m.Scrape(context.Background(), execContext(stub, nil))
	require.NoError(t, err)

	d := raw.(*Data)
	assert.Equal(t, 2, d.Attempts)
	assert.InDelta(t, 92.0, d.Percentage, 0.001)
	assert.Equal(t, 2, stub.Count("tables"))
}

func TestScrape_EmptyAfterAllAttemptsIsNotAnError(t *testing.T) {
	stub := navigableStub().
		Return("text", map[string]any{"found": false, "text": ""}).
		Return("tables", map[string]any{"tables": []any{}})
	m := newTestModule()

	raw, err := m.Scrape(context.Background(), execContext(stub, nil))
	require.NoError(t, err)
	d := raw.(*Data)
	assert.Equal(t, 3, d.Attempts)
	assert.Zero(t, d.rows())
}

func TestScrape_NotReadySkipsExpandAndStillScrapes(t *testing.T) {
	stub := probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": false}).
		Return("text", map[string]any{"found": true, "text": "50%"}).
		Return("tables", riskTables)
	m := newTestModule()
	m.Pacing.PollAttempts = 3

	raw, err := m.Scrape(context.Background(), execContext(stub, nil))
	require.NoError(t, err)
	assert.False(t, raw.(*Data).Ready)
	assert.Equal(t, 0, stub.Count("expand"))
	assert.Equal(t, 3, stub.Count("ready"))
}

func TestScrape_NavigationErrorPropagates(t *testing.T) {
	stub := probetest.New().
		Return("search", map[string]any{"found": true}).
		Fail("click.exact", errors.New("link not found"))

	_, err := newTestModule().Scrape(context.Background(), execContext(stub, nil))
	require.EqualError(t, err, "link not found")
	assert.Equal(t, 0, stub.Count("ready"))
}

func TestFormatAndPayload(t *testing.T) {
	d := &Data{
		Percentage: 87,
		Items: map[Risk][]Item{
			RiskHigh: {{Status: "Critical", Setting: "Minimum password length", Group: "Password Policies", YourValue: "5", StandardValue: "8"}},
		},
		Attempts:   1,
		Ready:      true,
		CapturedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
	m := newModule()

	out := m.Format(d)
	assert.Equal(t, out, m.Format(d))
	assert.Contains(t, out, "Health Check Score: 87%\n")
	assert.Contains(t, out, "Generated: 2026-10-16T09:00:00Z\n")
	assert.Contains(t, out, "Critical\tMinimum password length\tPassword Policies\t5\t8\n")
	assert.NotContains(t, out, "did not finish rendering")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(encoded, &payload))
	assert.Equal(t, "87%", payload["percentage"])
	assert.Equal(t, 87.0, payload["score"])
	assert.Len(t, payload["highRisk"], 1)
	assert.Equal(t, []any{}, payload["lowRisk"])
	item := payload["highRisk"].([]any)[0].(map[string]any)
	assert.Equal(t, "5", item["yourValue"])
	assert.Equal(t, "8", item["standardValue"])
}

func TestFormat_ToleratesUnexpectedRaw(t *testing.T) {
	m := newModule()
	out := m.Format(nil)
	assert.True(t, strings.HasPrefix(out, "HEALTH CHECK\n"))
	assert.Contains(t, out, "Health Check Score: 0%")
	assert.NotNil(t, m.StructuredPayload("garbage"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, RiskLow, classify("Low-Risk Security Settings", 0))
	assert.Equal(t, RiskMedium, classify("", 1))
	assert.Equal(t, RiskInformational, classify("", 9))
}

func TestConfigure(t *testing.T) {
	m := newModule()
	require.NoError(t, m.Configure(map[string]any{"timeout": "3m", "poll_attempts": 5, "settle_delay": "1s"}))
	assert.Equal(t, 3*time.Minute, m.Descriptor().Timeout)
	assert.Equal(t, 5, m.Pacing.PollAttempts)
	assert.Equal(t, time.Second, m.Pacing.SettleDelay)
	assert.Error(t, m.Configure(map[string]any{"poll_attempts": "many"}))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, engine.RegisteredModuleIDs(), "health-check")
}
