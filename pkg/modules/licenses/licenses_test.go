package licenses

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

var licenseHeaderRow = []string{"Name", "Status", "Total Licenses", "Used Licenses", "Remaining Licenses", "Expiration Date"}

func stubWithTables(tables ...any) *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true}).
		Return("tables", map[string]any{"tables": tables})
}

func testModule() *Module {
	m := newModule()
	m.Pacing = pageflow.Pacing{}
	return m
}

func TestScrape(t *testing.T) {
	stub := stubWithTables(
		map[string]any{
			"caption": "User Licenses",
			"headers": licenseHeaderRow,
			"rows": [][]string{
				{"Salesforce", "Active", "1,200", "1,150", "50", ""},
				{"", "", "", "", "", ""},
			},
		},
		map[string]any{
			"caption": "Permission Set Licenses",
			"headers": licenseHeaderRow,
			"rows":    [][]string{{"CRM User", "Active", "20", "4", "16", "12/31/2026"}},
		},
	)
	ec := engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab}

	raw, err := testModule().Scrape(context.Background(), ec)
	require.NoError(t, err)

	d := raw.(*Data)
	require.Len(t, d.UserLicenses, 1)
	assert.Equal(t, License{Name: "Salesforce", Status: "Active", Total: 1200, Used: 1150, Remaining: 50}, d.UserLicenses[0])
	require.Len(t, d.PermissionSetLicenses, 1)
	assert.Equal(t, "12/31/2026", d.PermissionSetLicenses[0].Expiration)
	assert.False(t, d.CapturedAt.IsZero())
}

func TestScrape_NoTablesReturnsEmptyData(t *testing.T) {
	stub := stubWithTables()
	m := testModule()
	m.Pacing.RetryAttempts = 2

	raw, err := m.Scrape(context.Background(), engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab})
	require.NoError(t, err)
	assert.Empty(t, raw.(*Data).UserLicenses)
	assert.Equal(t, 2, stub.Count("tables"))
}

func TestFromTables_UncaptionedFirstTableIsUserLicenses(t *testing.T) {
	d := fromTables([]pageflow.TableData{
		{Headers: licenseHeaderRow, Rows: [][]string{{"Salesforce", "Active", "10", "1", "9", ""}}},
		{Headers: licenseHeaderRow, Rows: [][]string{{"Analytics", "Active", "5", "5", "0", ""}}},
	})
	assert.Equal(t, "Salesforce", d.UserLicenses[0].Name)
	assert.Equal(t, "Analytics", d.PermissionSetLicenses[0].Name)
}

func TestFormatAndPayload(t *testing.T) {
	d := &Data{
		UserLicenses: []License{{Name: "Salesforce", Status: "Active", Total: 10, Used: 8, Remaining: 2}},
		CapturedAt:   time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	m := newModule()

	out := m.Format(d)
	assert.Equal(t, out, m.Format(d))
	assert.Contains(t, out, "Salesforce\tActive\t10\t8\t2\tN/A\n")
	assert.Contains(t, out, "PERMISSION SET LICENSES\n")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"userLicenses": [{"name":"Salesforce","status":"Active","total":10,"used":8,"remaining":2,"expiration":""}],
		"permissionSetLicenses": []
	}`, string(encoded))
	assert.Equal(t, "1_licenses", m.Filename())
}
