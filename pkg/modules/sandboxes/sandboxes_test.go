package sandboxes

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
	"github.com/orginsights/insights/pkg/probe"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

var (
	licenseTable = map[string]any{
		"headers": []string{"Type", "Used", "Allowance"},
		"rows": [][]string{
			{"Developer", "3", "25"}, {"Developer Pro", "1", "5"},
			{"Partial Copy", "0", "1"}, {"Full", "1", "1"}, {"Scratch", "0", "0"},
		},
	}
	listTable = map[string]any{
		"headers": []string{"Action", "Name", "Type", "Status", "Location", "Release Type", "Current Org Id", "Completed On", "Description", "Copied From"},
		"rows": [][]string{
			{"Refresh | Delete", "uat", "Full", "Completed", "CS42", "Current", "00D1", "10/1/2026", "UAT", ""},
		},
	}
)

func stub(ready bool) *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": ready}).
		On("tables", func(_ context.Context, _ probe.Tab, call probe.Call) (any, error) {
			headers := call.Args.(map[string]any)["headers"].([]string)
			if headers[0] == "Type" {
				return map[string]any{"tables": []any{licenseTable}}, nil
			}
			return map[string]any{"tables": []any{listTable}}, nil
		})
}

func testModule() *Module {
	m := newModule()
	m.Pacing = pageflow.Pacing{PollAttempts: 2}
	return m
}

func TestScrape(t *testing.T) {
	raw, err := testModule().Scrape(context.Background(), engine.ExecutionContext{Probe: stub(true), Tab: probetest.DefaultTab})
	require.NoError(t, err)

	d := raw.(*Data)
	require.Len(t, d.Licenses, maxLicenseRows)
	assert.Equal(t, License{Type: "Developer", Used: 3, Allowance: 25}, d.Licenses[0])
	require.Len(t, d.Sandboxes, 1)
	assert.Equal(t, Sandbox{
		Name: "uat", Type: "Full", Status: "Completed", Location: "CS42", ReleaseType: "Current",
		CurrentOrgID: "00D1", CompletedOn: "10/1/2026", Description: "UAT",
	}, d.Sandboxes[0])
	assert.True(t, d.Ready)
}

func TestScrape_NotReadyStillScrapes(t *testing.T) {
	s := stub(false)
	raw, err := testModule().Scrape(context.Background(), engine.ExecutionContext{Probe: s, Tab: probetest.DefaultTab})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count("ready"))
	assert.False(t, raw.(*Data).Ready)
	assert.Contains(t, newModule().Format(raw), "did not finish rendering")
}

func TestFormatAndPayload(t *testing.T) {
	d := &Data{
		Licenses:   []License{{Type: "Full", Used: 1, Allowance: 1}},
		Ready:      true,
		CapturedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	m := newModule()
	out := m.Format(d)
	assert.Contains(t, out, "AVAILABLE SANDBOX LICENSES\nType\tUsed\tAllowance\nFull\t1\t1\n")
	assert.Contains(t, out, "Total Sandboxes: 0\n")
	assert.Contains(t, out, "No records found\n")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	assert.JSONEq(t, `{"licenses":[{"type":"Full","used":1,"allowance":1}],"rows":[]}`, string(encoded))
}
