package storage

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

var pageTables = map[string]map[string]any{
	"Storage Type": {
		"headers": []string{"Storage Type", "Limit", "Used", "Percent Used"},
		"rows": [][]string{
			{"Data Storage", "5.2 GB", "1.1 GB", "21%"},
			{"File Storage", "12.0 GB", "3.4 GB", "28%"},
			{"Big Object Storage", "1,000,000", "0", "0%"},
			{"Extra", "1", "1", "100%"},
		},
	},
	"Record Type": {
		"headers": []string{"Record Type", "Record Count", "Storage", "Percent"},
		"rows":    [][]string{{"Accounts", "12,345", "24.1 MB", "2%"}, {"", "", "", ""}},
	},
	"User": {
		"headers": []string{"User", "Storage", "Percent"},
		"rows":    [][]string{{"Jane Admin", "300 MB", "27%"}},
	},
}

// tablesByHeader answers the tables routine with the table whose signature
// starts with the requested first header.
func tablesByHeader(_ context.Context, _ probe.Tab, call probe.Call) (any, error) {
	headers := call.Args.(map[string]any)["headers"].([]string)
	if t, ok := pageTables[headers[0]]; ok {
		return map[string]any{"tables": []any{t}}, nil
	}
	return map[string]any{"tables": []any{}}, nil
}

func navStub() *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true})
}

func testModule() *Module {
	m := newModule()
	m.Pacing = pageflow.Pacing{}
	return m
}

func TestScrape(t *testing.T) {
	stub := navStub().On("tables", tablesByHeader)
	raw, err := testModule().Scrape(context.Background(), engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab})
	require.NoError(t, err)

	d := raw.(*Data)
	require.Len(t, d.Overview, maxOverviewRows)
	assert.Equal(t, Overview{StorageType: "Data Storage", Limit: "5.2 GB", Used: "1.1 GB", PercentUsed: "21%"}, d.Overview[0])
	require.Len(t, d.Objects, 1)
	assert.Equal(t, 12345, d.Objects[0].RecordCount)
	require.Len(t, d.TopUsers, 1)
	assert.Equal(t, "Jane Admin", d.TopUsers[0].User)
	assert.Equal(t, 1, d.Attempts)
}

func TestScrape_RetriesWhileEmpty(t *testing.T) {
	stub := navStub().Sequence("tables",
		map[string]any{"tables": []any{}},
		map[string]any{"tables": []any{}},
		map[string]any{"tables": []any{}},
		map[string]any{"tables": []any{pageTables["Storage Type"]}},
	)
	m := testModule()
	m.Pacing.RetryAttempts = 3

	raw, err := m.Scrape(context.Background(), engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab})
	require.NoError(t, err)
	d := raw.(*Data)
	assert.Equal(t, 2, d.Attempts)
	assert.Len(t, d.Overview, 3)
}

func TestFormatAndPayload(t *testing.T) {
	d := &Data{
		Overview:   []Overview{{StorageType: "Data Storage", Limit: "5.2 GB", Used: "1.1 GB", PercentUsed: "21%"}},
		Objects:    []ObjectUsage{{RecordType: "Accounts", RecordCount: 12345, Storage: "24.1 MB", Percent: "2%"}},
		CapturedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	m := newModule()
	out := m.Format(d)
	assert.Contains(t, out, "STORAGE OVERVIEW\nStorage Type\tLimit\tUsed\tPercent Used\nData Storage\t5.2 GB\t1.1 GB\t21%\n")
	assert.Contains(t, out, "Accounts\t12345\t24.1 MB\t2%\n")
	assert.Contains(t, out, "TOP USERS BY DATA STORAGE USAGE\nUser\tStorage\tPercent\nNo records found\n")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"overview":{"rows":[{"storageType":"Data Storage","limit":"5.2 GB","used":"1.1 GB","percentUsed":"21%"}]},
		"dataStorageObjects":{"rows":[{"recordType":"Accounts","recordCount":12345,"storage":"24.1 MB","percent":"2%"}]},
		"topUsers":{"rows":[]}
	}`, string(encoded))
}
