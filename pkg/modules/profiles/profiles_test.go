package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
	"github.com/orginsights/insights/pkg/probe"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

var profileList = map[string]any{"tables": []any{map[string]any{
	"headers": []string{"Action", "Profile Name", "User License", "Custom"},
	"rows": [][]string{
		{"Edit", "System Administrator", "Salesforce", "Not Checked"},
		{"Edit", "Sales Ops", "Salesforce", "Checked"},
	},
	"links": []string{"https://acme.my.salesforce.com/00e1", "https://acme.my.salesforce.com/00e2"},
}}}

var detailFields = map[string]map[string]string{
	"aux-1": {"Modify All Data": "Checked", "Run Reports": "Checked", "Export Reports": "Checked", "Active Users": "12"},
	"aux-2": {"Modify All Data": "Not Checked", "Run Reports": "Checked", "Export Reports": "Not Checked"},
}

func profileStub() *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true}).
		Return("tables", profileList)
}

func testModule() *Module {
	m := newModule()
	m.Pacing = pageflow.Pacing{}
	return m
}

func execCtx(stub *probetest.Stub, progress engine.ProgressFunc) engine.ExecutionContext {
	return engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab, Progress: progress}
}

func TestScrape_InspectsEveryProfileOnItsOwnSurface(t *testing.T) {
	stub := profileStub().On("fields", func(_ context.Context, tab probe.Tab, _ probe.Call) (any, error) {
		return map[string]any{"fields": detailFields[tab.ID]}, nil
	})
	var progress []int

	raw, err := testModule().Scrape(context.Background(), execCtx(stub, func(p int, _ string) { progress = append(progress, p) }))
	require.NoError(t, err)

	d := raw.(*Data)
	require.Len(t, d.Profiles, 2)
	admin := d.Profiles[0]
	assert.Equal(t, "System Administrator", admin.ProfileName)
	assert.Equal(t, "Standard", admin.ProfileType)
	assert.True(t, admin.ModifyAllData)
	assert.Equal(t, 12, admin.ActiveUserCount)
	ops := d.Profiles[1]
	assert.Equal(t, "Custom", ops.ProfileType)
	assert.False(t, ops.ModifyAllData)
	assert.True(t, ops.RunReports)

	assert.Equal(t, 2, d.Inspected)
	assert.Equal(t, 2, stub.Opened())
	assert.Equal(t, 0, stub.Leaked())
	assert.Equal(t, []int{0, 10, 52, 95, 100}, progress)
}

func TestScrape_SurfaceReleasedOnError(t *testing.T) {
	stub := profileStub().Fail("fields", errors.New("detail page crashed"))

	_, err := testModule().Scrape(context.Background(), execCtx(stub, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `inspect profile "System Administrator"`)
	assert.Equal(t, 1, stub.Opened())
	assert.Equal(t, 0, stub.Leaked())
}

func TestScrape_OpenFailure(t *testing.T) {
	stub := profileStub().FailOpen(errors.New("no more targets"))
	_, err := testModule().Scrape(context.Background(), execCtx(stub, nil))
	require.Error(t, err)
	assert.Equal(t, 0, stub.Leaked())
}

func TestScrape_DetailsDisabledOrCapped(t *testing.T) {
	stub := profileStub().Return("fields", map[string]any{"fields": map[string]string{}})
	m := testModule()
	require.NoError(t, m.Configure(map[string]any{"max_profiles": 1}))

	raw, err := m.Scrape(context.Background(), execCtx(stub, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, raw.(*Data).Inspected)
	assert.Equal(t, 1, stub.Opened())

	stub = profileStub()
	m = testModule()
	require.NoError(t, m.Configure(map[string]any{"inspect_details": "false"}))
	raw, err = m.Scrape(context.Background(), execCtx(stub, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, raw.(*Data).Inspected)
	assert.Equal(t, 0, stub.Opened())
}

func TestConfigure_Invalid(t *testing.T) {
	assert.Error(t, newModule().Configure(map[string]any{"max_profiles": -2}))
	assert.Error(t, newModule().Configure(map[string]any{"inspect_details": "sometimes"}))
}

func TestFormatAndPayload(t *testing.T) {
	d := &Data{
		Profiles:   []Profile{{ProfileName: "System Administrator", UserLicense: "Salesforce", ProfileType: "Standard", ActiveUserCount: 3, ModifyAllData: true}},
		Inspected:  1,
		CapturedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	m := newModule()
	out := m.Format(d)
	assert.Contains(t, out, "Profiles With Modify All Data: 1\n")
	assert.Contains(t, out, "System Administrator\tSalesforce\tStandard\t3\tYes\tNo\tNo\n")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	assert.JSONEq(t, `{"profiles":[{"profileName":"System Administrator","userLicense":"Salesforce","profileType":"Standard","activeUserCount":3,"modifyAllData":true,"runReports":false,"exportReports":false}]}`, string(encoded))

	encoded, err = json.Marshal(m.StructuredPayload(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"profiles":[]}`, string(encoded))
}

// largeOrg lists n profiles whose detail pages each take delay to read.
func largeOrg(n int, delay time.Duration) *probetest.Stub {
	rows := make([][]string, n)
	links := make([]string, n)
	for i := range rows {
		rows[i] = []string{"Edit", fmt.Sprintf("Profile %02d", i+1), "Salesforce", "Checked"}
		links[i] = fmt.Sprintf("https://acme.my.salesforce.com/00e%d", i+1)
	}
	list := map[string]any{"tables": []any{map[string]any{
		"headers": []string{"Action", "Profile Name", "User License", "Custom"},
		"rows":    rows,
		"links":   links,
	}}}
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true}).
		Return("tables", list).
		On("fields", func(ctx context.Context, _ probe.Tab, _ probe.Call) (any, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return map[string]any{"fields": map[string]string{"Modify All Data": "Checked"}}, nil
		})
}

func TestScrape_StopsInspectingBeforeDeadline(t *testing.T) {
	stub := largeOrg(8, 100*time.Millisecond)
	m := testModule()
	m.detailReserve = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	raw, err := m.Scrape(ctx, execCtx(stub, nil))
	require.NoError(t, err)

	d := raw.(*Data)
	assert.Len(t, d.Profiles, 8)
	assert.True(t, d.Truncated)
	assert.Greater(t, d.Inspected, 0)
	assert.Less(t, d.Inspected, 8)
	assert.True(t, d.Profiles[0].ModifyAllData)
	assert.False(t, d.Profiles[7].ModifyAllData)
	assert.Equal(t, 0, stub.Leaked())
	assert.Contains(t, m.Format(d), "Detail inspection stopped early")
}

func TestRun_LargeOrgStillSucceedsWithinTimeout(t *testing.T) {
	stub := largeOrg(12, 80*time.Millisecond)
	m := testModule()
	require.NoError(t, m.Configure(map[string]any{"timeout": "500ms", "detail_reserve": "60ms"}))

	results := engine.NewOrchestrator(zerolog.Nop()).WithModuleDelay(0).
		Run(context.Background(), execCtx(stub, nil), []engine.Module{m}, nil)

	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)
	payload := results[0].Payload.(Payload)
	assert.Len(t, payload.Profiles, 12)
	assert.Less(t, results[0].Raw.(*Data).Inspected, 12)
}

func TestScrape_NoDeadlineInspectsEverything(t *testing.T) {
	stub := largeOrg(5, 0)
	raw, err := testModule().Scrape(context.Background(), execCtx(stub, nil))
	require.NoError(t, err)
	d := raw.(*Data)
	assert.Equal(t, 5, d.Inspected)
	assert.False(t, d.Truncated)
}

func TestInspect_PollsUntilPermissionsRender(t *testing.T) {
	stub := profileStub().Sequence("fields",
		map[string]any{"fields": map[string]string{}},
		map[string]any{"fields": map[string]string{"Profile Name": "System Administrator"}},
		map[string]any{"fields": map[string]string{"Modify All Data": "Checked", "Run Reports": "Checked"}},
	)
	m := testModule()
	require.NoError(t, m.Configure(map[string]any{"max_profiles": 1}))
	m.Pacing.PollAttempts = 5

	raw, err := m.Scrape(context.Background(), execCtx(stub, nil))
	require.NoError(t, err)
	assert.True(t, raw.(*Data).Profiles[0].ModifyAllData)
	assert.Equal(t, 3, stub.Count("fields"))
}

func TestConfigure_DetailReserve(t *testing.T) {
	m := newModule()
	assert.Equal(t, DefaultDetailReserve, m.detailReserve)
	require.NoError(t, m.Configure(map[string]any{"detail_reserve": "2s"}))
	assert.Equal(t, 2*time.Second, m.detailReserve)
	assert.Error(t, newModule().Configure(map[string]any{"detail_reserve": "-1s"}))
}

func TestRun_NavigationFailureBecomesFailedResult(t *testing.T) {
	stub := profileStub().Fail(pageflow.RoutineSearch.Name, errors.New("link not found"))
	var kinds []engine.EventKind
	sink := engine.SinkFunc(func(e engine.Event) { kinds = append(kinds, e.Kind) })

	results := engine.NewOrchestrator(zerolog.Nop()).WithModuleDelay(0).
		Run(context.Background(), execCtx(stub, nil), []engine.Module{testModule()}, sink)

	require.Len(t, results, 1)
	r := results[0]
	assert.False(t, r.Success)
	assert.Equal(t, "profiles", r.ModuleID)
	assert.Equal(t, "2_profiles", r.Filename)
	assert.Contains(t, r.Error, "link not found")
	assert.Equal(t, "Error: link not found", r.Formatted)
	assert.Nil(t, r.Payload)
	assert.Equal(t, 0, stub.Count(pageflow.RoutineClickExact.Name))

	assert.Equal(t, []engine.EventKind{
		engine.EventModuleStarted, engine.EventModuleProgress, engine.EventModuleError,
		engine.EventModuleCompleted, engine.EventRunComplete,
	}, kinds)
}
