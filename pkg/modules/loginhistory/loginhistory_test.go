package loginhistory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
	"github.com/orginsights/insights/pkg/probe"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

const exportCSV = "\ufeffUsername,Login Time,Source IP,Login Type,Status,Browser,Application,Country\n" +
	"jane@acme.com,2026-10-15 08:00,10.0.0.1,Application,Success,Chrome 129,Browser,Germany\n" +
	"joe@acme.com,2026-10-15 08:05,10.0.0.2,Application,Invalid Password,Firefox,Browser,France\n" +
	"api@acme.com,2026-10-15 09:00,10.0.0.3,Remote Access 2.0,Success,Unknown,Dataloader,United States\n"

var pageTable = map[string]any{"tables": []any{map[string]any{
	"headers": []string{"Login Time", "Username", "Source IP", "Login Type", "Status", "Browser", "Application", "Country"},
	"rows": [][]string{
		{"10/15/2026 8:00 AM", "jane@acme.com", "10.0.0.1", "Application", "Success", "Chrome", "Browser", "Germany"},
	},
}}}

func navStub() *probetest.Stub {
	return probetest.New().
		Return("search", map[string]any{"found": true}).
		Return("click.exact", map[string]any{"clicked": true}).
		Return("ready", map[string]any{"ready": true}).
		Return("tables", pageTable)
}

func testModule(t *testing.T, options map[string]any) *Module {
	t.Helper()
	m := newModule()
	require.NoError(t, m.Configure(options))
	m.Pacing = pageflow.Pacing{}
	return m
}

func execCtx(stub *probetest.Stub) engine.ExecutionContext {
	return engine.ExecutionContext{Probe: stub, Tab: probetest.DefaultTab}
}

func TestScrape_PageOnly(t *testing.T) {
	stub := navStub()
	raw, err := testModule(t, nil).Scrape(context.Background(), execCtx(stub))
	require.NoError(t, err)

	d := raw.(*Data)
	require.Len(t, d.Logins, 1)
	assert.Equal(t, "page", d.Source)
	assert.Empty(t, d.DownloadedFile)
	assert.Equal(t, 1, stub.Count("click.exact"))
}

func TestScrape_UsesDownloadedExport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "older.csv"), []byte("x\n"), 0o600))

	clicks := 0
	stub := navStub().On("click.exact", func(context.Context, probe.Tab, probe.Call) (any, error) {
		clicks++
		if clicks == 2 {
			// The browser writes a temporary file and renames it when done.
			tmp := filepath.Join(dir, "LoginHistory.csv.crdownload")
			if err := os.WriteFile(tmp, []byte(exportCSV), 0o600); err != nil {
				return nil, err
			}
			if err := os.Rename(tmp, filepath.Join(dir, "LoginHistory.csv")); err != nil {
				return nil, err
			}
		}
		return map[string]any{"clicked": true}, nil
	})
	m := testModule(t, map[string]any{"download_dir": dir, "download_wait": "5s"})
	require.NoError(t, m.Validate(execCtx(stub)))

	raw, err := m.Scrape(context.Background(), execCtx(stub))
	require.NoError(t, err)

	d := raw.(*Data)
	assert.Equal(t, "csv", d.Source)
	assert.Equal(t, filepath.Join(dir, "LoginHistory.csv"), d.DownloadedFile)
	require.Len(t, d.Logins, 3)
	assert.Equal(t, "joe@acme.com", d.Logins[1].Username)
	assert.Equal(t, "Invalid Password", d.Logins[1].Status)
}

func TestScrape_MissingDownloadIsNotAFailure(t *testing.T) {
	dir := t.TempDir()
	m := testModule(t, map[string]any{"download_dir": dir, "download_wait": "50ms"})

	raw, err := m.Scrape(context.Background(), execCtx(navStub()))
	require.NoError(t, err)
	d := raw.(*Data)
	assert.Equal(t, "page", d.Source)
	assert.Empty(t, d.DownloadedFile)
	assert.Len(t, d.Logins, 1)
}

func TestScrape_DownloadButtonMissingIsNotAFailure(t *testing.T) {
	stub := navStub().
		Sequence("click.exact", map[string]any{"clicked": true}, map[string]any{"clicked": false}).
		Return("click.text", map[string]any{"clicked": false}).
		Return("click.attr", map[string]any{"clicked": false})
	m := testModule(t, map[string]any{"download_dir": t.TempDir()})

	raw, err := m.Scrape(context.Background(), execCtx(stub))
	require.NoError(t, err)
	assert.Empty(t, raw.(*Data).DownloadedFile)
}

func TestScrape_DownloadProbeErrorPropagates(t *testing.T) {
	boom := errors.New("target crashed")
	clicks := 0
	stub := navStub().On("click.exact", func(context.Context, probe.Tab, probe.Call) (any, error) {
		clicks++
		if clicks == 2 {
			return nil, boom
		}
		return map[string]any{"clicked": true}, nil
	})
	m := testModule(t, map[string]any{"download_dir": t.TempDir()})

	_, err := m.Scrape(context.Background(), execCtx(stub))
	assert.ErrorIs(t, err, boom)
}

func TestValidate_MissingDownloadDir(t *testing.T) {
	m := testModule(t, map[string]any{"download_dir": filepath.Join(t.TempDir(), "absent")})
	err := m.Validate(execCtx(navStub()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestConfigure_InvalidWait(t *testing.T) {
	assert.Error(t, newModule().Configure(map[string]any{"download_wait": "soon"}))
	assert.Error(t, newModule().Configure(map[string]any{"download_wait": "-1s"}))
}

func TestParseCSV(t *testing.T) {
	logins, err := parseCSV(strings.NewReader(exportCSV))
	require.NoError(t, err)
	require.Len(t, logins, 3)
	assert.Equal(t, Login{
		LoginTime: "2026-10-15 08:00", Username: "jane@acme.com", SourceIP: "10.0.0.1", LoginType: "Application",
		Status: "Success", Application: "Browser", Browser: "Chrome 129", Country: "Germany",
	}, logins[0])

	_, err = parseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	logins, err := parseCSV(strings.NewReader(exportCSV))
	require.NoError(t, err)

	s := Summarize(logins)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, AppCount{Total: 2, Successful: 1, Failed: 1}, s.ByApplication["Browser"])
	assert.Equal(t, AppCount{Total: 1, Successful: 1}, s.ByApplication["Dataloader"])
	assert.Equal(t, map[string]int{"Invalid Password": 1}, s.FailureReasons)
}

func TestFormatAndPayload(t *testing.T) {
	logins, err := parseCSV(strings.NewReader(exportCSV))
	require.NoError(t, err)
	d := &Data{Logins: logins, Source: "csv", DownloadedFile: "/tmp/LoginHistory.csv", CapturedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)}

	m := newModule()
	out := m.Format(d)
	assert.Contains(t, out, "Total Logins: 3\nSuccessful Logins: 2\nFailed Logins: 1\n")
	assert.Contains(t, out, "Browser\t2\t1\t1\nDataloader\t1\t1\t0\n")
	assert.Contains(t, out, "Invalid Password\t1\n")

	encoded, err := json.Marshal(m.StructuredPayload(d))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(encoded, &payload))
	assert.Equal(t, "/tmp/LoginHistory.csv", payload["downloadedFile"])
	assert.Len(t, payload["rows"], 3)
	summary := payload["summary"].(map[string]any)
	assert.Equal(t, 3.0, summary["total"])

	encoded, err = json.Marshal(m.StructuredPayload(nil))
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"rows":[]`)
}
