// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package loginhistory extracts recent logins and, when a download directory
// is configured, the full Login History CSV export.
package loginhistory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "login-history"

// DefaultDownloadWait bounds the wait for the exported CSV.
const DefaultDownloadWait = 30 * time.Second

var listHeaders = []string{"Login Time", "Username"}

// Login is one login attempt.
type Login struct {
	LoginTime   string `json:"loginTime"`
	Username    string `json:"username"`
	SourceIP    string `json:"sourceIp"`
	LoginType   string `json:"loginType"`
	Status      string `json:"status"`
	Application string `json:"application"`
	Browser     string `json:"browser"`
	Country     string `json:"country"`
}

func (l Login) successful() bool {
	return strings.EqualFold(strings.TrimSpace(l.Status), "Success")
}

// AppCount is the per-application login breakdown.
type AppCount struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Summary aggregates the login rows.
type Summary struct {
	Total          int                 `json:"total"`
	Successful     int                 `json:"successful"`
	Failed         int                 `json:"failed"`
	ByApplication  map[string]AppCount `json:"byApplication"`
	FailureReasons map[string]int      `json:"failureReasons"`
}

// Summarize counts successful and failed logins overall and per
// application. Every status other than "Success" is a failure reason.
func Summarize(logins []Login) Summary {
	s := Summary{ByApplication: map[string]AppCount{}, FailureReasons: map[string]int{}}
	for _, l := range logins {
		app := l.Application
		if app == "" {
			app = pageflow.Placeholder
		}
		c := s.ByApplication[app]
		c.Total++
		s.Total++
		if l.successful() {
			c.Successful++
			s.Successful++
		} else {
			c.Failed++
			s.Failed++
			s.FailureReasons[pageflow.Cell(l.Status)]++
		}
		s.ByApplication[app] = c
	}
	return s
}

// Data is the raw scrape result.
type Data struct {
	Logins         []Login
	Source         string // "page" or "csv"
	DownloadedFile string
	CapturedAt     time.Time
}

// Payload is the structured contract written to 8_login_history.json.
type Payload struct {
	Rows           []Login `json:"rows"`
	Summary        Summary `json:"summary"`
	Source         string  `json:"source"`
	DownloadedFile string  `json:"downloadedFile"`
}

// Module scrapes Setup > Login History.
type Module struct {
	pageflow.Base
	downloadDir  string
	downloadWait time.Duration
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Login History",
			Description: "Recent login attempts with status, application and country, plus the CSV export.",
			Version:     "1.1.0",
			Timeout:     120 * time.Second,
		}),
		downloadWait: DefaultDownloadWait,
	}
}

// Configure adds download_dir and download_wait to the common options.
func (m *Module) Configure(options map[string]any) error {
	if err := m.Base.Configure(options); err != nil {
		return err
	}
	if v, ok := options["download_dir"]; ok {
		m.downloadDir = cast.ToString(v)
	}
	if v, ok := options["download_wait"]; ok {
		d, err := cast.ToDurationE(v)
		if err != nil || d < 0 {
			return fmt.Errorf("module %s: invalid download_wait option %v", moduleID, v)
		}
		m.downloadWait = d
	}
	return nil
}

// Validate additionally requires an existing download directory when one is
// configured.
func (m *Module) Validate(ec engine.ExecutionContext) error {
	if err := m.Base.Validate(ec); err != nil {
		return err
	}
	if m.downloadDir == "" {
		return nil
	}
	info, err := os.Stat(m.downloadDir)
	if err != nil || !info.IsDir() {
		return engine.Invalid(fmt.Sprintf("download directory %s does not exist", m.downloadDir))
	}
	return nil
}

func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Login History")
	if err := flow.Navigate(ctx, "Login History", pageflow.Target{
		Label:    "Login History",
		Selector: `a[title="Login History"]`,
		Attr:     "OrgLoginHistory",
	}); err != nil {
		return nil, err
	}
	if _, err := flow.WaitFor(ctx, listHeaders); err != nil {
		return nil, err
	}

	ec.Report(30, "Reading recent logins")
	t, err := flow.Table(ctx, listHeaders)
	if err != nil {
		return nil, err
	}
	data := &Data{Logins: fromTable(t), Source: "page"}

	if m.downloadDir != "" {
		ec.Report(60, "Downloading Login History CSV")
		path, err := m.download(ctx, flow)
		if err != nil {
			return nil, err
		}
		if path != "" {
			logins, perr := ReadCSV(path)
			if perr != nil {
				m.Logger.Warn().Err(perr).Str("file", path).Msg("Could not parse login history export, keeping page rows")
			} else {
				data.Logins, data.Source = logins, "csv"
			}
			data.DownloadedFile = path
		}
	}

	data.CapturedAt = time.Now().UTC()
	m.Logger.Info().Int("logins", len(data.Logins)).Str("source", data.Source).Str("file", data.DownloadedFile).Msg("Login history read")
	ec.Report(100, "Login History complete")
	return data, nil
}

// download clicks the CSV export and waits for the file. A missing button or
// a download that never lands is logged, not failed.
func (m *Module) download(ctx context.Context, flow *pageflow.Flow) (string, error) {
	watch, err := watchDownloads(m.downloadDir)
	if err != nil {
		m.Logger.Warn().Err(err).Msg("Download watch unavailable, skipping CSV export")
		return "", nil
	}
	defer watch.Close()

	err = flow.Click(ctx, pageflow.Target{
		Label:    "Download Now",
		Selector: `input[value="Download Now"], button[title="Download"]`,
		Attr:     "download",
	})
	if errors.Is(err, engine.ErrNavigation) {
		m.Logger.Warn().Err(err).Msg("Login history download link not found")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	path, err := watch.Wait(ctx, m.downloadWait)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		m.Logger.Warn().Err(err).Msg("Waiting for login history export failed")
		return "", nil
	}
	if path == "" {
		m.Logger.Warn().Dur("waited", m.downloadWait).Str("dir", m.downloadDir).Msg("Login history export did not arrive")
		return "", nil
	}
	if err := pageflow.Sleep(ctx, m.Pacing.SettleDelay); err != nil {
		return "", err
	}
	return path, nil
}

func fromTable(t pageflow.TableData) []Login {
	var out []Login
	for _, row := range t.Rows {
		l := Login{
			LoginTime:   t.Value(row, "Login Time"),
			Username:    t.Value(row, "Username"),
			SourceIP:    t.Value(row, "Source IP"),
			LoginType:   t.Value(row, "Login Type"),
			Status:      t.Value(row, "Status"),
			Application: t.Value(row, "Application"),
			Browser:     t.Value(row, "Browser"),
			Country:     t.Value(row, "Country"),
		}
		if l.LoginTime != "" || l.Username != "" {
			out = append(out, l)
		}
	}
	return out
}

// ReadCSV parses a Login History export. Columns are matched by header
// name; unknown columns are ignored.
func ReadCSV(path string) ([]Login, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]Login, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read login history header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	t := pageflow.TableData{Headers: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read login history row: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return fromTable(t), nil
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Module) Format(raw any) string {
	d := asData(raw)
	s := Summarize(d.Logins)

	apps := pageflow.Table{Title: "Logins by Application", Header: []string{"Application", "Total Logins", "Successful Logins", "Failed Logins"}}
	for _, app := range sortedKeys(s.ByApplication) {
		c := s.ByApplication[app]
		apps.Rows = append(apps.Rows, []string{app, fmt.Sprint(c.Total), fmt.Sprint(c.Successful), fmt.Sprint(c.Failed)})
	}
	failures := pageflow.Table{Title: "Login Failures", Header: []string{"Failure Reason", "Count"}}
	for _, reason := range sortedKeys(s.FailureReasons) {
		failures.Rows = append(failures.Rows, []string{reason, fmt.Sprint(s.FailureReasons[reason])})
	}
	logins := pageflow.Table{Title: "Logins", Header: []string{"Login Time", "Username", "Source IP", "Login Type", "Status", "Application", "Browser", "Country"}}
	for _, l := range d.Logins {
		logins.Rows = append(logins.Rows, []string{l.LoginTime, l.Username, l.SourceIP, l.LoginType, l.Status, l.Application, l.Browser, l.Country})
	}

	return pageflow.NewReport("Login History").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Source", d.Source).
		Line("Downloaded File", d.DownloadedFile).
		Line("Total Logins", s.Total).
		Line("Successful Logins", s.Successful).
		Line("Failed Logins", s.Failed).
		Table(apps).
		Table(failures).
		Table(logins).
		String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	rows := d.Logins
	if rows == nil {
		rows = []Login{}
	}
	return Payload{Rows: rows, Summary: Summarize(d.Logins), Source: d.Source, DownloadedFile: d.DownloadedFile}
}

// Factory creates a new login history module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
