// pkg/modules/licenses/licenses.go
// Package licenses extracts user and permission set license usage from the
// Company Information page.
package licenses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "licenses"

var licenseHeaders = []string{"Name", "Total Licenses"}

// License is one row of a license related list.
type License struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Total      int    `json:"total"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
	Expiration string `json:"expiration"`
}

// Data is the raw scrape result.
type Data struct {
	UserLicenses          []License
	PermissionSetLicenses []License
	CapturedAt            time.Time
}

// Payload is the structured contract written to 1_licenses.json.
type Payload struct {
	UserLicenses          []License `json:"userLicenses"`
	PermissionSetLicenses []License `json:"permissionSetLicenses"`
}

// Module scrapes the license related lists.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Licenses",
			Description: "User licenses and permission set licenses with usage counts.",
			Version:     "1.0.0",
			Timeout:     90 * time.Second,
		}),
	}
}

func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Company Information")
	if err := flow.Navigate(ctx, "Company Information", pageflow.Target{
		Label:    "Company Information",
		Selector: `a[title="Company Information"]`,
		Attr:     "CompanyProfileInfo",
	}); err != nil {
		return nil, err
	}
	if _, err := flow.WaitFor(ctx, licenseHeaders); err != nil {
		return nil, err
	}

	ec.Report(50, "Reading license tables")
	data, _, err := pageflow.RetryWhileEmpty(ctx, m.ScrapeRetry(),
		func(ctx context.Context) (*Data, error) {
			tables, err := flow.Tables(ctx, licenseHeaders)
			if err != nil {
				return nil, err
			}
			return fromTables(tables), nil
		},
		func(d *Data) bool { return len(d.UserLicenses)+len(d.PermissionSetLicenses) == 0 })
	if err != nil {
		return nil, err
	}
	data.CapturedAt = time.Now().UTC()

	m.Logger.Info().Int("user_licenses", len(data.UserLicenses)).Int("permission_set_licenses", len(data.PermissionSetLicenses)).Msg("Licenses read")
	ec.Report(100, fmt.Sprintf("Read %d licenses", len(data.UserLicenses)+len(data.PermissionSetLicenses)))
	return data, nil
}

// fromTables sorts tables into the two lists by caption. Without a caption
// the first table is the user license list.
func fromTables(tables []pageflow.TableData) *Data {
	d := &Data{}
	for i, t := range tables {
		rows := parseRows(t)
		switch caption := strings.ToLower(t.Caption); {
		case strings.Contains(caption, "permission set"):
			d.PermissionSetLicenses = append(d.PermissionSetLicenses, rows...)
		case strings.Contains(caption, "user license"), i == 0:
			d.UserLicenses = append(d.UserLicenses, rows...)
		default:
			d.PermissionSetLicenses = append(d.PermissionSetLicenses, rows...)
		}
	}
	return d
}

func parseRows(t pageflow.TableData) []License {
	out := make([]License, 0, len(t.Rows))
	for _, row := range t.Rows {
		name := t.Value(row, "Name")
		if name == "" {
			continue
		}
		out = append(out, License{
			Name:       name,
			Status:     t.Value(row, "Status"),
			Total:      pageflow.Int(t.Value(row, "Total")),
			Used:       pageflow.Int(t.Value(row, "Used")),
			Remaining:  pageflow.Int(t.Value(row, "Remaining")),
			Expiration: t.Value(row, "Expiration"),
		})
	}
	return out
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

var header = []string{"Name", "Status", "Total Licenses", "Used Licenses", "Remaining Licenses", "Expiration Date"}

func table(title string, rows []License) pageflow.Table {
	t := pageflow.Table{Title: title, Header: header}
	for _, l := range rows {
		t.Rows = append(t.Rows, []string{l.Name, l.Status, fmt.Sprint(l.Total), fmt.Sprint(l.Used), fmt.Sprint(l.Remaining), l.Expiration})
	}
	return t
}

func (m *Module) Format(raw any) string {
	d := asData(raw)
	return pageflow.NewReport("Licenses").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("User Licenses", len(d.UserLicenses)).
		Line("Permission Set Licenses", len(d.PermissionSetLicenses)).
		Table(table("User Licenses", d.UserLicenses)).
		Table(table("Permission Set Licenses", d.PermissionSetLicenses)).
		String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	p := Payload{UserLicenses: d.UserLicenses, PermissionSetLicenses: d.PermissionSetLicenses}
	if p.UserLicenses == nil {
		p.UserLicenses = []License{}
	}
	if p.PermissionSetLicenses == nil {
		p.PermissionSetLicenses = []License{}
	}
	return p
}

// Factory creates a new licenses module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
