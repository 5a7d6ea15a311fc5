// pkg/modules/generalinfo/generalinfo.go
// Package generalinfo extracts the Company Information record and the org's
// SAML single sign-on configuration.
package generalinfo

import (
	"context"
	"strings"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "general-info"

var samlHeaders = []string{"Name", "SAML Version"}

// CompanyInfo is the org overview.
type CompanyInfo struct {
	AccountName      string   `json:"accountName"`
	OrganizationName string   `json:"organizationName"`
	OrgID            string   `json:"orgId"`
	Location         string   `json:"location"`
	Instance         string   `json:"instance"`
	Edition          string   `json:"edition"`
	DefaultLocale    string   `json:"defaultLocale"`
	DefaultTimeZone  string   `json:"defaultTimeZone"`
	SAMLEnabled      bool     `json:"samlEnabled"`
	SAMLSettingNames []string `json:"samlSettingNames"`
}

// Data is the raw scrape result.
type Data struct {
	Info       CompanyInfo
	SSORead    bool
	CapturedAt time.Time
}

// Payload is the structured contract written to 3_general_info.json.
type Payload struct {
	CompanyInfo CompanyInfo `json:"companyInfo"`
}

// Module scrapes Company Information followed by Single Sign-On Settings.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "General Info",
			Description: "Organization name, id, edition, instance, locale and SAML single sign-on settings.",
			Version:     "1.0.2",
			Timeout:     60 * time.Second,
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

	fields, _, err := pageflow.RetryWhileEmpty(ctx, m.ScrapeRetry(), flow.Fields,
		func(f map[string]string) bool { return pageflow.Field(f, "Organization Name") == "" })
	if err != nil {
		return nil, err
	}
	data := &Data{Info: companyInfo(fields)}
	ec.Report(50, "Opening Single Sign-On Settings")

	if err := flow.Navigate(ctx, "Single Sign-On Settings", pageflow.Target{
		Label:    "Single Sign-On Settings",
		Selector: `a[title="Single Sign-On Settings"]`,
		Attr:     "SingleSignOn",
	}); err != nil {
		return nil, err
	}
	if err := m.readSSO(ctx, flow, &data.Info); err != nil {
		return nil, err
	}
	data.SSORead = true

	data.CapturedAt = time.Now().UTC()
	m.Logger.Info().Str("org_id", data.Info.OrgID).Bool("saml", data.Info.SAMLEnabled).Int("saml_configs", len(data.Info.SAMLSettingNames)).Msg("General info read")
	ec.Report(100, "General Info complete")
	return data, nil
}

func companyInfo(fields map[string]string) CompanyInfo {
	name := pageflow.Field(fields, "Organization Name")
	orgID := pageflow.Field(fields, "Salesforce.com Organization ID")
	if orgID == "" {
		orgID = pageflow.Field(fields, "Organization ID")
	}
	return CompanyInfo{
		AccountName:      name,
		OrganizationName: name,
		OrgID:            orgID,
		Location:         location(fields),
		Instance:         pageflow.Field(fields, "Instance"),
		Edition:          pageflow.Field(fields, "Organization Edition"),
		DefaultLocale:    pageflow.Field(fields, "Default Locale"),
		DefaultTimeZone:  pageflow.Field(fields, "Default Time Zone"),
	}
}

// location joins the address parts that are present; the Address field
// wins when the page renders it as one block.
func location(fields map[string]string) string {
	if addr := pageflow.Field(fields, "Address"); addr != "" {
		return addr
	}
	var parts []string
	for _, label := range []string{"City", "State/Province", "Country"} {
		if v := pageflow.Field(fields, label); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// readSSO fills the SAML flag and the names of the configured SAML settings.
// An org without SAML has no settings table, which is a valid result.
func (m *Module) readSSO(ctx context.Context, flow *pageflow.Flow, info *CompanyInfo) error {
	if _, err := flow.WaitFor(ctx, samlHeaders); err != nil {
		return err
	}
	fields, err := flow.Fields(ctx)
	if err != nil {
		return err
	}
	table, err := flow.Table(ctx, samlHeaders)
	if err != nil {
		return err
	}
	for _, row := range table.Rows {
		if name := table.Value(row, "Name"); name != "" {
			info.SAMLSettingNames = append(info.SAMLSettingNames, name)
		}
	}
	info.SAMLEnabled = pageflow.Bool(pageflow.Field(fields, "SAML Enabled")) || len(info.SAMLSettingNames) > 0
	return nil
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

// Format writes one "Label: value" line per field. The labels are the keys
// the report mapper looks up.
func (m *Module) Format(raw any) string {
	d := asData(raw)
	ci := d.Info
	saml := "No"
	if ci.SAMLEnabled {
		saml = "Yes"
	}
	r := pageflow.NewReport("General Info").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Organization Name", ci.OrganizationName).
		Line("Organization ID", ci.OrgID).
		Line("Organization Edition", ci.Edition).
		Line("Instance", ci.Instance).
		Line("Location", ci.Location).
		Line("Default Locale", ci.DefaultLocale).
		Line("Default Time Zone", ci.DefaultTimeZone).
		Line("SAML Enabled", saml)

	t := pageflow.Table{Title: "SAML Single Sign-On Settings", Header: []string{"Name"}}
	for _, name := range ci.SAMLSettingNames {
		t.Rows = append(t.Rows, []string{name})
	}
	r.Table(t)
	if !d.SSORead {
		r.Note("Single Sign-On Settings were not read.")
	}
	return r.String()
}

func (m *Module) StructuredPayload(raw any) any {
	ci := asData(raw).Info
	if ci.SAMLSettingNames == nil {
		ci.SAMLSettingNames = []string{}
	}
	return Payload{CompanyInfo: ci}
}

// Factory creates a new general info module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
