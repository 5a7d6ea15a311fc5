// pkg/modules/profiles/profiles.go
// Package profiles extracts profiles and their high-impact system
// permissions.
package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "profiles"

var listHeaders = []string{"Profile Name", "User License"}

// detailMarker is the permission label whose presence means a profile
// detail page has rendered.
const detailMarker = "Modify All Data"

// DefaultDetailReserve is the time kept back from the module deadline for
// formatting once detail inspection stops.
const DefaultDetailReserve = 10 * time.Second

// Profile is one profile with the permissions the report cares about.
type Profile struct {
	ProfileName     string `json:"profileName"`
	UserLicense     string `json:"userLicense"`
	ProfileType     string `json:"profileType"`
	ActiveUserCount int    `json:"activeUserCount"`
	ModifyAllData   bool   `json:"modifyAllData"`
	RunReports      bool   `json:"runReports"`
	ExportReports   bool   `json:"exportReports"`

	detailURL string
}

// Data is the raw scrape result.
type Data struct {
	Profiles   []Profile
	Inspected  int
	Truncated  bool // detail inspection stopped early to finish inside the deadline
	CapturedAt time.Time
}

// Payload is the structured contract written to 2_profiles.json.
type Payload struct {
	Profiles []Profile `json:"profiles"`
}

// Module scrapes the profile list and opens each profile's detail page on
// its own auxiliary surface.
type Module struct {
	pageflow.Base
	inspectDetails bool
	maxProfiles    int
	detailReserve  time.Duration
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Profiles",
			Description: "Profiles with license, type, active users and Modify All Data / report permissions.",
			Version:     "1.1.0",
			Timeout:     150 * time.Second,
		}),
		inspectDetails: true,
		detailReserve:  DefaultDetailReserve,
	}
}

// Configure adds inspect_details, max_profiles and detail_reserve to the
// common options.
func (m *Module) Configure(options map[string]any) error {
	if err := m.Base.Configure(options); err != nil {
		return err
	}
	if v, ok := options["inspect_details"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("module %s: invalid inspect_details option: %w", moduleID, err)
		}
		m.inspectDetails = b
	}
	if v, ok := options["max_profiles"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			return fmt.Errorf("module %s: invalid max_profiles option %v", moduleID, v)
		}
		m.maxProfiles = n
	}
	if v, ok := options["detail_reserve"]; ok {
		d, err := cast.ToDurationE(v)
		if err != nil || d < 0 {
			return fmt.Errorf("module %s: invalid detail_reserve option %v", moduleID, v)
		}
		m.detailReserve = d
	}
	return nil
}

func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Profiles")
	if err := flow.Navigate(ctx, "Profiles", pageflow.Target{
		Label:    "Profiles",
		Selector: `a[title="Profiles"]`,
		Attr:     "EnhancedProfiles",
	}); err != nil {
		return nil, err
	}
	if _, err := flow.WaitFor(ctx, listHeaders); err != nil {
		return nil, err
	}

	profiles, _, err := pageflow.RetryWhileEmpty(ctx, m.ScrapeRetry(),
		func(ctx context.Context) ([]Profile, error) { return m.readList(ctx, flow) },
		func(p []Profile) bool { return len(p) == 0 })
	if err != nil {
		return nil, err
	}
	ec.Report(10, fmt.Sprintf("Found %d profiles", len(profiles)))

	data := &Data{Profiles: profiles}
	if m.inspectDetails {
		if err := m.inspectAll(ctx, ec, flow, data); err != nil {
			return nil, err
		}
	}

	data.CapturedAt = time.Now().UTC()
	m.Logger.Info().Int("profiles", len(data.Profiles)).Int("inspected", data.Inspected).Bool("truncated", data.Truncated).Msg("Profiles read")
	ec.Report(100, "Profiles complete")
	return data, nil
}

func (m *Module) readList(ctx context.Context, flow *pageflow.Flow) ([]Profile, error) {
	tables, err := flow.Tables(ctx, listHeaders)
	if err != nil {
		return nil, err
	}
	var out []Profile
	for _, t := range tables {
		for i, row := range t.Rows {
			name := t.Value(row, "Profile Name")
			if name == "" {
				continue
			}
			kind := "Standard"
			if pageflow.Bool(t.Value(row, "Custom")) {
				kind = "Custom"
			}
			out = append(out, Profile{
				ProfileName:     name,
				UserLicense:     t.Value(row, "User License"),
				ProfileType:     kind,
				ActiveUserCount: pageflow.Int(t.Value(row, "Active Users")),
				detailURL:       t.Link(i),
			})
		}
	}
	return out, nil
}

// inspectAll opens the detail page of each profile up to max_profiles. When
// ctx carries a deadline, inspection stops once the next page would not fit
// in the remaining time plus the reserve, and the list is returned as is.
func (m *Module) inspectAll(ctx context.Context, ec engine.ExecutionContext, flow *pageflow.Flow, data *Data) error {
	limit := len(data.Profiles)
	if m.maxProfiles > 0 && m.maxProfiles < limit {
		limit = m.maxProfiles
	}
	deadline, bounded := ctx.Deadline()
	estimate := m.Pacing.SettleDelay
	for i := 0; i < limit; i++ {
		p := &data.Profiles[i]
		if p.detailURL == "" {
			continue
		}
		if bounded && time.Until(deadline) < estimate+m.detailReserve {
			data.Truncated = true
			m.Logger.Warn().Int("inspected", data.Inspected).Int("profiles", limit).Dur("estimate", estimate).
				Msg("Stopping profile inspection to finish before the module timeout")
			ec.Report(95, fmt.Sprintf("Inspected %d of %d profiles", data.Inspected, limit))
			return nil
		}
		started := time.Now()
		if err := m.inspect(ctx, ec, flow, p); err != nil {
			return fmt.Errorf("inspect profile %q: %w", p.ProfileName, err)
		}
		if took := time.Since(started); took > estimate {
			estimate = took
		}
		data.Inspected++
		ec.Report(10+(85*(i+1))/limit, "Inspected "+p.ProfileName)
	}
	return nil
}

// inspect reads one profile's system permissions on an auxiliary surface,
// polling until the permission section has rendered. The surface is closed
// on every path out.
func (m *Module) inspect(ctx context.Context, ec engine.ExecutionContext, flow *pageflow.Flow, p *Profile) error {
	surface, err := ec.Probe.Open(ctx, p.detailURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			m.Logger.Warn().Err(cerr).Str("profile", p.ProfileName).Msg("Failed to close profile surface")
		}
	}()

	detail := flow.On(surface.Tab())
	attempts := m.Pacing.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	var fields map[string]string
	for attempt := 1; ; attempt++ {
		fields, err = detail.Fields(ctx)
		if err != nil {
			return err
		}
		if pageflow.Field(fields, detailMarker) != "" || attempt >= attempts {
			break
		}
		if err := pageflow.Sleep(ctx, m.Pacing.PollInterval); err != nil {
			return err
		}
	}
	p.ModifyAllData = pageflow.Bool(pageflow.Field(fields, "Modify All Data"))
	p.RunReports = pageflow.Bool(pageflow.Field(fields, "Run Reports"))
	p.ExportReports = pageflow.Bool(pageflow.Field(fields, "Export Reports"))
	if n := pageflow.Int(pageflow.Field(fields, "Active Users")); n > 0 {
		p.ActiveUserCount = n
	}
	return nil
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (m *Module) Format(raw any) string {
	d := asData(raw)
	var modifyAll int
	t := pageflow.Table{
		Title:  "Profiles",
		Header: []string{"Profile Name", "User License", "Profile Type", "Active Users", "Modify All Data", "Run Reports", "Export Reports"},
	}
	for _, p := range d.Profiles {
		if p.ModifyAllData {
			modifyAll++
		}
		t.Rows = append(t.Rows, []string{
			p.ProfileName, p.UserLicense, p.ProfileType, fmt.Sprint(p.ActiveUserCount),
			yesNo(p.ModifyAllData), yesNo(p.RunReports), yesNo(p.ExportReports),
		})
	}
	r := pageflow.NewReport("Profiles").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Total Profiles", len(d.Profiles)).
		Line("Profiles Inspected", d.Inspected).
		Line("Profiles With Modify All Data", modifyAll).
		Table(t)
	if d.Truncated {
		r.Note("Detail inspection stopped early to stay within the module timeout; permission columns are incomplete.")
	}
	return r.String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	if d.Profiles == nil {
		return Payload{Profiles: []Profile{}}
	}
	return Payload{Profiles: d.Profiles}
}

// Factory creates a new profiles module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
