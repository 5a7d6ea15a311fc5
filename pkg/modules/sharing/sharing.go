// pkg/modules/sharing/sharing.go
// Package sharing extracts the organization-wide sharing defaults.
package sharing

import (
	"context"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "sharing-settings"

var owdHeaders = []string{"Object", "Default Internal Access"}

// Default is the organization-wide default of one object.
type Default struct {
	Object                 string `json:"object"`
	DefaultInternalAccess  string `json:"defaultInternalAccess"`
	DefaultExternalAccess  string `json:"defaultExternalAccess"`
	GrantAccessHierarchies bool   `json:"grantAccessUsingHierarchies"`
}

// Data is the raw scrape result.
type Data struct {
	Defaults   []Default
	Attempts   int
	CapturedAt time.Time
}

// Payload is the structured contract written to 7_sharing_settings.json.
type Payload struct {
	Rows []Default `json:"rows"`
}

// Module scrapes Setup > Sharing Settings.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Sharing Settings",
			Description: "Organization-wide default internal and external access per object.",
			Version:     "1.0.0",
			Timeout:     90 * time.Second,
		}),
	}
}

func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Sharing Settings")
	if err := flow.Navigate(ctx, "Sharing Settings", pageflow.Target{
		Label:    "Sharing Settings",
		Selector: `a[title="Sharing Settings"]`,
		Attr:     "SecuritySharing",
	}); err != nil {
		return nil, err
	}
	if _, err := flow.WaitFor(ctx, owdHeaders); err != nil {
		return nil, err
	}

	ec.Report(50, "Reading organization-wide defaults")
	defaults, attempts, err := pageflow.RetryWhileEmpty(ctx, m.ScrapeRetry(),
		func(ctx context.Context) ([]Default, error) { return read(ctx, flow) },
		func(d []Default) bool { return len(d) == 0 })
	if err != nil {
		return nil, err
	}

	data := &Data{Defaults: defaults, Attempts: attempts, CapturedAt: time.Now().UTC()}
	m.Logger.Info().Int("objects", len(defaults)).Int("attempts", attempts).Msg("Sharing settings read")
	ec.Report(100, "Sharing Settings complete")
	return data, nil
}

func read(ctx context.Context, flow *pageflow.Flow) ([]Default, error) {
	t, err := flow.Table(ctx, owdHeaders)
	if err != nil {
		return nil, err
	}
	var out []Default
	for _, row := range t.Rows {
		obj := t.Value(row, "Object")
		if obj == "" {
			continue
		}
		out = append(out, Default{
			Object:                 obj,
			DefaultInternalAccess:  t.Value(row, "Default Internal Access"),
			DefaultExternalAccess:  t.Value(row, "Default External Access"),
			GrantAccessHierarchies: pageflow.Bool(t.Value(row, "Hierarchies")),
		})
	}
	return out, nil
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

func (m *Module) Format(raw any) string {
	d := asData(raw)
	t := pageflow.Table{
		Title:  "Organization-Wide Defaults",
		Header: []string{"Object", "Default Internal Access", "Default External Access", "Grant Access Using Hierarchies"},
	}
	var private int
	for _, def := range d.Defaults {
		if def.DefaultInternalAccess == "Private" {
			private++
		}
		grant := "No"
		if def.GrantAccessHierarchies {
			grant = "Yes"
		}
		t.Rows = append(t.Rows, []string{def.Object, def.DefaultInternalAccess, def.DefaultExternalAccess, grant})
	}
	return pageflow.NewReport("Sharing Settings").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Objects", len(d.Defaults)).
		Line("Private Internal Defaults", private).
		Table(t).
		String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	if d.Defaults == nil {
		return Payload{Rows: []Default{}}
	}
	return Payload{Rows: d.Defaults}
}

// Factory creates a new sharing settings module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
