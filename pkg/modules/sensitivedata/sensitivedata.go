// pkg/modules/sensitivedata/sensitivedata.go
// Package sensitivedata extracts fields carrying a data classification.
package sensitivedata

import (
	"context"
	"sort"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "sensitive-data"

var classificationHeaders = []string{"Field", "Sensitivity"}

// Field is one classified field.
type Field struct {
	Object               string `json:"object"`
	Field                string `json:"field"`
	Label                string `json:"label"`
	Sensitivity          string `json:"sensitivity"`
	ComplianceCategories string `json:"complianceCategories"`
	Owner                string `json:"owner"`
}

// Data is the raw scrape result.
type Data struct {
	Fields     []Field
	Ready      bool
	CapturedAt time.Time
}

// bySensitivity counts fields per sensitivity level.
func (d *Data) bySensitivity() map[string]int {
	out := map[string]int{}
	for _, f := range d.Fields {
		level := f.Sensitivity
		if level == "" {
			level = pageflow.Placeholder
		}
		out[level]++
	}
	return out
}

// Payload is the structured contract written to sensitive-data.json.
type Payload struct {
	Fields []Field `json:"fields"`
}

// Module scrapes the data classification field list.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Sensitive Data",
			Description: "Fields with a data sensitivity level, compliance categorization and data owner.",
			Version:     "0.9.0",
			Timeout:     90 * time.Second,
		}),
	}
}

// Scrape reads the classified fields. Orgs that never classified data have
// none, so an empty result is not retried.
func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Data Classification")
	if err := flow.Navigate(ctx, "Data Classification", pageflow.Target{
		Label:    "Data Classification Settings",
		Selector: `a[title="Data Classification Settings"]`,
		Attr:     "DataClassification",
	}); err != nil {
		return nil, err
	}
	readiness, err := flow.WaitFor(ctx, classificationHeaders)
	if err != nil {
		return nil, err
	}

	ec.Report(50, "Reading classified fields")
	tables, err := flow.Tables(ctx, classificationHeaders)
	if err != nil {
		return nil, err
	}
	data := &Data{Ready: readiness.Ready}
	for _, t := range tables {
		for _, row := range t.Rows {
			name := t.Value(row, "Field Name")
			if name == "" {
				name = t.Value(row, "API Name")
			}
			if name == "" {
				continue
			}
			data.Fields = append(data.Fields, Field{
				Object:               t.Value(row, "Object"),
				Field:                name,
				Label:                t.Value(row, "Label"),
				Sensitivity:          t.Value(row, "Sensitivity"),
				ComplianceCategories: t.Value(row, "Compliance"),
				Owner:                t.Value(row, "Owner"),
			})
		}
	}
	data.CapturedAt = time.Now().UTC()

	m.Logger.Info().Int("fields", len(data.Fields)).Msg("Sensitive data read")
	ec.Report(100, "Sensitive Data complete")
	return data, nil
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}

func (m *Module) Format(raw any) string {
	d := asData(raw)
	r := pageflow.NewReport("Sensitive Data").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Classified Fields", len(d.Fields))

	counts := d.bySensitivity()
	levels := make([]string, 0, len(counts))
	for level := range counts {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	for _, level := range levels {
		r.Line(level, counts[level])
	}

	t := pageflow.Table{Title: "Classified Fields", Header: []string{"Object", "Field", "Label", "Sensitivity", "Compliance Categories", "Owner"}}
	for _, f := range d.Fields {
		t.Rows = append(t.Rows, []string{f.Object, f.Field, f.Label, f.Sensitivity, f.ComplianceCategories, f.Owner})
	}
	r.Table(t)
	if !d.Ready {
		r.Note("No classification table rendered; the org may not use data classification.")
	}
	return r.String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	if d.Fields == nil {
		return Payload{Fields: []Field{}}
	}
	return Payload{Fields: d.Fields}
}

// Factory creates a new sensitive data module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
