// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package sandboxes extracts sandbox license allowances and the sandbox list.
package sandboxes

import (
	"context"
	"fmt"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "sandboxes"

var (
	licenseHeaders = []string{"Type", "Used", "Allowance"}
	listHeaders    = []string{"Name", "Type", "Status"}
)

// maxLicenseRows covers Developer, Developer Pro, Partial Copy and Full.
const maxLicenseRows = 4

// License is the allowance of one sandbox type.
type License struct {
	Type      string `json:"type"`
	Used      int    `json:"used"`
	Allowance int    `json:"allowance"`
}

// Sandbox is one row of the sandbox list.
type Sandbox struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Location     string `json:"location"`
	ReleaseType  string `json:"releaseType"`
	CurrentOrgID string `json:"currentOrgId"`
	CompletedOn  string `json:"completedOn"`
	Description  string `json:"description"`
	CopiedFrom   string `json:"copiedFrom"`
}

// Data is the raw scrape result.
type Data struct {
	Licenses   []License
	Sandboxes  []Sandbox
	Ready      bool
	CapturedAt time.Time
}

// Payload is the structured contract written to 6_sandboxes.json.
type Payload struct {
	Licenses []License `json:"licenses"`
	Rows     []Sandbox `json:"rows"`
}

// Module scrapes Setup > Sandboxes.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Sandboxes",
			Description: "Sandbox license usage per type and every sandbox with status, release and source org.",
			Version:     "1.0.0",
			Timeout:     90 * time.Second,
		}),
	}
}

// Scrape reads the sandbox list. An org without sandboxes legitimately has
// an empty list, so the scrape is not retried on empty.
func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Sandboxes")
	if err := flow.Navigate(ctx, "Sandboxes", pageflow.Target{
		Label:    "Sandboxes",
		Selector: `a[title="Sandboxes"]`,
		Attr:     "DataManagementCreateTestInstance",
	}); err != nil {
		return nil, err
	}
	readiness, err := flow.WaitFor(ctx, listHeaders)
	if err != nil {
		return nil, err
	}

	ec.Report(50, "Reading sandbox licenses and list")
	data := &Data{Ready: readiness.Ready}
	if data.Licenses, err = readLicenses(ctx, flow); err != nil {
		return nil, err
	}
	if data.Sandboxes, err = readSandboxes(ctx, flow); err != nil {
		return nil, err
	}
	data.CapturedAt = time.Now().UTC()

	m.Logger.Info().Int("licenses", len(data.Licenses)).Int("sandboxes", len(data.Sandboxes)).Msg("Sandboxes read")
	ec.Report(100, "Sandboxes complete")
	return data, nil
}

func readLicenses(ctx context.Context, flow *pageflow.Flow) ([]License, error) {
	t, err := flow.Table(ctx, licenseHeaders)
	if err != nil {
		return nil, err
	}
	var out []License
	for _, row := range t.Rows {
		kind := t.Value(row, "Type")
		if kind == "" {
			continue
		}
		out = append(out, License{
			Type:      kind,
			Used:      pageflow.Int(t.Value(row, "Used")),
			Allowance: pageflow.Int(t.Value(row, "Allowance")),
		})
		if len(out) == maxLicenseRows {
			break
		}
	}
	return out, nil
}

func readSandboxes(ctx context.Context, flow *pageflow.Flow) ([]Sandbox, error) {
	t, err := flow.Table(ctx, listHeaders)
	if err != nil {
		return nil, err
	}
	var out []Sandbox
	for _, row := range t.Rows {
		name := t.Value(row, "Name")
		if name == "" {
			continue
		}
		out = append(out, Sandbox{
			Name:         name,
			Type:         t.Value(row, "Type"),
			Status:       t.Value(row, "Status"),
			Location:     t.Value(row, "Location"),
			ReleaseType:  t.Value(row, "Release Type"),
			CurrentOrgID: t.Value(row, "Current Org Id"),
			CompletedOn:  t.Value(row, "Completed On"),
			Description:  t.Value(row, "Description"),
			CopiedFrom:   t.Value(row, "Copied From"),
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

	licenses := pageflow.Table{Title: "Available Sandbox Licenses", Header: []string{"Type", "Used", "Allowance"}}
	for _, l := range d.Licenses {
		licenses.Rows = append(licenses.Rows, []string{l.Type, fmt.Sprint(l.Used), fmt.Sprint(l.Allowance)})
	}
	list := pageflow.Table{
		Title:  "Sandboxes",
		Header: []string{"Name", "Type", "Status", "Location", "Release Type", "Current Org Id", "Completed On", "Description", "Copied From"},
	}
	for _, s := range d.Sandboxes {
		list.Rows = append(list.Rows, []string{s.Name, s.Type, s.Status, s.Location, s.ReleaseType, s.CurrentOrgID, s.CompletedOn, s.Description, s.CopiedFrom})
	}

	r := pageflow.NewReport("Sandboxes").
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Total Sandboxes", len(d.Sandboxes)).
		Table(licenses).
		Table(list)
	if !d.Ready {
		r.Note("Sandbox list did not finish rendering; the scrape may be incomplete.")
	}
	return r.String()
}

func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	p := Payload{Licenses: d.Licenses, Rows: d.Sandboxes}
	if p.Licenses == nil {
		p.Licenses = []License{}
	}
	if p.Rows == nil {
		p.Rows = []Sandbox{}
	}
	return p
}

// Factory creates a new sandboxes module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
