// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package healthcheck extracts the Security Health Check score and its risk
// tables.
package healthcheck

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/pageflow"
)

const moduleID = "health-check"

// scoreSelector covers the score badge of the Lightning and classic pages.
const scoreSelector = ".slds-text-heading_large, .healthCheckScore, .score-value, [data-id='score']"

// riskHeaders is the header signature shared by every risk table.
var riskHeaders = []string{"Status", "Setting", "Your Value"}

// Risk is a risk bucket of the health check page.
type Risk string

const (
	RiskHigh          Risk = "high"
	RiskMedium        Risk = "medium"
	RiskLow           Risk = "low"
	RiskInformational Risk = "informational"
)

var riskOrder = []Risk{RiskHigh, RiskMedium, RiskLow, RiskInformational}

var riskTitles = map[Risk]string{
	RiskHigh:          "High-Risk Security Settings",
	RiskMedium:        "Medium-Risk Security Settings",
	RiskLow:           "Low-Risk Security Settings",
	RiskInformational: "Informational Security Settings",
}

// Item is one setting row of a risk table.
type Item struct {
	Status        string `json:"status"`
	Setting       string `json:"setting"`
	Group         string `json:"group"`
	YourValue     string `json:"yourValue"`
	StandardValue string `json:"standardValue"`
}

// Data is the raw scrape result.
type Data struct {
	ScoreText  string
	Percentage float64
	Items      map[Risk][]Item
	Attempts   int
	Ready      bool
	CapturedAt time.Time
}

func (d *Data) rows() int {
	n := 0
	for _, items := range d.Items {
		n += len(items)
	}
	return n
}

// Payload is the structured contract written to 4_health_check.json.
type Payload struct {
	Percentage    string  `json:"percentage"` // as displayed, e.g. "87%"
	Score         float64 `json:"score"`
	HighRisk      []Item  `json:"highRisk"`
	MediumRisk    []Item  `json:"mediumRisk"`
	LowRisk       []Item  `json:"lowRisk"`
	Informational []Item  `json:"informational"`
	Attempts      int     `json:"attempts"`
	Ready         bool    `json:"ready"`
}

// Module scrapes Setup > Health Check.
type Module struct {
	pageflow.Base
}

func newModule() *Module {
	return &Module{
		Base: pageflow.NewBase(engine.Descriptor{
			ID:          moduleID,
			Name:        "Health Check",
			Description: "Security Health Check score and high, medium, low and informational risk settings.",
			Version:     "1.2.0",
			Timeout:     150 * time.Second,
		}),
	}
}

// Scrape navigates to Health Check, waits for the risk tables, expands
// collapsed sections and reads the page, retrying while it still reads as
// empty.
func (m *Module) Scrape(ctx context.Context, ec engine.ExecutionContext) (any, error) {
	flow := m.Flow(ec)

	ec.Report(0, "Opening Health Check")
	if err := flow.Navigate(ctx, "Health Check", pageflow.Target{
		Label:    "Health Check",
		Selector: `a[title="Health Check"]`,
		Attr:     "HealthCheck",
	}); err != nil {
		return nil, err
	}

	ec.Report(25, "Waiting for risk tables")
	readiness, err := flow.WaitFor(ctx, riskHeaders)
	if err != nil {
		return nil, err
	}
	if readiness.Ready {
		if _, err := flow.Expand(ctx); err != nil {
			return nil, err
		}
	}

	ec.Report(50, "Reading score and settings")
	data, attempts, err := pageflow.RetryWhileEmpty(ctx, m.ScrapeRetry(),
		func(ctx context.Context) (*Data, error) { return read(ctx, flow) },
		isEmpty)
	if err != nil {
		return nil, err
	}
	data.Attempts = attempts
	data.Ready = readiness.Ready
	data.CapturedAt = time.Now().UTC()

	ec.Report(75, fmt.Sprintf("Read %d settings", data.rows()))
	m.Logger.Info().Float64("score", data.Percentage).Int("settings", data.rows()).Int("attempts", attempts).Msg("Health check read")
	ec.Report(100, "Health Check complete")
	return data, nil
}

// isEmpty is the "not rendered yet" heuristic: no score and no rows. A page
// whose real score is 0% with no settings is indistinguishable from it.
func isEmpty(d *Data) bool {
	return d.Percentage == 0 && d.rows() == 0
}

func read(ctx context.Context, flow *pageflow.Flow) (*Data, error) {
	score, _, err := flow.Text(ctx, scoreSelector)
	if err != nil {
		return nil, err
	}
	tables, err := flow.Tables(ctx, riskHeaders)
	if err != nil {
		return nil, err
	}

	data := &Data{ScoreText: score, Percentage: pageflow.Percent(score), Items: map[Risk][]Item{}}
	for i, t := range tables {
		risk := classify(t.Caption, i)
		for _, row := range t.Rows {
			data.Items[risk] = append(data.Items[risk], Item{
				Status:        t.Value(row, "Status"),
				Setting:       t.Value(row, "Setting"),
				Group:         t.Value(row, "Group"),
				YourValue:     t.Value(row, "Your Value"),
				StandardValue: t.Value(row, "Standard Value"),
			})
		}
	}
	return data, nil
}

// classify maps a table caption to its risk bucket, falling back to the
// page order of the tables.
func classify(caption string, index int) Risk {
	c := strings.ToLower(caption)
	for _, r := range riskOrder {
		if strings.Contains(c, string(r)) {
			return r
		}
	}
	if index < len(riskOrder) {
		return riskOrder[index]
	}
	return RiskInformational
}

func asData(raw any) *Data {
	if d, ok := raw.(*Data); ok && d != nil {
		return d
	}
	return &Data{Items: map[Risk][]Item{}}
}

// ScoreLine renders the score the way downstream parsers expect it.
func ScoreLine(percentage float64) string {
	return strconv.FormatFloat(percentage, 'f', -1, 64) + "%"
}

// Format renders the score, counts and one table per risk bucket.
func (m *Module) Format(raw any) string {
	d := asData(raw)
	r := pageflow.NewReport("Health Check").
		Line("Health Check Score", ScoreLine(d.Percentage)).
		Line("Generated", d.CapturedAt.Format(time.RFC3339)).
		Line("Total Settings", d.rows())
	for _, risk := range riskOrder {
		r.Line(riskTitles[risk], len(d.Items[risk]))
	}
	for _, risk := range riskOrder {
		t := pageflow.Table{Title: riskTitles[risk], Header: []string{"Status", "Setting", "Group", "Your Value", "Standard Value"}}
		for _, it := range d.Items[risk] {
			t.Rows = append(t.Rows, []string{it.Status, it.Setting, it.Group, it.YourValue, it.StandardValue})
		}
		r.Table(t)
	}
	if !d.Ready {
		r.Note("Risk tables did not finish rendering; the scrape may be incomplete.")
	}
	return r.String()
}

// StructuredPayload maps the scrape to the JSON contract. Empty buckets are
// empty arrays.
func (m *Module) StructuredPayload(raw any) any {
	d := asData(raw)
	bucket := func(r Risk) []Item {
		if items := d.Items[r]; items != nil {
			return items
		}
		return []Item{}
	}
	return Payload{
		Percentage:    ScoreLine(d.Percentage),
		Score:         d.Percentage,
		HighRisk:      bucket(RiskHigh),
		MediumRisk:    bucket(RiskMedium),
		LowRisk:       bucket(RiskLow),
		Informational: bucket(RiskInformational),
		Attempts:      d.Attempts,
		Ready:         d.Ready,
	}
}

// Factory creates a new health check module.
func Factory() engine.Module {
	return newModule()
}

func init() {
	engine.RegisterModuleFactory(moduleID, Factory)
}
