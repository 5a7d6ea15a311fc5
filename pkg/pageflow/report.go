// pkg/pageflow/report.go
package pageflow

import (
	"strings"

	"github.com/spf13/cast"
)

// Placeholder stands in for empty cells so column counts stay stable.
const Placeholder = "N/A"

// Table is one tab-delimited block of a text report.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

type reportLine struct {
	label string
	value string
}

// Report builds the human-readable text file of a module. Downstream tooling
// treats any run of tab-containing lines as a table whose first line is the
// header, so only table rows may contain tabs.
type Report struct {
	title  string
	lines  []reportLine
	tables []Table
	notes  []string
}

// NewReport starts a report with an upper-cased title line.
func NewReport(title string) *Report {
	return &Report{title: title}
}

// Line adds a "Label: value" summary line.
func (r *Report) Line(label string, value any) *Report {
	r.lines = append(r.lines, reportLine{label: flatten(label), value: Cell(value)})
	return r
}

// Table appends a table.
func (r *Report) Table(t Table) *Report {
	r.tables = append(r.tables, t)
	return r
}

// Note appends a free text line after the tables.
func (r *Report) Note(text string) *Report {
	r.notes = append(r.notes, flatten(text))
	return r
}

// String renders the report. Rendering is deterministic.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(flatten(r.title)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(r.title)))
	b.WriteString("\n")
	for _, l := range r.lines {
		b.WriteString(l.label)
		b.WriteString(": ")
		b.WriteString(l.value)
		b.WriteString("\n")
	}
	for _, t := range r.tables {
		b.WriteString("\n")
		writeTable(&b, t)
	}
	if len(r.notes) > 0 {
		b.WriteString("\n")
		for _, n := range r.notes {
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, t Table) {
	if t.Title != "" {
		b.WriteString(strings.ToUpper(flatten(t.Title)))
		b.WriteString("\n")
	}
	header := make([]string, len(t.Header))
	for i, h := range t.Header {
		header[i] = Cell(h)
	}
	b.WriteString(strings.Join(header, "\t"))
	b.WriteString("\n")
	if len(t.Rows) == 0 {
		b.WriteString("No records found\n")
		return
	}
	for _, row := range t.Rows {
		cells := make([]string, len(header))
		for i := range cells {
			if i < len(row) {
				cells[i] = Cell(row[i])
			} else {
				cells[i] = Placeholder
			}
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString("\n")
	}
}

// Cell renders v for a table cell: whitespace collapsed, empty as Placeholder.
func Cell(v any) string {
	s := flatten(cast.ToString(v))
	if s == "" {
		return Placeholder
	}
	return s
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
