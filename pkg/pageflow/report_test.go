package pageflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell(t *testing.T) {
	assert.Equal(t, Placeholder, Cell(nil))
	assert.Equal(t, Placeholder, Cell("   "))
	assert.Equal(t, "a b c", Cell("a\tb\nc"))
	assert.Equal(t, "12", Cell(12))
	assert.Equal(t, "true", Cell(true))
}

func TestReport_String(t *testing.T) {
	r := NewReport("Health Check").
		Line("Health Check Score", "87%").
		Line("Generated", "2026-10-16T09:00:00Z").
		Table(Table{
			Title:  "High Risk",
			Header: []string{"Status", "Setting", "Your Value"},
			Rows: [][]string{
				{"Critical", "Password\tExpiry", ""},
				{"Warning"},
			},
		}).
		Table(Table{Title: "Low Risk", Header: []string{"Status", "Setting"}}).
		Note("Score read after 2 attempts")

	out := r.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.GreaterOrEqual(t, len(lines), 10)
	assert.Equal(t, "HEALTH CHECK", lines[0])
	assert.Equal(t, "Health Check Score: 87%", lines[2])
	assert.Contains(t, out, "Status\tSetting\tYour Value\n")
	assert.Contains(t, out, "Critical\tPassword Expiry\tN/A\n")
	assert.Contains(t, out, "Warning\tN/A\tN/A\n")
	assert.Contains(t, out, "LOW RISK\nStatus\tSetting\nNo records found\n")
	assert.True(t, strings.HasSuffix(out, "Score read after 2 attempts\n"))

	for _, l := range lines {
		if strings.Contains(l, ": ") {
			assert.NotContains(t, l, "\t", "summary lines carry no tabs")
		}
	}
}

func TestReport_Deterministic(t *testing.T) {
	build := func() string {
		return NewReport("Storage").Line("Rows", 2).Table(Table{Header: []string{"A"}, Rows: [][]string{{"x"}}}).String()
	}
	assert.Equal(t, build(), build())
}
