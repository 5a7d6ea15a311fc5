package pageflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 1024, Int("1,024"))
	assert.Equal(t, 8, Int("08"))
	assert.Equal(t, 0, Int("N/A"))
	assert.Equal(t, -3, Int("-3 days"))
	assert.InDelta(t, 1024.5, Float("1,024.5 MB"), 0.001)
	assert.InDelta(t, 87.0, Percent("87%"), 0.001)
	assert.InDelta(t, 12.5, Percent(" 12.5 % "), 0.001)
	assert.True(t, Bool("Checked"))
	assert.True(t, Bool(" yes "))
	assert.False(t, Bool("Not Checked"))
	assert.False(t, Bool(""))
}
