package probetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/probe"
)

func TestStub_ReturnDecodesThroughJSON(t *testing.T) {
	s := New().Return("rows", []map[string]any{{"name": "Admin", "count": 3}})

	var out []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, s.Eval(context.Background(), DefaultTab, probe.Call{Name: "rows"}, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Admin", out[0].Name)
	assert.Equal(t, 3, out[0].Count)
	assert.Equal(t, 1, s.Count("rows"))
}

func TestStub_UnknownRoutine(t *testing.T) {
	err := New().Eval(context.Background(), DefaultTab, probe.Call{Name: "missing"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, probe.ErrRoutine))
	assert.Contains(t, err.Error(), "missing")
}

func TestStub_Sequence(t *testing.T) {
	s := New().Sequence("n", 1, 2)
	var got []int
	for i := 0; i < 3; i++ {
		var v int
		require.NoError(t, s.Eval(context.Background(), DefaultTab, probe.Call{Name: "n"}, &v))
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 2}, got)
}

func TestStub_BlockHonoursContext(t *testing.T) {
	s := New().Block("slow")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Eval(ctx, DefaultTab, probe.Call{Name: "slow"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStub_SurfaceAccounting(t *testing.T) {
	s := New()
	a, err := s.Open(context.Background(), "https://a")
	require.NoError(t, err)
	b, err := s.Open(context.Background(), "https://b")
	require.NoError(t, err)
	assert.NotEqual(t, a.Tab().ID, b.Tab().ID)
	assert.Equal(t, 2, s.Leaked())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, s.Leaked())
	require.NoError(t, b.Close())
	assert.Equal(t, 0, s.Leaked())
	assert.Equal(t, 2, s.Opened())
}

func TestStub_ClosedRejectsCalls(t *testing.T) {
	s := New().Return("x", 1)
	require.NoError(t, s.Close())
	err := s.Eval(context.Background(), DefaultTab, probe.Call{Name: "x"}, nil)
	assert.ErrorIs(t, err, probe.ErrClosed)
}
