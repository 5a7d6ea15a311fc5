package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/pkg/engine"
)

type recordingSubscriber struct {
	name  string
	only  engine.EventKind
	calls *[]string
}

func (s recordingSubscriber) Name() string { return s.name }

func (s recordingSubscriber) ShouldHandle(e engine.Event) bool {
	return s.only == "" || e.Kind == s.only
}

func (s recordingSubscriber) Handle(e engine.Event) {
	*s.calls = append(*s.calls, s.name+":"+string(e.Kind))
}

func TestStream_DispatchesInOrderAndFilters(t *testing.T) {
	var calls []string
	s := NewStream(
		recordingSubscriber{name: "a", calls: &calls},
		nil,
		recordingSubscriber{name: "b", only: engine.EventRunComplete, calls: &calls},
	)
	assert.Equal(t, 2, s.SubscriberCount())

	s.OnEvent(engine.Event{Kind: engine.EventModuleStarted})
	s.OnEvent(engine.Event{Kind: engine.EventRunComplete})

	assert.Equal(t, []string{"a:module-started", "a:run-complete", "b:run-complete"}, calls)
}

func TestRunDir(t *testing.T) {
	day := time.Date(2026, 2, 19, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "Acme_Corp_2026-02-19"), RunDir("out", "Acme Corp", day))
	assert.Equal(t, filepath.Join("out", "A_B_2026-02-19"), RunDir("out", " A/B ", day))
	assert.Equal(t, filepath.Join("out", "Unknown_2026-02-19"), RunDir("out", "  ", day))
}

func TestFileWriter(t *testing.T) {
	base := t.TempDir()
	w := NewFileWriter(base, "Acme", "job-1", zerolog.Nop())
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	ok := engine.Result{
		ModuleID: "licenses", ModuleName: "Licenses", Filename: "1_licenses", Success: true,
		Formatted: "Licenses\n", Payload: map[string]any{"userLicenses": []any{}},
		StartedAt: start, FinishedAt: start.Add(2 * time.Second),
	}
	failed := engine.Result{
		ModuleID: "storage", ModuleName: "Storage", Filename: "5_storage",
		Formatted: "Error: link not found", Error: "link not found", ErrorCode: "NAVIGATION_FAILED",
		StartedAt: start, FinishedAt: start.Add(time.Second),
	}

	stream := NewStream(w)
	stream.OnEvent(engine.Event{Kind: engine.EventModuleCompleted, ModuleID: "licenses", Result: &ok})
	stream.OnEvent(engine.Event{Kind: engine.EventModuleCompleted, ModuleID: "storage", Result: &failed})
	stream.OnEvent(engine.Event{Kind: engine.EventRunComplete, Results: []engine.Result{ok, failed}})
	require.NoError(t, w.Err())

	txt, err := os.ReadFile(filepath.Join(w.Dir(), "1_licenses.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Licenses\n", string(txt))

	raw, err := os.ReadFile(filepath.Join(w.Dir(), "1_licenses.json"))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Contains(t, payload, "userLicenses")

	assert.NoFileExists(t, filepath.Join(w.Dir(), "5_storage.txt"))
	assert.NoFileExists(t, filepath.Join(w.Dir(), "5_storage.json"))

	m, err := ReadManifest(w.Dir())
	require.NoError(t, err)
	assert.Equal(t, "job-1", m.JobID)
	assert.Equal(t, 1, m.Succeeded)
	assert.Equal(t, 1, m.Failed)
	require.Len(t, m.Modules, 2)
	assert.Equal(t, []string{"1_licenses.txt", "1_licenses.json"}, m.Modules[0].Files)
	assert.Equal(t, 2*time.Second, m.Modules[0].Duration)
	assert.Equal(t, "NAVIGATION_FAILED", m.Modules[1].ErrorCode)
	assert.Empty(t, m.Modules[1].Files)
}

func TestFileWriter_RecordsWriteErrors(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	w := NewFileWriter(blocker, "Acme", "job-1", zerolog.Nop())
	res := engine.Result{ModuleID: "licenses", Filename: "1_licenses", Success: true}
	w.Handle(engine.Event{Kind: engine.EventModuleCompleted, ModuleID: "licenses", Result: &res})
	assert.Error(t, w.Err())
}
