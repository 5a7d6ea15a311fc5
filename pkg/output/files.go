package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/orginsights/insights/pkg/engine"
)

// ManifestFile is the run summary written next to the module files.
const ManifestFile = "manifest.yaml"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RunDir returns the folder of one run: <base>/<Customer>_<YYYY-MM-DD>.
// Characters outside [A-Za-z0-9._-] in the customer name become "_".
func RunDir(base, customer string, day time.Time) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(customer), "_"), "_")
	if name == "" {
		name = "Unknown"
	}
	return filepath.Join(base, name+"_"+day.Format("2006-01-02"))
}

// Manifest describes a finished run.
type Manifest struct {
	JobID      string          `yaml:"job_id"`
	Customer   string          `yaml:"customer"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Succeeded  int             `yaml:"succeeded"`
	Failed     int             `yaml:"failed"`
	Modules    []ManifestEntry `yaml:"modules"`
}

// ManifestEntry is one module's line in the manifest.
type ManifestEntry struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Filename  string        `yaml:"filename"`
	Success   bool          `yaml:"success"`
	Files     []string      `yaml:"files,omitempty"`
	Error     string        `yaml:"error,omitempty"`
	ErrorCode string        `yaml:"error_code,omitempty"`
	Duration  time.Duration `yaml:"duration"`
}

// FileWriter persists module results into the run folder: <filename>.txt
// and <filename>.json per successful module and manifest.yaml once the run
// completes. Failed modules only appear in the manifest.
type FileWriter struct {
	dir      string
	jobID    string
	customer string
	started  time.Time
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	written map[string][]string // module id -> files
	err     error
}

// NewFileWriter writes into RunDir(base, customer, today).
func NewFileWriter(base, customer, jobID string, logger zerolog.Logger) *FileWriter {
	now := time.Now()
	return &FileWriter{
		dir:      RunDir(base, customer, now),
		jobID:    jobID,
		customer: customer,
		started:  now.UTC(),
		now:      time.Now,
		logger:   logger.With().Str("component", "output.files").Logger(),
		written:  make(map[string][]string),
	}
}

// Dir is the run folder.
func (w *FileWriter) Dir() string { return w.dir }

// Err returns the first write error, if any.
func (w *FileWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *FileWriter) Name() string { return "file-writer" }

func (w *FileWriter) ShouldHandle(e engine.Event) bool {
	return e.Kind == engine.EventModuleCompleted || e.Kind == engine.EventRunComplete
}

func (w *FileWriter) Handle(e engine.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e.Kind {
	case engine.EventModuleCompleted:
		if e.Result == nil || !e.Result.Success {
			return
		}
		files, err := w.writeResult(*e.Result)
		if err != nil {
			w.fail(err)
			w.logger.Error().Err(err).Str("module", e.ModuleID).Msg("Failed to write module output")
			return
		}
		w.written[e.ModuleID] = files
		w.logger.Debug().Str("module", e.ModuleID).Strs("files", files).Msg("Module output written")
	case engine.EventRunComplete:
		if err := w.writeManifest(e.Results); err != nil {
			w.fail(err)
			w.logger.Error().Err(err).Msg("Failed to write run manifest")
			return
		}
		w.logger.Info().Str("dir", w.dir).Int("modules", len(e.Results)).Msg("Run output written")
	}
}

func (w *FileWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *FileWriter) writeResult(r engine.Result) ([]string, error) {
	if r.Filename == "" {
		return nil, fmt.Errorf("module %s has no output filename", r.ModuleID)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	txt := r.Filename + ".txt"
	if err := os.WriteFile(filepath.Join(w.dir, txt), []byte(r.Formatted), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", txt, err)
	}
	files := []string{txt}
	if r.Payload == nil {
		return files, nil
	}

	data, err := json.MarshalIndent(r.Payload, "", "  ")
	if err != nil {
		return files, fmt.Errorf("encode %s payload: %w", r.ModuleID, err)
	}
	name := r.Filename + ".json"
	if err := os.WriteFile(filepath.Join(w.dir, name), append(data, '\n'), 0o644); err != nil {
		return files, fmt.Errorf("write %s: %w", name, err)
	}
	return append(files, name), nil
}

func (w *FileWriter) writeManifest(results []engine.Result) error {
	m := Manifest{
		JobID:      w.jobID,
		Customer:   w.customer,
		StartedAt:  w.started,
		FinishedAt: w.now().UTC(),
		Modules:    make([]ManifestEntry, 0, len(results)),
	}
	m.Succeeded, m.Failed = engine.Tally(results)
	for _, r := range results {
		m.Modules = append(m.Modules, ManifestEntry{
			ID:        r.ModuleID,
			Name:      r.ModuleName,
			Filename:  r.Filename,
			Success:   r.Success,
			Files:     w.written[r.ModuleID],
			Error:     r.Error,
			ErrorCode: r.ErrorCode,
			Duration:  r.Duration(),
		})
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, ManifestFile), data, 0o644)
}

// ReadManifest loads the manifest of a run folder.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
