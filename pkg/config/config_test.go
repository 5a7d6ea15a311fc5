package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to reset global variables for testing
func resetGlobalConfig() {
	k = nil
	once = sync.Once{}
}

func TestInitGlobalConfig_IsIdempotent(t *testing.T) {
	resetGlobalConfig()
	InitGlobalConfig()
	firstInstance := k
	InitGlobalConfig()
	assert.Same(t, firstInstance, k)
	assert.Equal(t, ".", k.Delim())
}

func TestNewManager_SharesGlobalKoanf(t *testing.T) {
	resetGlobalConfig()
	manager1 := NewManager()
	manager2 := NewManager()
	assert.NotNil(t, manager1.koanfInstance)
	assert.Same(t, manager1.koanfInstance, manager2.koanfInstance)
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.BetweenModules)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestDefaultConfigAsMap_CoversTimeouts(t *testing.T) {
	m := DefaultConfigAsMap()
	assert.Equal(t, 150*time.Second, m["modules.timeouts.health-check"])
	assert.Equal(t, "insights-output", m["output.dir"])
}

func TestManagerLoad_FileEnvFlags(t *testing.T) {
	resetGlobalConfig()

	path := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  driver: playwright
pacing:
  retry_attempts: 5
modules:
  timeouts:
    storage: 40s
  options:
    profiles:
      max_profiles: 12
`), 0o644))
	t.Setenv("INSIGHTS_OUTPUT_DIR", "/var/insights")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--store.driver", "memory", "--debug"}))

	manager := NewManager()
	require.NoError(t, manager.Load(flags, path))
	cfg := manager.Get()

	assert.Equal(t, "playwright", cfg.Browser.Driver)
	assert.Equal(t, 5, cfg.Pacing.RetryAttempts)
	assert.Equal(t, "/var/insights", cfg.Output.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 40*time.Second, cfg.ModuleTimeout("storage"))
	assert.Equal(t, 150*time.Second, cfg.ModuleTimeout("health-check"))
	assert.Equal(t, 90*time.Second, cfg.ModuleTimeout("licenses"))
	assert.EqualValues(t, 12, cfg.ModuleOptions("profiles")["max_profiles"])
}

func TestManagerLoad_InvalidDriver(t *testing.T) {
	resetGlobalConfig()
	path := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  driver: selenium\n"), 0o644))

	err := NewManager().Load(nil, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "redis"
	cfg.Store.RedisAddr = ""
	require.Error(t, Validate(cfg))

	cfg.Store.RedisAddr = "localhost:6379"
	require.NoError(t, Validate(cfg))
}

func TestModuleOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginHistory.DownloadDir = "/downloads"

	opts := cfg.ModuleOptions("login-history")
	assert.Equal(t, 120*time.Second, opts["timeout"])
	assert.Equal(t, "/downloads", opts["download_dir"])
	assert.Equal(t, cfg.Pacing.PollAttempts, opts["poll_attempts"])

	other := cfg.ModuleOptions("licenses")
	_, hasDownload := other["download_dir"]
	assert.False(t, hasDownload)
}
