// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

var validate = validator.New()

// InitGlobalConfig initializes the global Koanf instance.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager bound to the global koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Browser: BrowserConfig{
			Driver:    "chromedp",
			RemoteURL: "http://127.0.0.1:9222",
			Headless:  false,
			TabMatch:  "lightning.force.com",
		},
		Pacing: PacingConfig{
			SearchDelay:     2 * time.Second,
			NavigationDelay: 8 * time.Second,
			PollInterval:    time.Second,
			PollAttempts:    20,
			SettleDelay:     2 * time.Second,
			RetryAttempts:   3,
			RetryWait:       3 * time.Second,
			BetweenModules:  500 * time.Millisecond,
		},
		Modules: ModulesConfig{
			Timeout: 90 * time.Second,
			Timeouts: map[string]time.Duration{
				"general-info":  60 * time.Second,
				"health-check":  150 * time.Second,
				"profiles":      150 * time.Second,
				"login-history": 120 * time.Second,
			},
		},
		Output: OutputConfig{
			Dir: "insights-output",
		},
		Store: StoreConfig{
			Driver:    "memory",
			RedisAddr: "127.0.0.1:6379",
			TTL:       24 * time.Hour,
		},
		LoginHistory: LoginHistoryConfig{
			DownloadWait: 30 * time.Second,
		},
	}
}

// Load loads configuration from the default source chain
// (defaults -> file -> env -> flags) and validates the result.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads the given sources in priority order into a fresh koanf
// instance and swaps the result in.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := append([]ConfigSource(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	fresh := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(fresh); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := fresh.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.postProcessConfig(&newCfg)

	if err := Validate(newCfg); err != nil {
		return err
	}

	if m.koanfInstance != nil {
		_ = m.koanfInstance.Merge(fresh)
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Validate runs struct validation over cfg.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (m *Manager) postProcessConfig(cfg *Config) {
	if cfg.Modules.Timeouts == nil {
		cfg.Modules.Timeouts = map[string]time.Duration{}
	}
	if cfg.Pacing.RetryAttempts < 1 {
		cfg.Pacing.RetryAttempts = 1
	}
}

// ModuleTimeout returns the hard timeout configured for a module id.
func (c Config) ModuleTimeout(id string) time.Duration {
	if d, ok := c.Modules.Timeouts[id]; ok && d > 0 {
		return d
	}
	return c.Modules.Timeout
}

// ModuleOptions flattens pacing, timeout and module specific settings into the
// option map handed to a module's Configure method.
func (c Config) ModuleOptions(id string) map[string]any {
	opts := map[string]any{
		"timeout":          c.ModuleTimeout(id),
		"search_delay":     c.Pacing.SearchDelay,
		"navigation_delay": c.Pacing.NavigationDelay,
		"poll_interval":    c.Pacing.PollInterval,
		"poll_attempts":    c.Pacing.PollAttempts,
		"settle_delay":     c.Pacing.SettleDelay,
		"retry_attempts":   c.Pacing.RetryAttempts,
		"retry_wait":       c.Pacing.RetryWait,
	}
	if id == "login-history" {
		opts["download_dir"] = c.LoginHistory.DownloadDir
		opts["download_wait"] = c.LoginHistory.DownloadWait
	}
	for key, val := range c.Modules.Options[id] {
		opts[key] = val
	}
	return opts
}

// DefaultConfigAsMap converts DefaultConfig to the flat map used by confmap.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	out := map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"browser.driver":     def.Browser.Driver,
		"browser.remote_url": def.Browser.RemoteURL,
		"browser.headless":   def.Browser.Headless,
		"browser.tab_match":  def.Browser.TabMatch,

		"pacing.search_delay":     def.Pacing.SearchDelay,
		"pacing.navigation_delay": def.Pacing.NavigationDelay,
		"pacing.poll_interval":    def.Pacing.PollInterval,
		"pacing.poll_attempts":    def.Pacing.PollAttempts,
		"pacing.settle_delay":     def.Pacing.SettleDelay,
		"pacing.retry_attempts":   def.Pacing.RetryAttempts,
		"pacing.retry_wait":       def.Pacing.RetryWait,
		"pacing.between_modules":  def.Pacing.BetweenModules,

		"modules.timeout": def.Modules.Timeout,

		"output.dir": def.Output.Dir,

		"store.driver":         def.Store.Driver,
		"store.redis_addr":     def.Store.RedisAddr,
		"store.redis_password": def.Store.RedisPassword,
		"store.redis_db":       def.Store.RedisDB,
		"store.ttl":            def.Store.TTL,

		"login_history.download_dir":  def.LoginHistory.DownloadDir,
		"login_history.download_wait": def.LoginHistory.DownloadWait,
	}
	for id, d := range def.Modules.Timeouts {
		out["modules.timeouts."+id] = d
	}
	return out
}

// BindFlags defines command-line flags that override configuration keys.
// Flag names equal koanf keys so posflag can map them directly.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
	flags.String("browser.driver", "", "Page probe backend (chromedp, playwright)")
	flags.String("browser.remote_url", "", "DevTools endpoint of a running browser")
	flags.String("output.dir", "", "Base directory for run output")
	flags.String("store.driver", "", "Job store (memory, redis)")
}
