// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for the insights CLI.
type Config struct {
	Log          LogConfig          `description:"Logging configuration" koanf:"log"`
	Browser      BrowserConfig      `description:"Browser connection" koanf:"browser"`
	Pacing       PacingConfig       `description:"Page pacing and retry discipline" koanf:"pacing"`
	Modules      ModulesConfig      `description:"Extraction module settings" koanf:"modules"`
	Output       OutputConfig       `description:"Run output settings" koanf:"output"`
	Store        StoreConfig        `description:"Job state store" koanf:"store"`
	LoginHistory LoginHistoryConfig `description:"Login history export" koanf:"login_history"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level (trace, debug, info, warn, error)" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path" koanf:"file"`
}

// BrowserConfig selects the page probe backend and the tab to drive.
type BrowserConfig struct {
	Driver    string `description:"Page probe backend: chromedp | playwright" koanf:"driver" validate:"oneof=chromedp playwright"`
	RemoteURL string `description:"DevTools endpoint of an already running browser" koanf:"remote_url" validate:"omitempty,url"`
	Headless  bool   `description:"Launch headless when no remote browser is given" koanf:"headless"`
	TabMatch  string `description:"URL substring used to pick the console tab" koanf:"tab_match"`
}

// PacingConfig mirrors the shared wait/retry primitives.
type PacingConfig struct {
	SearchDelay     time.Duration `description:"Delay after typing into the search box" koanf:"search_delay" validate:"gte=0"`
	NavigationDelay time.Duration `description:"Delay after clicking into a section" koanf:"navigation_delay" validate:"gte=0"`
	PollInterval    time.Duration `description:"Interval between readiness probes" koanf:"poll_interval" validate:"gte=0"`
	PollAttempts    int           `description:"Maximum readiness probes" koanf:"poll_attempts" validate:"gte=0"`
	SettleDelay     time.Duration `description:"Delay after expanding collapsed sections" koanf:"settle_delay" validate:"gte=0"`
	RetryAttempts   int           `description:"Scrape attempts while the page still looks empty" koanf:"retry_attempts" validate:"gte=1"`
	RetryWait       time.Duration `description:"Wait between scrape attempts" koanf:"retry_wait" validate:"gte=0"`
	BetweenModules  time.Duration `description:"Pause between two modules" koanf:"between_modules" validate:"gte=0"`
}

// ModulesConfig holds module defaults and per-module overrides.
type ModulesConfig struct {
	Timeout  time.Duration            `description:"Default hard timeout for one module" koanf:"timeout" validate:"gt=0"`
	Timeouts map[string]time.Duration `description:"Per-module hard timeouts keyed by module id" koanf:"timeouts"`
	Options  map[string]map[string]any `description:"Per-module options keyed by module id" koanf:"options"`
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Dir string `description:"Base directory for <Customer>_<date> run folders" koanf:"dir" validate:"required"`
}

// StoreConfig selects the job state store.
type StoreConfig struct {
	Driver        string        `description:"Job store: memory | redis" koanf:"driver" validate:"oneof=memory redis"`
	RedisAddr     string        `description:"Redis address" koanf:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string        `description:"Redis password" koanf:"redis_password"`
	RedisDB       int           `description:"Redis database index" koanf:"redis_db" validate:"gte=0"`
	TTL           time.Duration `description:"How long job records are kept" koanf:"ttl" validate:"gte=0"`
}

// LoginHistoryConfig configures the CSV export of the login history module.
type LoginHistoryConfig struct {
	DownloadDir  string        `description:"Directory the browser saves downloads into" koanf:"download_dir"`
	DownloadWait time.Duration `description:"How long to wait for the CSV export" koanf:"download_wait" validate:"gte=0"`
}
