// pkg/version/version.go
// Package version provides version metadata for the application.
package version

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	// Version holds the current version of insights.
	Version = "dev"
	// Commit holds the current version commit of insights.
	Commit = "none"
	// BuildDate holds the build date of insights.
	BuildDate = "unknown"
	// StartDate holds the start date of insights.
	StartDate = time.Now()
)

// Struct returns version information in a structured format.
type Struct struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	BuildDate  string `json:"buildDate"`
	Prerelease bool   `json:"prerelease"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("Insights %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:    Version,
		Commit:     Commit,
		BuildDate:  BuildDate,
		Prerelease: !IsRelease(),
	}
}

// Parsed returns Version as a semantic version. Development builds ("dev")
// do not parse.
func Parsed() (*semver.Version, error) {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", Version, err)
	}
	return v, nil
}

// IsRelease reports whether this is a tagged, non-prerelease build.
func IsRelease() bool {
	v, err := Parsed()
	return err == nil && v.Prerelease() == ""
}
