package engine

import "strings"

// filenames is the one place output base names are assigned. Downstream
// report mapping parses the ordinal prefix to rebuild presentation order, so
// an existing entry must never change. New modules take the next free
// ordinal.
//
// sensitive-data has no ordinal: it was added after the mapping was frozen
// and is read under this exact stem.
var filenames = map[string]string{
	"licenses":         "1_licenses",
	"profiles":         "2_profiles",
	"general-info":     "3_general_info",
	"health-check":     "4_health_check",
	"storage":          "5_storage",
	"sandboxes":        "6_sandboxes",
	"sharing-settings": "7_sharing_settings",
	"login-history":    "8_login_history",
	"sensitive-data":   "sensitive-data",
}

// FilenameFor returns the canonical output base name for a module id.
// Ids outside the table fall back to the id with dashes turned into
// underscores, without an ordinal.
func FilenameFor(id string) string {
	if name, ok := filenames[id]; ok {
		return name
	}
	return strings.ReplaceAll(id, "-", "_")
}

// KnownFilenames returns a copy of the ordinal table.
func KnownFilenames() map[string]string {
	out := make(map[string]string, len(filenames))
	for id, name := range filenames {
		out[id] = name
	}
	return out
}
