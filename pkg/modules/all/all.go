// Package all registers every built-in extraction module. Import it for its
// side effects.
package all

import (
	_ "github.com/orginsights/insights/pkg/modules/generalinfo"
	_ "github.com/orginsights/insights/pkg/modules/healthcheck"
	_ "github.com/orginsights/insights/pkg/modules/licenses"
	_ "github.com/orginsights/insights/pkg/modules/loginhistory"
	_ "github.com/orginsights/insights/pkg/modules/profiles"
	_ "github.com/orginsights/insights/pkg/modules/sandboxes"
	_ "github.com/orginsights/insights/pkg/modules/sensitivedata"
	_ "github.com/orginsights/insights/pkg/modules/sharing"
	_ "github.com/orginsights/insights/pkg/modules/storage"
)
