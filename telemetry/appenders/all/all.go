package all

import (
	// Call package wide init function
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/appinsights"
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/insights"
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/logappender"
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/opensearch"
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/remote"
)
