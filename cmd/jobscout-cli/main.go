package main

import (
	"context"
	"jobscout-backend/cmd/jobscout-cli/commands"
	"jobscout-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.SetupFromEnv(ctx, "jobscout-cli")
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
