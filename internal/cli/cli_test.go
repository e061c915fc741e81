package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/config"
	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

func fixtureConfig() config.Config {
	cfg := config.Default()
	cfg.Source.Mode = config.SourceModeFixture
	cfg.Database.Driver = config.DriverMemory
	return cfg
}

func TestNewApp_FixtureMemoryRun(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, fixtureConfig(), zap.NewNop(), AppOptions{Broker: true})
	require.NoError(t, err)
	defer app.Close()

	summary := app.Sync.Run(ctx)

	require.True(t, summary.Succeeded())
	leads, ok := summary.Phase(entity.EntityLeads)
	require.True(t, ok)
	assert.Equal(t, 4, leads.Extracted)
	assert.Equal(t, 3, leads.Unique)
	assert.EqualValues(t, 3, leads.Loaded)

	conv, err := app.Reports.ConversionRate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, conv.TotalLeads)
	assert.EqualValues(t, 2, conv.TotalCustomers)
	assert.Equal(t, 66.67, conv.ConversionRatePercentage)

	deals, err := app.Reports.DealPerformance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "65000.00", deals.HighValueAnalysis.TotalAmountHighValueDeals)
	assert.Nil(t, app.Broker)
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	summary := usecase.RunSummary{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Phases: []usecase.PhaseResult{
			{Entity: entity.EntityLeads, Status: usecase.PhaseOK, Step: usecase.StepLoad, Extracted: 4, Unique: 3, Loaded: 3},
			{Entity: entity.EntityDeals, Status: usecase.PhaseFailed, Step: usecase.StepExtract, Error: "boom"},
		},
	}

	var text bytes.Buffer
	require.NoError(t, printSummary(&text, "text", summary))
	assert.Contains(t, text.String(), "run run-1 (1.5s)")
	assert.Contains(t, text.String(), "ENTITY")
	assert.Contains(t, text.String(), "boom")

	var js bytes.Buffer
	require.NoError(t, printSummary(&js, "json", summary))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", nil)))

	err := WrapExitError(ExitFailure, "phases failed", errors.New("deals"))
	assert.Equal(t, "phases failed: deals", err.Error())
}

func TestRootCommand_SyncFixtureJSON(t *testing.T) {
	t.Setenv("SOURCE_MODE", "fixture")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("MAIL_HOST", "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sync", "-o", "json", "--fail-on-error"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var summary usecase.RunSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Len(t, summary.Phases, 2)
	assert.True(t, summary.Succeeded())
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	t.Setenv("SOURCE_MODE", "fixture")
	t.Setenv("DB_DRIVER", "memory")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"sync", "-o", "yaml"})

	err := cmd.ExecuteContext(context.Background())

	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_ReportDealsMemory(t *testing.T) {
	t.Setenv("SOURCE_MODE", "fixture")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"report", "deals"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "closedwon")
	assert.Contains(t, out.String(), "65000.00")
}
