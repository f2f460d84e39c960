package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/workflow"
)

func echoContract() atom.Contract {
	return atom.Contract{
		Kind:   atom.KindAnalyzer,
		Reads:  []string{"seed.value"},
		Writes: []string{"echo.value"},
	}
}

func newEchoTracker(t *testing.T) (*runTracker, *license.Manager, *meter.Meter) {
	t.Helper()

	registry := atom.NewRegistry()
	err := registry.Register("echo", func(ctx context.Context, rc atom.RunContext, in atom.Input) error {
		rc.Emit("echo.value", in.Triggers["seed.value"], 1.0)

		return nil
	}, echoContract())
	require.NoError(t, err)

	licenseMgr := license.NewManager(license.Config{})
	meterInst := meter.New(meter.Config{}, 1000)

	g := gate.New(gate.Config{License: licenseMgr, Meter: meterInst})

	tracker := newRunTracker(ServerDeps{
		Registry: registry,
		Gate:     g,
		License:  licenseMgr,
		Meter:    meterInst,
	})

	return tracker, licenseMgr, meterInst
}

func definitionJSON(t *testing.T) json.RawMessage {
	t.Helper()

	def := workflow.Definition{
		ID: "test",
		Nodes: []workflow.Node{
			{ID: "echo1", AtomName: "echo"},
		},
		Edges: []workflow.Edge{
			{SourceNode: "seed", SignalName: "seed.value", TargetNode: "echo1"},
		},
	}

	data, err := json.Marshal(def)
	require.NoError(t, err)

	return data
}

func TestHandleWorkflowRun_EchoesSeedAndCompletes(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	input := WorkflowRunInput{
		Definition:     definitionJSON(t),
		Seed:           map[string]any{"seed.value": "hello"},
		TimeoutSeconds: 5,
	}

	result, output, err := tracker.handleWorkflowRun(context.Background(), nil, input)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	payload, ok := output.Data.(runStatusPayload)
	require.True(t, ok)
	assert.NotEmpty(t, payload.RunID)
	assert.Equal(t, RunCompleted, payload.State)

	var sawEcho bool

	for _, sig := range payload.Signals {
		if sig.Name == "echo.value" {
			sawEcho = true

			assert.Equal(t, "hello", sig.Value)
		}
	}

	assert.True(t, sawEcho, "expected echo.value signal to be recorded")
}

func TestHandleWorkflowRun_RejectsEmptyDefinition(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	result, _, err := tracker.handleWorkflowRun(context.Background(), nil, WorkflowRunInput{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleWorkflowStatus_RoundTripsAfterRun(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	runResult, runOutput, err := tracker.handleWorkflowRun(context.Background(), nil, WorkflowRunInput{
		Definition:     definitionJSON(t),
		Seed:           map[string]any{"seed.value": "world"},
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	require.False(t, runResult.IsError)

	runPayload := runOutput.Data.(runStatusPayload)

	statusResult, statusOutput, err := tracker.handleWorkflowStatus(context.Background(), nil, WorkflowStatusInput{RunID: runPayload.RunID})
	require.NoError(t, err)
	require.NotNil(t, statusResult)
	assert.False(t, statusResult.IsError)

	statusPayload, ok := statusOutput.Data.(runStatusPayload)
	require.True(t, ok)
	assert.Equal(t, runPayload.RunID, statusPayload.RunID)
	assert.Equal(t, RunCompleted, statusPayload.State)
}

func TestHandleWorkflowStatus_UnknownRunIDErrors(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	result, _, err := tracker.handleWorkflowStatus(context.Background(), nil, WorkflowStatusInput{RunID: "nope"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleWorkflowStatus_RejectsEmptyRunID(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	result, _, err := tracker.handleWorkflowStatus(context.Background(), nil, WorkflowStatusInput{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleLicenseStatus_ReportsFreeTierDefaults(t *testing.T) {
	t.Parallel()

	tracker, _, _ := newEchoTracker(t)

	result, output, err := tracker.handleLicenseStatus(context.Background(), nil, LicenseStatusInput{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	payload, ok := output.Data.(licenseStatusPayload)
	require.True(t, ok)
	assert.Equal(t, string(license.StateFreeTier), payload.State)
	assert.Equal(t, 10, payload.MaxSlots)
	assert.Equal(t, 1000, payload.MaxWorkUnitsPerMinute)
	assert.Equal(t, 3, payload.MaxNodes)
}

func TestHandleWorkflowRun_TimesOutWithoutBlockingAtom(t *testing.T) {
	t.Parallel()

	registry := atom.NewRegistry()
	err := registry.Register("blocker", func(ctx context.Context, rc atom.RunContext, in atom.Input) error {
		<-ctx.Done()

		return ctx.Err()
	}, atom.Contract{Kind: atom.KindSensor, Reads: []string{"kick"}, Writes: []string{"blocker.done"}})
	require.NoError(t, err)

	licenseMgr := license.NewManager(license.Config{})
	meterInst := meter.New(meter.Config{}, 1000)
	g := gate.New(gate.Config{License: licenseMgr, Meter: meterInst})

	tracker := newRunTracker(ServerDeps{
		Registry: registry,
		Gate:     g,
		License:  licenseMgr,
		Meter:    meterInst,
	})

	def := workflow.Definition{
		ID:    "blocks",
		Nodes: []workflow.Node{{ID: "b1", AtomName: "blocker"}},
		Edges: []workflow.Edge{
			{SourceNode: "trigger", SignalName: "kick", TargetNode: "b1"},
		},
	}

	data, err := json.Marshal(def)
	require.NoError(t, err)

	result, output, err := tracker.handleWorkflowRun(context.Background(), nil, WorkflowRunInput{
		Definition:     data,
		Seed:           map[string]any{"kick": "go"},
		TimeoutSeconds: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	payload := output.Data.(runStatusPayload)
	assert.Equal(t, RunTimedOut, payload.State)
}
