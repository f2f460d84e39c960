package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/signalbus"
	"github.com/flowrt/flowrt/pkg/workflow"
)

// RunState identifies the lifecycle phase of a tracked run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunTimedOut  RunState = "timed_out"
	RunFailed    RunState = "failed"
)

// runRecord holds a workflow run's tracked state, readable from both the
// run tool (which creates it) and the status tool (which polls it).
type runRecord struct {
	mu      sync.Mutex
	state   RunState
	err     string
	signals []signalbus.Signal
}

func (r *runRecord) snapshot() (RunState, string, []signalbus.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]signalbus.Signal, len(r.signals))
	copy(out, r.signals)

	return r.state, r.err, out
}

func (r *runRecord) setState(state RunState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = state
	if err != nil {
		r.err = err.Error()
	}
}

// runTracker owns the registry of in-flight and completed runs started
// through flowrt_workflow_run, and the shared collaborators (atom
// registry, gate, license manager, meter) every run admits work against.
type runTracker struct {
	registry *atom.Registry
	gate     *gate.Gate
	license  *license.Manager
	meter    *meter.Meter
	lanes    map[workflow.Lane]int
	schedCfg workflow.SchedulerConfig

	mu   sync.Mutex
	runs map[string]*runRecord
}

func newRunTracker(deps ServerDeps) *runTracker {
	return &runTracker{
		registry: deps.Registry,
		gate:     deps.Gate,
		license:  deps.License,
		meter:    deps.Meter,
		lanes:    deps.LaneConcurrency,
		schedCfg: deps.SchedulerConfig,
		runs:     make(map[string]*runRecord),
	}
}

// newRunID generates a random hex run identifier distinct from any
// caller-chosen correlation token.
func newRunID() (string, error) {
	var b [8]byte

	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}

	return "run-" + hex.EncodeToString(b[:]), nil
}

// handleWorkflowRun processes flowrt_workflow_run tool calls: it parses
// and starts the submitted definition against a fresh, run-scoped sink,
// seeds any initial signal values, waits up to timeoutSeconds for the run
// to quiesce, then returns every signal observed.
func (t *runTracker) handleWorkflowRun(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input WorkflowRunInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRunInput(input); err != nil {
		return errorResult(err)
	}

	var def workflow.Definition
	if err := json.Unmarshal(input.Definition, &def); err != nil {
		return errorResult(fmt.Errorf("parse definition: %w", err))
	}

	runID, err := newRunID()
	if err != nil {
		return errorResult(err)
	}

	sink := signalbus.New(signalbus.Config{})

	sched, err := workflow.NewScheduler(def, runID, workflow.SchedulerConfig{
		Sink:               sink,
		Registry:           t.registry,
		Gate:               t.gate,
		Lanes:              workflow.NewLanes(t.lanes),
		AtomTimeout:        t.schedCfg.AtomTimeout,
		CoordinatorTimeout: t.schedCfg.CoordinatorTimeout,
		SizeKb:             t.schedCfg.SizeKb,
	})
	if err != nil {
		return errorResult(fmt.Errorf("prepare workflow: %w", err))
	}

	rec := &runRecord{state: RunRunning}

	t.mu.Lock()
	t.runs[runID] = rec
	t.mu.Unlock()

	timeout := time.Duration(input.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultRunTimeoutSeconds * time.Second
	}

	_, cancelRun := sched.Start(ctx)

	for name, value := range input.Seed {
		sink.Emit(signalbus.Signal{RunID: runID, Source: "mcpserver", Name: name, Value: value})
	}

	waitDone := make(chan struct{})

	go func() {
		sched.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		rec.setState(RunCompleted, nil)
	case <-time.After(timeout):
		rec.setState(RunTimedOut, nil)
	case <-ctx.Done():
		rec.setState(RunFailed, ctx.Err())
	}

	cancelRun()
	sched.Stop()

	rec.mu.Lock()
	rec.signals = sink.GetAll()
	rec.mu.Unlock()

	state, errStr, signals := rec.snapshot()

	return jsonResult(runStatusPayload{
		RunID:   runID,
		State:   state,
		Error:   errStr,
		Signals: signals,
	})
}

// handleWorkflowStatus processes flowrt_workflow_status tool calls.
func (t *runTracker) handleWorkflowStatus(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input WorkflowStatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateStatusInput(input); err != nil {
		return errorResult(err)
	}

	t.mu.Lock()
	rec, ok := t.runs[input.RunID]
	t.mu.Unlock()

	if !ok {
		return errorResult(fmt.Errorf("%w: %s", ErrUnknownRun, input.RunID))
	}

	state, errStr, signals := rec.snapshot()

	return jsonResult(runStatusPayload{
		RunID:   input.RunID,
		State:   state,
		Error:   errStr,
		Signals: signals,
	})
}

// handleLicenseStatus processes flowrt_license_status tool calls.
func (t *runTracker) handleLicenseStatus(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ LicenseStatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	payload := licenseStatusPayload{
		State:                 string(t.license.CurrentState()),
		Tier:                  string(t.license.CurrentTier()),
		MaxSlots:              t.license.MaxSlots(),
		MaxWorkUnitsPerMinute: t.license.MaxWorkUnitsPerMinute(),
		MaxNodes:              t.license.MaxNodes(),
	}

	if t.meter != nil {
		payload.CurrentWorkUnits = t.meter.CurrentWorkUnits()
		payload.MaxWorkUnits = t.meter.MaxUnits()
		payload.ThrottleFactor = t.meter.ThrottleFactor()
	}

	return jsonResult(payload)
}

// runStatusPayload is the JSON shape returned by both the run and status
// tools, so a client can poll a run with the same decoder it used to
// start it.
type runStatusPayload struct {
	RunID   string             `json:"runId"`
	State   RunState           `json:"state"`
	Error   string             `json:"error,omitempty"`
	Signals []signalbus.Signal `json:"signals"`
}

// licenseStatusPayload is the JSON shape returned by the license status
// tool.
type licenseStatusPayload struct {
	State                 string  `json:"state"`
	Tier                  string  `json:"tier"`
	MaxSlots              int     `json:"maxSlots"`
	MaxWorkUnitsPerMinute int     `json:"maxWorkUnitsPerMinute"`
	MaxNodes              int     `json:"maxNodes"`
	CurrentWorkUnits      float64 `json:"currentWorkUnits,omitempty"`
	MaxWorkUnits          float64 `json:"maxWorkUnits,omitempty"`
	ThrottleFactor        float64 `json:"throttleFactor,omitempty"`
}
