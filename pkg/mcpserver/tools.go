package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameWorkflowRun    = "flowrt_workflow_run"
	ToolNameWorkflowStatus = "flowrt_workflow_status"
	ToolNameLicenseStatus  = "flowrt_license_status"
)

// DefaultRunTimeoutSeconds bounds a flowrt_workflow_run tool call when the caller
// does not supply timeoutSeconds.
const DefaultRunTimeoutSeconds = 60

// Sentinel errors for tool input validation.
var (
	// ErrEmptyDefinition indicates the definition parameter is empty.
	ErrEmptyDefinition = errors.New("definition parameter is required and must not be empty")
	// ErrEmptyRunID indicates the runId parameter is empty.
	ErrEmptyRunID = errors.New("runId parameter is required and must not be empty")
	// ErrUnknownRun indicates the requested run id is not tracked.
	ErrUnknownRun = errors.New("unknown run id")
)

// WorkflowRunInput is the input schema for the flowrt_workflow_run tool.
type WorkflowRunInput struct {
	Definition      json.RawMessage `json:"definition"                 jsonschema:"workflow definition, JSON-encoded nodes and edges"`
	Seed            map[string]any  `json:"seed,omitempty"             jsonschema:"initial signal values keyed by signal name"`
	TimeoutSeconds  int             `json:"timeoutSeconds,omitempty"   jsonschema:"maximum seconds to wait for the run to settle (default 60)"`
}

// WorkflowStatusInput is the input schema for the flowrt_workflow_status tool.
type WorkflowStatusInput struct {
	RunID string `json:"runId" jsonschema:"identifier returned by a prior flowrt_workflow_run call"`
}

// LicenseStatusInput is the input schema for the flowrt_license_status tool.
// It takes no parameters; present for schema-generation symmetry with the
// other tools.
type LicenseStatusInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateRunInput checks common flowrt_workflow_run input constraints.
func validateRunInput(input WorkflowRunInput) error {
	if len(input.Definition) == 0 {
		return ErrEmptyDefinition
	}

	return nil
}

// validateStatusInput checks common flowrt_workflow_status input constraints.
func validateStatusInput(input WorkflowStatusInput) error {
	if input.RunID == "" {
		return ErrEmptyRunID
	}

	return nil
}
