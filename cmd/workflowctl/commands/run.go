package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/coordinator"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/signalbus"
	"github.com/flowrt/flowrt/pkg/workflow"
)

const defaultRunTimeout = 10 * time.Second

// NewRunCommand creates the run subcommand: it loads a workflow
// definition, wires a coordinator-owned sink/meter/license/gate stack,
// seeds initial signals, and drains the run until quiescence or timeout.
func NewRunCommand() *cobra.Command {
	var (
		seeds      []string
		timeout    time.Duration
		tokenPath  string
		vendorKey  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.json|workflow.yaml>",
		Short: "Execute a workflow definition against a fresh run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runWorkflow(args[0], seeds, timeout, tokenPath, vendorKey, outputPath)
		},
	}

	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "initial signal to emit before the run, as name=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultRunTimeout, "how long to wait for the run to quiesce")
	cmd.Flags().StringVar(&tokenPath, "token", "", "path to a license token JSON file; omitted means free tier")
	cmd.Flags().StringVar(&vendorKey, "vendor-key", "", "hex-encoded Ed25519 vendor public key")
	cmd.Flags().StringVar(&outputPath, "output", "", "write the resulting signals as JSON to this path")

	return cmd
}

func parseSeed(raw string) (name, value string, err error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid --seed %q: expected name=value", raw)
	}

	return name, value, nil
}

func runWorkflow(path string, seeds []string, timeout time.Duration, tokenPath, vendorKeyHex, outputPath string) error { //nolint:gocognit // CLI wiring is linear but touches every subsystem once
	def, err := loadDefinitionFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitInternalError)

		return nil
	}

	sink := signalbus.New(signalbus.Config{})

	registry := atom.NewRegistry()
	if _, regErr := registerBuiltinAtoms(registry, sink); regErr != nil {
		return fmt.Errorf("registering builtin atoms: %w", regErr)
	}

	if validateErr := def.Validate(contractLookup(registry), false); validateErr != nil {
		fmt.Fprintf(os.Stderr, "invalid workflow: %v\n", validateErr)
		os.Exit(ExitValidationFailure)

		return nil
	}

	var pub ed25519.PublicKey

	if vendorKeyHex != "" {
		raw, decodeErr := hex.DecodeString(vendorKeyHex)
		if decodeErr != nil {
			return fmt.Errorf("decoding --vendor-key: %w", decodeErr)
		}

		pub = ed25519.PublicKey(raw)
	}

	licenseManager := license.NewManager(license.Config{VendorPublicKey: pub, Now: time.Now})

	if tokenPath != "" {
		raw, readErr := os.ReadFile(tokenPath) //nolint:gosec // operator-supplied CLI path
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", tokenPath, readErr)
		}

		if loadErr := licenseManager.LoadToken(raw); loadErr != nil {
			fmt.Fprintf(os.Stderr, "license invalid: %v\n", loadErr)
			os.Exit(ExitLicenseInvalid)

			return nil
		}
	}

	if licenseManager.CurrentState() == license.StateInvalid {
		fmt.Fprintln(os.Stderr, "license invalid")
		os.Exit(ExitLicenseInvalid)

		return nil
	}

	workUnitMeter := meter.New(meter.Config{}, float64(licenseManager.MaxWorkUnitsPerMinute()))

	workflowGate := gate.New(gate.Config{
		License: licenseManager,
		Meter:   workUnitMeter,
		Sink:    sink,
	})

	lanes := workflow.NewLanes(workflow.DefaultLaneConcurrency())

	scheduler, err := workflow.NewScheduler(def, newCLIRunID(), workflow.SchedulerConfig{
		Sink:     sink,
		Registry: registry,
		Gate:     workflowGate,
		Lanes:    lanes,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitInternalError)

		return nil
	}

	coord := coordinator.New(coordinator.Config{Sink: sink, Meter: workUnitMeter, License: licenseManager})
	coord.AddDrainable(scheduler)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	coord.Start(ctx)

	_, stopRun := scheduler.Start(ctx)

	for _, raw := range seeds {
		name, value, parseErr := parseSeed(raw)
		if parseErr != nil {
			return parseErr
		}

		sink.Emit(signalbus.Signal{Source: "workflowctl", Name: name, Value: value})
	}

	waitForQuiescence(scheduler, timeout)

	stopRun()
	scheduler.Wait()
	scheduler.Stop()
	coord.Stop()

	signals := sink.GetAll()

	throttled := countSignals(signals, "atom.throttled")

	if outputPath != "" {
		if writeErr := writeSignalsJSON(outputPath, signals); writeErr != nil {
			return writeErr
		}
	}

	printSignalsTable(signals)

	if throttled > 0 {
		os.Exit(ExitThrottled)
	}

	return nil
}

// waitForQuiescence blocks until every in-flight atom invocation settles
// or the budget elapses, whichever comes first.
func waitForQuiescence(scheduler *workflow.Scheduler, budget time.Duration) {
	done := make(chan struct{})

	go func() {
		scheduler.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(budget):
	}
}

func countSignals(signals []signalbus.Signal, name string) int {
	n := 0

	for _, s := range signals {
		if s.Name == name {
			n++
		}
	}

	return n
}

func newCLIRunID() string {
	return fmt.Sprintf("cli-%d", time.Now().UnixNano())
}

type signalRecord struct {
	Source     string  `json:"source"`
	Name       string  `json:"name"`
	Key        string  `json:"key,omitempty"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	EmittedAt  string  `json:"emittedAt"`
}

func writeSignalsJSON(path string, signals []signalbus.Signal) error {
	records := make([]signalRecord, len(signals))

	for i, s := range signals {
		records[i] = signalRecord{
			Source:     s.Source,
			Name:       s.Name,
			Key:        s.Key,
			Value:      s.Value,
			Confidence: s.Confidence,
			EmittedAt:  s.EmittedAt.Format(time.RFC3339Nano),
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling signals: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}

	return nil
}

func printSignalsTable(signals []signalbus.Signal) {
	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{"Source", "Signal", "Value"})

	for _, s := range signals {
		w.AppendRow(table.Row{s.Source, s.Name, fmt.Sprintf("%v", s.Value)})
	}

	w.Render()
}
