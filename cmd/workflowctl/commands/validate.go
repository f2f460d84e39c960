package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/metrics"
	"github.com/flowrt/flowrt/pkg/signalbus"
	"github.com/flowrt/flowrt/pkg/workflow"
)

// NewValidateCommand creates the validate subcommand: it loads a workflow
// definition and checks it structurally (dangling edges, unknown signals,
// disallowed self-edges) without executing it.
func NewValidateCommand() *cobra.Command {
	var allowSelfEdges bool

	cmd := &cobra.Command{
		Use:   "validate <workflow.json|workflow.yaml>",
		Short: "Validate a workflow definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0], allowSelfEdges)
		},
	}

	cmd.Flags().BoolVar(&allowSelfEdges, "allow-self-edges", false, "permit an edge whose source and target node are the same")

	return cmd
}

func loadDefinitionFile(path string) (workflow.Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied CLI path
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return workflow.LoadDefinitionYAML(data)
}

func contractLookup(registry *atom.Registry) workflow.ContractLookup {
	return func(atomName string) (reads, writes []string, ok bool) {
		entry, err := registry.Get(atomName)
		if err != nil {
			return nil, nil, false
		}

		return entry.Contract.Reads, entry.Contract.Writes, true
	}
}

func runValidate(path string, allowSelfEdges bool) error {
	def, err := loadDefinitionFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitValidationFailure)

		return nil
	}

	registry := atom.NewRegistry()

	metricsRegistry, regErr := registerBuiltinAtoms(registry, signalbus.New(signalbus.Config{}))
	if regErr != nil {
		return regErr
	}

	if validateErr := def.Validate(contractLookup(registry), allowSelfEdges); validateErr != nil {
		fmt.Fprintf(os.Stderr, "invalid workflow: %v\n", validateErr)
		os.Exit(ExitValidationFailure)

		return nil
	}

	fmt.Printf("workflow %q is valid: %d nodes, %d edges\n", def.ID, len(def.Nodes), len(def.Edges))
	fmt.Printf("available reducer metrics: %s\n", strings.Join(sortedMetricNames(metricsRegistry), ", "))

	return nil
}

func sortedMetricNames(reg *metrics.Registry) []string {
	names := reg.Names()
	sort.Strings(names)

	return names
}
