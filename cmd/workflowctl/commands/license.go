package commands

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/flowrt/flowrt/pkg/license"
)

// NewLicenseCommand creates the license command group.
func NewLicenseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Inspect license token state",
	}

	cmd.AddCommand(newLicenseStatusCommand())

	return cmd
}

func newLicenseStatusCommand() *cobra.Command {
	var (
		tokenPath string
		vendorKey string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load a license token and report its derived state",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLicenseStatus(tokenPath, vendorKey)
		},
	}

	cmd.Flags().StringVar(&tokenPath, "token", "", "path to a license token JSON file; omitted means free tier")
	cmd.Flags().StringVar(&vendorKey, "vendor-key", "", "hex-encoded Ed25519 vendor public key")

	return cmd
}

func runLicenseStatus(tokenPath, vendorKeyHex string) error {
	var pub ed25519.PublicKey

	if vendorKeyHex != "" {
		raw, err := hex.DecodeString(vendorKeyHex)
		if err != nil {
			return fmt.Errorf("decoding --vendor-key: %w", err)
		}

		pub = ed25519.PublicKey(raw)
	}

	manager := license.NewManager(license.Config{VendorPublicKey: pub, Now: time.Now})

	if tokenPath != "" {
		raw, readErr := os.ReadFile(tokenPath) //nolint:gosec // operator-supplied CLI path
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", tokenPath, readErr)
		}

		if loadErr := manager.LoadToken(raw); loadErr != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", colorState(license.StateInvalid), loadErr)
			os.Exit(ExitLicenseInvalid)

			return nil
		}
	}

	state := manager.CurrentState()

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{"Field", "Value"})
	w.AppendRow(table.Row{"State", colorState(state)})
	w.AppendRow(table.Row{"Tier", manager.CurrentTier()})
	w.AppendRow(table.Row{"Max slots", manager.MaxSlots()})
	w.AppendRow(table.Row{"Max work units/min", humanize.Comma(int64(manager.MaxWorkUnitsPerMinute()))})
	w.AppendRow(table.Row{"Max nodes", manager.MaxNodes()})
	w.Render()

	if state == license.StateInvalid || state == license.StateRevoked {
		os.Exit(ExitLicenseInvalid)
	}

	return nil
}

func colorState(s license.State) string {
	switch s {
	case license.StateValid, license.StateFreeTier:
		return color.GreenString(string(s))
	case license.StateExpiring, license.StateInGrace:
		return color.YellowString(string(s))
	case license.StateExpired, license.StateInvalid, license.StateRevoked, license.StateUnlicensed:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
