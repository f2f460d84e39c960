package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	nethttppprof "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/coordinator"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/mcpserver"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/observability"
	"github.com/flowrt/flowrt/pkg/signalbus"
	"github.com/flowrt/flowrt/pkg/workflow"
)

// debugReadHeaderTimeout bounds the debug HTTP server against slow-header
// attacks (gosec G114).
const debugReadHeaderTimeout = 10 * time.Second

// NewServeCommand creates the serve subcommand: a long-running process
// that exposes workflow execution over an MCP stdio transport while a
// background HTTP server serves Prometheus /metrics and pprof debug
// endpoints, mirroring the scaled-down shape of a always-on coordinator.
func NewServeCommand() *cobra.Command {
	var (
		tokenPath string
		vendorKey string
		debugAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server with Prometheus and pprof endpoints",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(tokenPath, vendorKey, debugAddr)
		},
	}

	cmd.Flags().StringVar(&tokenPath, "token", "", "path to a license token JSON file; omitted means free tier")
	cmd.Flags().StringVar(&vendorKey, "vendor-key", "", "hex-encoded Ed25519 vendor public key")
	cmd.Flags().StringVar(&debugAddr, "debug-addr", "localhost:6060", "address serving /metrics and /debug/pprof/")

	return cmd
}

func runServe(tokenPath, vendorKeyHex, debugAddr string) error {
	providers, err := observability.Init(observability.Config{
		ServiceName: "workflowctl",
		Mode:        observability.ModeServe,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Error("observability shutdown failed", "error", shutdownErr)
		}
	}()

	go serveDebugEndpoints(debugAddr, providers.MetricsHandler, providers.Logger)

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
			return fmt.Errorf("license invalid: %w", loadErr)
		}
	}

	workUnitMeter := meter.New(meter.Config{}, float64(licenseManager.MaxWorkUnitsPerMinute()))
	sink := signalbus.New(signalbus.Config{})

	registry := atom.NewRegistry()
	if _, regErr := registerBuiltinAtoms(registry, sink); regErr != nil {
		return fmt.Errorf("registering builtin atoms: %w", regErr)
	}

	workflowGate := gate.New(gate.Config{License: licenseManager, Meter: workUnitMeter, Sink: sink})

	coord := coordinator.New(coordinator.Config{Sink: sink, Meter: workUnitMeter, License: licenseManager})
	coord.Start(ctx)

	defer coord.Stop()

	redMetrics, metricsErr := observability.NewREDMetrics(providers.Meter)
	if metricsErr != nil {
		return fmt.Errorf("build RED metrics: %w", metricsErr)
	}

	server := mcpserver.NewServer(mcpserver.ServerDeps{
		Logger:          providers.Logger,
		Metrics:         redMetrics,
		Tracer:          providers.Tracer,
		Registry:        registry,
		Gate:            workflowGate,
		License:         licenseManager,
		Meter:           workUnitMeter,
		LaneConcurrency: workflow.DefaultLaneConcurrency(),
	})

	providers.Logger.InfoContext(ctx, "serving", "tools", server.ListToolNames(), "debugAddr", debugAddr)

	if runErr := server.Run(ctx); runErr != nil {
		return fmt.Errorf("mcp server: %w", runErr)
	}

	return nil
}

// serveDebugEndpoints registers /metrics (when non-nil) and the standard
// pprof handlers on an explicit mux, avoiding the exposure a bare
// http.DefaultServeMux would carry (gosec G108).
func serveDebugEndpoints(addr string, metrics http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	mux.HandleFunc("/debug/pprof/", nethttppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", nethttppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", nethttppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", nethttppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", nethttppprof.Trace)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: debugReadHeaderTimeout,
	}

	if err := server.ListenAndServe(); err != nil {
		logger.Error("debug endpoint server stopped", "error", err)
	}
}
