// Package coordinator implements the system coordinator: the long-lived
// process owner that wires the signal sink, work-unit meter, and license
// manager together, emits lifecycle and state-transition signals, and
// drains in-flight work on shutdown.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// DefaultHeartbeatInterval is the cadence of system.heartbeat emissions.
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultShutdownGrace bounds how long Stop waits for in-flight work to
// drain before returning.
const DefaultShutdownGrace = 5 * time.Second

// Stable system signal names (spec §6).
const (
	SignalSystemReady       = "system.ready"
	SignalSystemHeartbeat   = "system.heartbeat"
	SignalSystemLicenseTier = "system.license.tier"
	SignalLicenseState      = "license.state"
	SignalWorkUnitThreshold = "workunit.threshold"
)

// Config configures a Coordinator.
type Config struct {
	Sink    *signalbus.Sink
	Meter   *meter.Meter
	License *license.Manager

	HeartbeatInterval time.Duration
	ShutdownGrace     time.Duration

	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

// Drainable is anything the coordinator waits on during shutdown, e.g. a
// workflow.Scheduler.
type Drainable interface {
	Wait()
}

// Coordinator is the process lifecycle owner. It exclusively owns the
// sink, meter, and license manager for the process's lifetime; schedulers
// hold only a borrowed reference.
type Coordinator struct {
	cfg Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	drain   []Drainable
}

// New prepares a Coordinator. Call Start to begin the lifecycle.
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg.withDefaults()}
}

// AddDrainable registers d to be waited on during Stop, in addition to the
// coordinator's own heartbeat loop.
func (c *Coordinator) AddDrainable(d Drainable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain = append(c.drain, d)
}

// Start emits system.ready and system.license.tier and begins the
// heartbeat loop. It does not wire any callbacks: license.state and
// workunit.threshold signals are emitted only when the caller wires
// EmitLicenseTransition and EmitWorkUnitThreshold into the license and
// meter configurations.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	c.running = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.cfg.Sink.Emit(signalbus.Signal{Source: "coordinator", Name: SignalSystemReady, EmittedAt: c.cfg.Now()})
	c.cfg.Sink.Emit(signalbus.Signal{
		Source: "coordinator",
		Name:   SignalSystemLicenseTier,
		Value:  string(c.cfg.License.CurrentTier()),
	})

	c.wg.Add(1)

	go c.heartbeatLoop(runCtx)
}

func (c *Coordinator) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cfg.Sink.Emit(signalbus.Signal{Source: "coordinator", Name: SignalSystemHeartbeat, EmittedAt: c.cfg.Now()})
		}
	}
}

// EmitLicenseTransition emits a license.state signal. Intended to be wired
// as a license.Config.OnTransition callback.
func (c *Coordinator) EmitLicenseTransition(t license.Transition) {
	c.cfg.Sink.Emit(signalbus.Signal{
		Source: "coordinator",
		Name:   SignalLicenseState,
		Value:  map[string]any{"state": string(t.To), "tier": string(t.Tier)},
	})
}

// EmitWorkUnitThreshold emits a workunit.threshold signal. Intended to be
// wired as a meter.Config.OnThreshold callback.
func (c *Coordinator) EmitWorkUnitThreshold(e meter.ThresholdEvent) {
	c.cfg.Sink.Emit(signalbus.Signal{
		Source: "coordinator",
		Name:   SignalWorkUnitThreshold,
		Value:  map[string]any{"percent": e.Percent, "utilization": e.UtilizationPct},
	})
}

// Stop cancels the coordinator's own loops, waits up to ShutdownGrace for
// every registered Drainable (e.g. the workflow scheduler) to finish
// in-flight work, then returns. It does not itself cancel a scheduler's
// run context; callers cancel the scheduler first so its in-flight atoms
// start observing cancellation before the grace countdown.
func (c *Coordinator) Stop() {
	c.mu.Lock()

	if !c.running {
		c.mu.Unlock()

		return
	}

	c.running = false
	cancel := c.cancel
	drain := append([]Drainable(nil), c.drain...)

	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})

	go func() {
		for _, d := range drain {
			d.Wait()
		}

		c.wg.Wait()

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownGrace):
	}
}
