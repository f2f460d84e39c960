package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/pkg/coordinator"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

func TestCoordinatorStartEmitsReadyAndTier(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	lic := license.NewManager(license.Config{})
	m := meter.New(meter.Config{}, 1000)

	var seen []string

	sink.Subscribe(func(sig signalbus.Signal) {
		seen = append(seen, sig.Name)
	})

	c := coordinator.New(coordinator.Config{
		Sink:              sink,
		Meter:             m,
		License:           lic,
		HeartbeatInterval: time.Hour,
	})

	c.Start(context.Background())
	defer c.Stop()

	require.Contains(t, seen, coordinator.SignalSystemReady)
	require.Contains(t, seen, coordinator.SignalSystemLicenseTier)
}

func TestCoordinatorHeartbeatFiresOnCadence(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	lic := license.NewManager(license.Config{})
	m := meter.New(meter.Config{}, 1000)

	count := 0

	sink.Subscribe(func(sig signalbus.Signal) {
		if sig.Name == coordinator.SignalSystemHeartbeat {
			count++
		}
	})

	c := coordinator.New(coordinator.Config{
		Sink:              sink,
		Meter:             m,
		License:           lic,
		HeartbeatInterval: 10 * time.Millisecond,
	})

	c.Start(context.Background())
	defer c.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for count == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.Greater(t, count, 0)
}

func TestCoordinatorEmitsLicenseStateOnTransition(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	m := meter.New(meter.Config{}, 1000)

	c := coordinator.New(coordinator.Config{Sink: sink, Meter: m})

	lic := license.NewManager(license.Config{OnTransition: c.EmitLicenseTransition})

	var got signalbus.Signal

	sink.Subscribe(func(sig signalbus.Signal) {
		if sig.Name == coordinator.SignalLicenseState {
			got = sig
		}
	})

	lic.Revoke()

	assert.Equal(t, coordinator.SignalLicenseState, got.Name)
}

func TestCoordinatorEmitsWorkUnitThreshold(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	lic := license.NewManager(license.Config{})

	c := coordinator.New(coordinator.Config{Sink: sink, License: lic})

	m := meter.New(meter.Config{
		Thresholds:  []float64{50},
		OnThreshold: c.EmitWorkUnitThreshold,
	}, 10)

	var got signalbus.Signal

	sink.Subscribe(func(sig signalbus.Signal) {
		if sig.Name == coordinator.SignalWorkUnitThreshold {
			got = sig
		}
	})

	m.Record(6, "test")

	assert.Equal(t, coordinator.SignalWorkUnitThreshold, got.Name)
}

func TestCoordinatorStopDrainsRegisteredDrainable(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	lic := license.NewManager(license.Config{})
	m := meter.New(meter.Config{}, 1000)

	c := coordinator.New(coordinator.Config{Sink: sink, Meter: m, License: lic, ShutdownGrace: time.Second})

	drained := make(chan struct{})
	c.AddDrainable(fakeDrainable{done: drained})

	c.Start(context.Background())

	go close(drained)

	c.Stop()
}

type fakeDrainable struct {
	done chan struct{}
}

func (f fakeDrainable) Wait() { <-f.done }
