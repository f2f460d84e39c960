// Package gate implements the licensed component gate: the decorator
// applied to every atom execution that enforces tier, feature, and budget
// preconditions in order before the atom is allowed to run.
package gate

import (
	"context"
	"errors"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// Verdict is the outcome of a gate check.
type Verdict string

const (
	Admitted        Verdict = "Admitted"
	DegradedSkip    Verdict = "DegradedSkip"
	Throttled       Verdict = "Throttled"
	LicenseRequired Verdict = "LicenseRequired"
)

// ErrLicenseRequired is returned when a tier or feature precondition fails
// and degradation is not allowed.
var ErrLicenseRequired = errors.New("gate: license requirement not met")

// Result is the full outcome of a Check call.
type Result struct {
	Verdict Verdict
	Cost    float64
	Err     error
}

// Licenser is the subset of *license.Manager the gate depends on.
type Licenser interface {
	MeetsTierRequirement(req license.Tier) bool
	HasFeature(id string) bool
}

// Metered is the subset of *meter.Meter the gate depends on.
type Metered interface {
	CheckAndRecord(amount float64, typ string) bool
}

// Config configures a Gate.
type Config struct {
	License                  Licenser
	Meter                    Metered
	Sink                     *signalbus.Sink
	AllowFreeTierDegradation bool
}

// Gate enforces the three-step admission sequence (tier, features,
// budget) described for every atom invocation.
type Gate struct {
	cfg Config
}

// New creates a Gate.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Check runs the tier -> features -> budget sequence for contract against
// a payload of the given size, and records consumption on admission.
func (g *Gate) Check(ctx context.Context, contract atom.Contract, sizeKb float64) Result {
	_ = ctx

	if !g.cfg.License.MeetsTierRequirement(contract.MinimumTier) {
		return g.degradeOrDeny(contract, "tier")
	}

	for _, feature := range contract.RequiredFeatures {
		if !g.cfg.License.HasFeature(feature) {
			return g.degradeOrDeny(contract, "feature")
		}
	}

	cost := contract.Cost(sizeKb)

	if g.cfg.Meter == nil {
		return Result{Verdict: Admitted, Cost: cost}
	}

	if !g.cfg.Meter.CheckAndRecord(cost, string(contract.Kind)) {
		return Result{Verdict: Throttled, Cost: cost}
	}

	return Result{Verdict: Admitted, Cost: cost}
}

// degradeOrDeny implements the shared failure policy for the tier and
// feature checks: degrade to a skip when allowed, else deny outright.
func (g *Gate) degradeOrDeny(contract atom.Contract, reason string) Result {
	if g.cfg.AllowFreeTierDegradation {
		if g.cfg.Sink != nil {
			g.cfg.Sink.Emit(signalbus.Signal{
				Source: contract.Name,
				Name:   "license.required",
				Value:  reason,
			})
		}

		return Result{Verdict: DegradedSkip}
	}

	return Result{Verdict: LicenseRequired, Err: ErrLicenseRequired}
}

// Wrap decorates an atom.Executor with the gate check, matching the
// invocation's payload size by applying sizeKb to every call. Atoms that
// fail admission never run; the returned error reflects the verdict for
// non-Admitted outcomes that are not a silent skip.
func Wrap(g *Gate, contract atom.Contract, sizeKb float64, next atom.Executor) atom.Executor {
	return func(ctx context.Context, rc atom.RunContext, in atom.Input) error {
		result := g.Check(ctx, contract, sizeKb)

		switch result.Verdict {
		case Admitted:
			return next(ctx, rc, in)
		case DegradedSkip:
			return nil
		case Throttled:
			return ErrThrottled
		default:
			return result.Err
		}
	}
}

// ErrThrottled is returned by a gated executor when the work-unit budget
// denies admission.
var ErrThrottled = errors.New("gate: throttled")
