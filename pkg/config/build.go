package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
)

// LicenseConfig translates the loaded Config into a license.Config,
// decoding the hex-encoded vendor public key and applying any pinned
// overrides.
func (c *Config) LicenseConfig(now func() time.Time) (license.Config, error) {
	var pub ed25519.PublicKey

	if c.VendorPublicKey != "" {
		raw, err := hex.DecodeString(c.VendorPublicKey)
		if err != nil {
			return license.Config{}, fmt.Errorf("config: decoding vendor public key: %w", err)
		}

		pub = ed25519.PublicKey(raw)
	}

	overrides, err := c.LicenseOverrides.toLicenseOverrides()
	if err != nil {
		return license.Config{}, err
	}

	return license.Config{
		VendorPublicKey: pub,
		Overrides:       overrides,
		GracePeriod:     c.LicenseGracePeriod,
		FreeTier: license.FreeTierLimits{
			MaxSlots:              c.FreeTierMaxSlots,
			MaxWorkUnitsPerMinute: c.FreeTierMaxWorkUnitsPerMinute,
			MaxNodes:              c.FreeTierMaxNodes,
		},
		Now:          now,
		OnTransition: c.OnLicenseStateChanged,
	}, nil
}

func (o LicenseOverrides) toLicenseOverrides() (license.Overrides, error) {
	out := license.Overrides{Features: o.Features}

	if o.MaxSlots != 0 {
		v := o.MaxSlots
		out.MaxSlots = &v
	}

	if o.MaxWorkUnitsPerMinute != 0 {
		v := o.MaxWorkUnitsPerMinute
		out.MaxWorkUnitsPerMinute = &v
	}

	if o.MaxNodes != 0 {
		v := o.MaxNodes
		out.MaxNodes = &v
	}

	if o.Tier != "" {
		t := license.Tier(o.Tier)
		out.Tier = &t
	}

	if o.Expiry != "" {
		parsed, err := time.Parse(time.RFC3339, o.Expiry)
		if err != nil {
			return license.Overrides{}, fmt.Errorf("config: parsing licenseOverrides.expiry: %w", err)
		}

		out.Expiry = &parsed
	}

	return out, nil
}

// MeterConfig translates the loaded Config's work-unit window, bucket
// count, thresholds, and threshold callback into a meter.Config. It does
// not compute the max-units budget; that is passed to meter.New
// separately.
func (c *Config) MeterConfig() meter.Config {
	return meter.Config{
		Window:      c.WorkUnitWindow,
		Buckets:     c.WorkUnitBuckets,
		Thresholds:  c.WorkUnitThresholds,
		OnThreshold: c.OnWorkUnitThreshold,
	}
}
