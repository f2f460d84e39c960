package license

import "time"

// Overrides holds optional in-code overrides applied to a verified token
// before state derivation. Overrides never widen what the vendor signed;
// Expiry in particular can only shorten the effective expiry, never
// extend it past the signed value (see Apply).
type Overrides struct {
	MaxSlots              *int
	MaxWorkUnitsPerMinute *int
	MaxNodes              *int
	Tier                  *Tier
	Features              []string
	Expiry                *time.Time
}

// Apply returns a copy of tok with the overrides applied. Expiry is
// clamped: an override expiry can only move the effective expiry earlier
// than the vendor-signed value, never later. This keeps the override
// mechanism (meant for operator-side tightening, e.g. temporary
// suspension) from being usable to forge a longer-lived license than the
// vendor actually signed.
func (o Overrides) Apply(tok Token) Token {
	out := tok

	if o.MaxSlots != nil {
		out.Limits.MaxSlots = *o.MaxSlots
	}

	if o.MaxWorkUnitsPerMinute != nil {
		out.Limits.MaxWorkUnitsPerMinute = *o.MaxWorkUnitsPerMinute
	}

	if o.MaxNodes != nil {
		out.Limits.MaxNodes = *o.MaxNodes
	}

	if o.Tier != nil {
		out.Tier = *o.Tier
	}

	if o.Features != nil {
		out.Features = o.Features
	}

	if o.Expiry != nil && o.Expiry.Before(out.Expiry) {
		out.Expiry = *o.Expiry
	}

	return out
}
