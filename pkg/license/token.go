// Package license implements token verification, the license state
// machine, and the tier lattice consulted by the gate and the scheduler.
package license

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Tier is an ordered license class. Comparisons use the lattice order
// free < starter < professional < enterprise.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:         0,
	TierStarter:      1,
	TierProfessional: 2,
	TierEnterprise:   3,
}

// Meets reports whether t satisfies a minimum tier requirement req,
// according to the lattice order. An unknown tier never meets anything;
// an empty req is no requirement and is met by every known tier.
func (t Tier) Meets(req Tier) bool {
	have, ok := tierRank[t]
	if !ok {
		return false
	}

	if req == "" {
		return true
	}

	want, ok := tierRank[req]
	if !ok {
		return false
	}

	return have >= want
}

// Limits bounds concurrency and throughput for a token or tier.
type Limits struct {
	MaxSlots              int `json:"maxSlots"`
	MaxWorkUnitsPerMinute int `json:"maxWorkUnitsPerMinute"`
	MaxNodes              int `json:"maxNodes"`
}

// Token is the vendor-signed license payload. Signature is computed over
// the canonicalized JSON form (sorted keys, no whitespace) of every field
// except Signature itself.
type Token struct {
	LicenseID string    `json:"licenseId"`
	IssuedTo  string    `json:"issuedTo"`
	IssuedAt  time.Time `json:"issuedAt"`
	Expiry    time.Time `json:"expiry"`
	Tier      Tier      `json:"tier"`
	Features  []string  `json:"features"`
	Limits    Limits    `json:"limits"`
	Signature []byte    `json:"signature"`
}

var (
	// ErrSignatureInvalid is returned when Ed25519 verification fails.
	ErrSignatureInvalid = errors.New("license: signature verification failed")
	// ErrClockSkew is returned when issuedAt is too far in the future.
	ErrClockSkew = errors.New("license: issuedAt is beyond the allowed clock skew")
	// ErrMalformedToken is returned when the token JSON cannot be parsed.
	ErrMalformedToken = errors.New("license: malformed token")
)

// DefaultClockSkew is the tolerance applied to issuedAt <= now.
const DefaultClockSkew = 5 * time.Minute

// ParseToken unmarshals JSON into a Token. It does not verify the signature.
func ParseToken(data []byte) (Token, error) {
	var tok Token

	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	return tok, nil
}

// canonicalSigningPayload produces the deterministic byte sequence the
// vendor signature covers: sorted-key, whitespace-free JSON of every
// token field except Signature.
func (t Token) canonicalSigningPayload() ([]byte, error) {
	unsigned := struct {
		LicenseID string    `json:"licenseId"`
		IssuedTo  string    `json:"issuedTo"`
		IssuedAt  time.Time `json:"issuedAt"`
		Expiry    time.Time `json:"expiry"`
		Tier      Tier      `json:"tier"`
		Features  []string  `json:"features"`
		Limits    Limits    `json:"limits"`
	}{
		LicenseID: t.LicenseID,
		IssuedTo:  t.IssuedTo,
		IssuedAt:  t.IssuedAt,
		Expiry:    t.Expiry,
		Tier:      t.Tier,
		Features:  t.Features,
		Limits:    t.Limits,
	}

	raw, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("license: canonicalize payload: %w", err)
	}

	return canonicalizeJSON(raw)
}

// canonicalizeJSON re-encodes raw JSON with object keys sorted and no
// insignificant whitespace, recursively.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("license: canonicalize: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		buf.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("license: canonicalize key: %w", err)
			}

			buf.Write(kb)
			buf.WriteByte(':')

			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}

		buf.WriteByte('}')

		return nil
	case []any:
		buf.WriteByte('[')

		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("license: canonicalize scalar: %w", err)
		}

		buf.Write(b)

		return nil
	}
}

// Verify checks the token's Ed25519 signature against vendorPublicKey and
// the clock-skew tolerance on IssuedAt. now is injected for testability.
func (t Token) Verify(vendorPublicKey ed25519.PublicKey, now time.Time, skew time.Duration) error {
	if skew <= 0 {
		skew = DefaultClockSkew
	}

	if t.IssuedAt.After(now.Add(skew)) {
		return ErrClockSkew
	}

	payload, err := t.canonicalSigningPayload()
	if err != nil {
		return err
	}

	if !ed25519.Verify(vendorPublicKey, payload, t.Signature) {
		return ErrSignatureInvalid
	}

	return nil
}

// HasFeature reports whether features contains id, honoring trailing
// wildcard entries such as "documents.*".
func HasFeature(features []string, id string) bool {
	for _, f := range features {
		if f == id {
			return true
		}

		if strings.HasSuffix(f, "*") {
			prefix := strings.TrimSuffix(f, "*")
			if strings.HasPrefix(id, prefix) {
				return true
			}
		}
	}

	return false
}
