package license_test

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/pkg/license"
)

// signPayload reproduces the package's canonical signing payload for a
// token: encoding/json already sorts map[string]any keys and emits
// whitespace-free scalars, so round-tripping through `any` yields the
// same canonical bytes Token.Verify recomputes internally.
func signPayload(t *testing.T, tok license.Token) []byte {
	t.Helper()

	fields := struct {
		LicenseID string         `json:"licenseId"`
		IssuedTo  string         `json:"issuedTo"`
		IssuedAt  time.Time      `json:"issuedAt"`
		Expiry    time.Time      `json:"expiry"`
		Tier      license.Tier   `json:"tier"`
		Features  []string       `json:"features"`
		Limits    license.Limits `json:"limits"`
	}{tok.LicenseID, tok.IssuedTo, tok.IssuedAt, tok.Expiry, tok.Tier, tok.Features, tok.Limits}

	raw, err := json.Marshal(fields)
	require.NoError(t, err)

	var v any
	require.NoError(t, json.Unmarshal(raw, &v))

	canon, err := json.Marshal(v)
	require.NoError(t, err)

	return canon
}

func signedToken(t *testing.T, priv ed25519.PrivateKey, tok license.Token) []byte {
	t.Helper()

	tok.Signature = ed25519.Sign(priv, signPayload(t, tok))

	out, err := json.Marshal(tok)
	require.NoError(t, err)

	return out
}

func TestTokenVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	tok := license.Token{
		LicenseID: "lic-1",
		IssuedTo:  "acme",
		IssuedAt:  now.Add(-time.Hour),
		Expiry:    now.Add(30 * 24 * time.Hour),
		Tier:      license.TierProfessional,
		Features:  []string{"documents.*"},
		Limits:    license.Limits{MaxSlots: 5, MaxWorkUnitsPerMinute: 500, MaxNodes: 20},
	}

	raw := signedToken(t, priv, tok)

	parsed, err := license.ParseToken(raw)
	require.NoError(t, err)

	assert.NoError(t, parsed.Verify(pub, now, 0))
}

func TestTokenVerifyRejectsBadSignature(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tok := license.Token{LicenseID: "x", Signature: []byte("garbage")}

	assert.ErrorIs(t, tok.Verify(pub, time.Now(), 0), license.ErrSignatureInvalid)
}

func TestTokenVerifyRejectsFutureIssuedAt(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tok := license.Token{IssuedAt: time.Now().Add(time.Hour)}

	assert.ErrorIs(t, tok.Verify(pub, time.Now(), time.Minute), license.ErrClockSkew)
}

func TestHasFeatureWildcard(t *testing.T) {
	t.Parallel()

	features := []string{"documents.*", "exact.match"}

	assert.True(t, license.HasFeature(features, "documents.export"))
	assert.True(t, license.HasFeature(features, "exact.match"))
	assert.False(t, license.HasFeature(features, "other.thing"))
}

func TestTierLattice(t *testing.T) {
	t.Parallel()

	assert.True(t, license.TierProfessional.Meets(license.TierStarter))
	assert.False(t, license.TierStarter.Meets(license.TierEnterprise))
	assert.True(t, license.TierEnterprise.Meets(license.TierEnterprise))
}
