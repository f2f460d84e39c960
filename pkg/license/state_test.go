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

func newManagerWithClock(t *testing.T, pub ed25519.PublicKey, now func() time.Time) (*license.Manager, *[]license.Transition) {
	t.Helper()

	transitions := &[]license.Transition{}
	mgr := license.NewManager(license.Config{
		VendorPublicKey: pub,
		Now:             now,
		OnTransition:    func(tr license.Transition) { *transitions = append(*transitions, tr) },
	})

	return mgr, transitions
}

func TestManagerStartsAtFreeTier(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	mgr, _ := newManagerWithClock(t, pub, time.Now)

	assert.Equal(t, license.StateFreeTier, mgr.CurrentState())
	assert.Equal(t, license.TierFree, mgr.CurrentTier())
	assert.Equal(t, 10, mgr.MaxSlots())
}

func TestManagerLoadValidTokenTransitionsToValid(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	mgr, transitions := newManagerWithClock(t, pub, func() time.Time { return now })

	tok := license.Token{
		LicenseID: "l1",
		IssuedAt:  now.Add(-time.Hour),
		Expiry:    now.Add(30 * 24 * time.Hour),
		Tier:      license.TierProfessional,
		Limits:    license.Limits{MaxSlots: 50, MaxWorkUnitsPerMinute: 5000, MaxNodes: 100},
	}

	raw := signedToken(t, priv, tok)

	require.NoError(t, mgr.LoadToken(raw))
	assert.Equal(t, license.StateValid, mgr.CurrentState())
	assert.Equal(t, license.TierProfessional, mgr.CurrentTier())
	assert.Equal(t, 50, mgr.MaxSlots())

	require.NotEmpty(t, *transitions)
	last := (*transitions)[len(*transitions)-1]
	assert.Equal(t, license.StateValid, last.To)
}

func TestManagerLoadTokenBadSignatureGoesInvalid(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	mgr, _ := newManagerWithClock(t, pub, time.Now)

	tok := license.Token{LicenseID: "bad", Signature: []byte("nope")}
	raw, err := json.Marshal(tok)
	require.NoError(t, err)

	err = mgr.LoadToken(raw)
	require.Error(t, err)
	assert.Equal(t, license.StateInvalid, mgr.CurrentState())
	assert.False(t, mgr.MeetsTierRequirement(license.TierStarter))
}

func TestManagerExpiryThenGraceThenUnlicensed(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cur := time.Now()
	clock := func() time.Time { return cur }

	mgr := license.NewManager(license.Config{
		VendorPublicKey:    pub,
		GracePeriod:        time.Minute,
		ExpiringSoonWindow: 30 * time.Minute,
		Now:                clock,
	})

	tok := license.Token{
		IssuedAt: cur.Add(-time.Hour),
		Expiry:   cur.Add(time.Hour),
		Tier:     license.TierStarter,
	}

	require.NoError(t, mgr.LoadToken(signedToken(t, priv, tok)))
	require.Equal(t, license.StateValid, mgr.CurrentState())

	cur = cur.Add(time.Hour + 30*time.Second) // past expiry, within grace
	mgr.Reevaluate()
	assert.Equal(t, license.StateInGrace, mgr.CurrentState())

	cur = cur.Add(2 * time.Minute) // grace elapsed
	mgr.Reevaluate()
	assert.Equal(t, license.StateUnlicensed, mgr.CurrentState())
	assert.Equal(t, license.TierFree, mgr.CurrentTier())
}

func TestManagerRevokeIsSticky(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	mgr := license.NewManager(license.Config{VendorPublicKey: pub, Now: func() time.Time { return now }})

	tok := license.Token{IssuedAt: now.Add(-time.Hour), Expiry: now.Add(time.Hour), Tier: license.TierEnterprise}
	require.NoError(t, mgr.LoadToken(signedToken(t, priv, tok)))

	mgr.Revoke()
	assert.Equal(t, license.StateRevoked, mgr.CurrentState())

	mgr.Reevaluate()
	assert.Equal(t, license.StateRevoked, mgr.CurrentState(), "revoke must not be undone by reevaluation")
}
