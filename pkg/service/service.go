// Package service defines the narrow adapter interfaces the core consumes
// to reach external collaborators: blob/text storage, an LLM backend, the
// system clock, and license-token signature verification. Concrete
// implementations of content converters, ingestion sources, the workflow
// store, and LLM client wrappers live outside this module; atoms only
// depend on these interfaces.
package service

import (
	"context"
	"crypto/ed25519"
	"time"
)

// StoredObject describes a blob persisted through Storage.
type StoredObject struct {
	Path string
	Size int64
	Hash string
}

// LocalHandle identifies a filesystem-local copy of a stored object,
// suitable for passing to tools that require a real path.
type LocalHandle struct {
	Path string
}

// Storage is the adapter renderers and the log writer use to persist
// bytes or text out of process memory. Implementations must be safe for
// concurrent use.
type Storage interface {
	// StoreBytes persists raw content at path with the given MIME type.
	StoreBytes(ctx context.Context, path, mime string, content []byte) (StoredObject, error)
	// GetLocalPath resolves path to a local filesystem handle, fetching
	// it from a remote backend if necessary.
	GetLocalPath(ctx context.Context, path string) (LocalHandle, error)
	// StoreText persists text content with arbitrary metadata attached.
	StoreText(ctx context.Context, path, text, mime string, meta map[string]string) (StoredObject, error)
}

// SentimentResult is the structured output of LLM.AnalyzeSentiment.
type SentimentResult struct {
	Label      string
	Score      float64
	Confidence float64
}

// LLM is the adapter proposer atoms use to reach a language model
// backend. The core treats any error from either method as an
// atom.error with no built-in retry policy; retry, if any, is the
// caller's responsibility.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	AnalyzeSentiment(ctx context.Context, text string) (SentimentResult, error)
}

// Clock supplies the current time. Every timestamp in the core is
// derived from an injected Clock so tests can control time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that always reports the same instant, advanced
// explicitly by tests.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c *FixedClock) Now() time.Time { return c.At }

// Advance moves the fixed instant forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }

// Signer verifies (and, for test fixtures, produces) Ed25519 signatures
// over license tokens.
type Signer interface {
	Verify(publicKey ed25519.PublicKey, message, signature []byte) bool
	// Sign is for test fixtures only; production code never signs
	// tokens, it only verifies them.
	Sign(privateKey ed25519.PrivateKey, message []byte) []byte
}

// Ed25519Signer is the production Signer.
type Ed25519Signer struct{}

// Verify reports whether signature is a valid Ed25519 signature of
// message under publicKey.
func (Ed25519Signer) Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(publicKey, message, signature)
}

// Sign produces an Ed25519 signature of message under privateKey.
func (Ed25519Signer) Sign(privateKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}
