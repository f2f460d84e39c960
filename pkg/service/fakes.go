package service

import (
	"context"
	"sync"
)

// FakeLLM is an in-memory LLM used by tests and local development. It
// returns canned responses keyed by prompt/text, or a default when no
// match is configured.
type FakeLLM struct {
	mu sync.Mutex

	Generations map[string]string
	Sentiments  map[string]SentimentResult

	DefaultGeneration string
	DefaultSentiment  SentimentResult

	GenerateErr error
	SentimentErr error
}

// NewFakeLLM builds an empty FakeLLM.
func NewFakeLLM() *FakeLLM {
	return &FakeLLM{
		Generations: make(map[string]string),
		Sentiments:  make(map[string]SentimentResult),
	}
}

// Generate returns the canned response for prompt, or the default.
func (f *FakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GenerateErr != nil {
		return "", f.GenerateErr
	}

	if resp, ok := f.Generations[prompt]; ok {
		return resp, nil
	}

	return f.DefaultGeneration, nil
}

// AnalyzeSentiment returns the canned sentiment for text, or the default.
func (f *FakeLLM) AnalyzeSentiment(_ context.Context, text string) (SentimentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SentimentErr != nil {
		return SentimentResult{}, f.SentimentErr
	}

	if res, ok := f.Sentiments[text]; ok {
		return res, nil
	}

	return f.DefaultSentiment, nil
}

// MemoryStorage is an in-memory Storage used by tests.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStorage builds an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

// StoreBytes records content under path in memory.
func (m *MemoryStorage) StoreBytes(_ context.Context, path, _ string, content []byte) (StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(content))
	copy(cp, content)
	m.objects[path] = cp

	return StoredObject{Path: path, Size: int64(len(content))}, nil
}

// StoreText records text under path in memory.
func (m *MemoryStorage) StoreText(ctx context.Context, path, text, mime string, _ map[string]string) (StoredObject, error) {
	return m.StoreBytes(ctx, path, mime, []byte(text))
}

// GetLocalPath returns a synthetic in-memory handle; it does not
// correspond to a real filesystem path.
func (m *MemoryStorage) GetLocalPath(_ context.Context, path string) (LocalHandle, error) {
	return LocalHandle{Path: "memory://" + path}, nil
}

// Get returns the stored bytes for path, for test assertions.
func (m *MemoryStorage) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.objects[path]

	return v, ok
}
