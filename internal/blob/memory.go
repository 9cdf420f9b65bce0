package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Memory is a map-backed Backend for tests and local runs.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("read blob: %w", err)
	}
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])

	m.mu.Lock()
	m.blobs[ref] = data
	m.mu.Unlock()
	return ref, int64(len(data)), nil
}

func (m *Memory) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.blobs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %s not stored", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
