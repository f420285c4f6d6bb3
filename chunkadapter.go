package lokidb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/snappy"
)

// ChunkStore is the raw key/value substrate ChunkAdapter persists
// compressed chunks through. Adapted from the GridFS-style chunked blob
// storage pattern: a database's serialized form is decomposed into named
// chunks instead of one monolithic blob, so a collection can be replaced
// without rewriting the whole database.
type ChunkStore interface {
	PutChunk(ctx context.Context, key string, data []byte) error
	GetChunk(ctx context.Context, key string) ([]byte, error)
	DeleteChunk(ctx context.Context, key string) error
	ListChunks(ctx context.Context, prefix string) ([]string, error)
}

// MemoryChunkStore is an in-process ChunkStore, the reference
// implementation used when no external store is configured.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

// NewMemoryChunkStore returns an empty MemoryChunkStore.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{chunks: map[string][]byte{}}
}

func (s *MemoryChunkStore) PutChunk(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.chunks[key] = cp
	return nil
}

func (s *MemoryChunkStore) GetChunk(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.chunks[key]
	if !ok {
		return nil, wrapErr(ErrNotFound, "chunk %q", key)
	}
	return data, nil
}

func (s *MemoryChunkStore) DeleteChunk(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, key)
	return nil
}

func (s *MemoryChunkStore) ListChunks(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.chunks {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// ChunkAdapter is a reference StorageAdapter (spec §7) that compresses
// every chunk with snappy before handing it to a ChunkStore. When handed
// a FormatDestructured export it stores the manifest and each
// collection's documents as independent chunks; any other payload
// (FormatNormal/FormatPretty) is stored as a single opaque blob chunk.
type ChunkAdapter struct {
	store ChunkStore
}

// NewChunkAdapter wraps store. A nil store defaults to a fresh
// MemoryChunkStore.
func NewChunkAdapter(store ChunkStore) *ChunkAdapter {
	if store == nil {
		store = NewMemoryChunkStore()
	}
	return &ChunkAdapter{store: store}
}

func manifestKey(name string) string   { return fmt.Sprintf("%s/manifest", name) }
func blobKey(name string) string       { return fmt.Sprintf("%s.blob", name) }
func collChunkKey(name, coll string) string { return fmt.Sprintf("%s/chunks/%s", name, coll) }

func (a *ChunkAdapter) SaveDatabase(ctx context.Context, name string, serialized []byte) error {
	var export DestructuredExport
	if err := json.Unmarshal(serialized, &export); err == nil && export.Manifest != nil {
		return a.saveDestructured(ctx, name, export)
	}
	return a.store.PutChunk(ctx, blobKey(name), snappy.Encode(nil, serialized))
}

func (a *ChunkAdapter) saveDestructured(ctx context.Context, name string, export DestructuredExport) error {
	if err := a.store.PutChunk(ctx, manifestKey(name), snappy.Encode(nil, export.Manifest)); err != nil {
		return wrapErr(ErrAdapterError, "save manifest for %q: %v", name, err)
	}
	for coll, chunk := range export.Chunks {
		if err := a.store.PutChunk(ctx, collChunkKey(name, coll), snappy.Encode(nil, chunk)); err != nil {
			return wrapErr(ErrAdapterError, "save collection chunk %q/%q: %v", name, coll, err)
		}
	}
	return nil
}

func (a *ChunkAdapter) LoadDatabase(ctx context.Context, name string) ([]byte, error) {
	manifestRaw, err := a.store.GetChunk(ctx, manifestKey(name))
	if err != nil {
		blob, blobErr := a.store.GetChunk(ctx, blobKey(name))
		if blobErr != nil {
			return nil, wrapErr(ErrNotFound, "database %q", name)
		}
		return snappy.Decode(nil, blob)
	}

	manifestBytes, err := snappy.Decode(nil, manifestRaw)
	if err != nil {
		return nil, wrapErr(ErrAdapterError, "decode manifest for %q: %v", name, err)
	}

	var manifest destructuredManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, wrapErr(ErrAdapterError, "parse manifest for %q: %v", name, err)
	}

	export := DestructuredExport{Manifest: manifestBytes, Chunks: map[string][]byte{}}
	for _, coll := range manifest.Names {
		raw, err := a.store.GetChunk(ctx, collChunkKey(name, coll))
		if err != nil {
			continue
		}
		chunk, err := snappy.Decode(nil, raw)
		if err != nil {
			return nil, wrapErr(ErrAdapterError, "decode collection chunk %q/%q: %v", name, coll, err)
		}
		export.Chunks[coll] = chunk
	}

	return json.Marshal(export)
}

func (a *ChunkAdapter) DeleteDatabase(ctx context.Context, name string) error {
	keys, _ := a.store.ListChunks(ctx, name)
	for _, k := range keys {
		_ = a.store.DeleteChunk(ctx, k)
	}
	_ = a.store.DeleteChunk(ctx, blobKey(name))
	_ = a.store.DeleteChunk(ctx, manifestKey(name))
	return nil
}
