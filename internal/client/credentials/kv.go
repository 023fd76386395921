package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV keeps all keys in one JSON object on disk. Every mutation rewrites
// the file.
type FileKV struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// OpenFileKV reads path, treating a missing file as an empty store.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, data: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&kv.data); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if kv.data == nil {
		kv.data = make(map[string]string)
	}
	return kv, nil
}

func (kv *FileKV) Get(key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (kv *FileKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return kv.flush()
}

func (kv *FileKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.data[key]; !ok {
		return nil
	}
	delete(kv.data, key)
	return kv.flush()
}

// flush writes to a temp file and renames it over the target. Callers hold mu.
func (kv *FileKV) flush() error {
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(kv.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(kv.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state: %w", err)
	}
	return os.Rename(tmp.Name(), kv.path)
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (kv *MemoryKV) Get(key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (kv *MemoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *MemoryKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

var (
	_ KV = (*FileKV)(nil)
	_ KV = (*MemoryKV)(nil)
)
