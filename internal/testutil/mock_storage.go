// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
)

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	mu      sync.RWMutex
	objects map[string]*storage.ObjectInfo
	data    map[string][]byte
	tempDir string // when set, blobs are also written to disk for Path
}

// NewMockStorage creates a memory-only mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		objects: make(map[string]*storage.ObjectInfo),
		data:    make(map[string][]byte),
	}
}

// NewMockStorageWithTempDir creates a mock storage that also writes blobs
// to disk, for code paths that need a real file behind Path.
func NewMockStorageWithTempDir(tempDir string) *MockStorage {
	m := NewMockStorage()
	m.tempDir = tempDir
	return m
}

func (m *MockStorage) Save(name string, kind storage.Kind, r io.Reader) (*storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, kind, data)
}

func (m *MockStorage) SaveBytes(name string, kind storage.Kind, data []byte) (*storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := generateTestID()
	info := &storage.ObjectInfo{
		ID:       id,
		Name:     name,
		Size:     int64(len(data)),
		Kind:     kind,
		StoredAt: time.Now(),
	}

	if m.tempDir != "" {
		if err := os.WriteFile(filepath.Join(m.tempDir, id), data, 0644); err != nil {
			return nil, err
		}
	}

	m.objects[id] = info
	m.data[id] = data
	return info, nil
}

func (m *MockStorage) Get(id string) (*storage.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.objects[id]
	if !ok {
		return nil, errors.New("object not found")
	}
	return info, nil
}

func (m *MockStorage) List(kind storage.Kind, limit int) ([]*storage.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*storage.ObjectInfo
	for _, info := range m.objects {
		if info.Kind == kind {
			list = append(list, info)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StoredAt.After(list[j].StoredAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[id]; !ok {
		return errors.New("object not found")
	}
	if m.tempDir != "" {
		os.Remove(filepath.Join(m.tempDir, id))
	}
	delete(m.objects, id)
	delete(m.data, id)
	return nil
}

func (m *MockStorage) Path(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.objects[id]; !ok {
		return "", errors.New("object not found")
	}
	if m.tempDir != "" {
		return filepath.Join(m.tempDir, id), nil
	}
	return "/mock/path/" + id, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[id]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddObject adds a blob directly to the mock
func (m *MockStorage) AddObject(id string, name string, kind storage.Kind, data []byte) *storage.ObjectInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &storage.ObjectInfo{
		ID:       id,
		Name:     name,
		Size:     int64(len(data)),
		Kind:     kind,
		StoredAt: time.Now(),
	}
	if m.tempDir != "" {
		if err := os.WriteFile(filepath.Join(m.tempDir, id), data, 0644); err != nil {
			panic(fmt.Sprintf("failed to write test file: %v", err))
		}
	}
	m.objects[id] = info
	m.data[id] = data
	return info
}

// ObjectData returns the blob content
func (m *MockStorage) ObjectData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[id]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

// ObjectCount returns the number of stored blobs
func (m *MockStorage) ObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
