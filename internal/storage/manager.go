package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes uploaded inputs from conversion outputs.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// ObjectInfo is the metadata for one stored blob.
type ObjectInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Kind     Kind      `json:"kind"`
	MIMEType string    `json:"mimeType,omitempty"`
	StoredAt time.Time `json:"storedAt"`
}

// Store defines the interface for blob storage.
type Store interface {
	Save(name string, kind Kind, r io.Reader) (*ObjectInfo, error)
	SaveBytes(name string, kind Kind, data []byte) (*ObjectInfo, error)
	Get(id string) (*ObjectInfo, error)
	List(kind Kind, limit int) ([]*ObjectInfo, error)
	Delete(id string) error
	Path(id string) (string, error)
	Open(id string) (io.ReadCloser, error)
}

// LocalStore implements Store on the local filesystem. Blobs are written
// under dataDir keyed by uuid; metadata lives in memory for the process
// lifetime, matching the session-scoped nature of conversions.
type LocalStore struct {
	mu      sync.RWMutex
	dataDir string
	objects map[string]*ObjectInfo
}

// NewLocalStore creates a LocalStore rooted at dataDir.
func NewLocalStore(dataDir string) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &LocalStore{
		dataDir: dataDir,
		objects: make(map[string]*ObjectInfo),
	}, nil
}

// Save streams a blob to disk and registers its metadata.
func (s *LocalStore) Save(name string, kind Kind, r io.Reader) (*ObjectInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dataDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &ObjectInfo{
		ID:       id,
		Name:     name,
		Size:     size,
		Kind:     kind,
		StoredAt: time.Now(),
	}

	s.mu.Lock()
	s.objects[id] = info
	s.mu.Unlock()

	return info, nil
}

// SaveBytes stores an in-memory blob.
func (s *LocalStore) SaveBytes(name string, kind Kind, data []byte) (*ObjectInfo, error) {
	return s.Save(name, kind, bytes.NewReader(data))
}

// Get retrieves blob metadata by ID.
func (s *LocalStore) Get(id string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", id)
	}
	return info, nil
}

// List returns the most recently stored blobs of the given kind.
func (s *LocalStore) List(kind Kind, limit int) ([]*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*ObjectInfo
	for _, info := range s.objects {
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

// Delete removes a blob and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("object not found: %s", id)
	}

	path := filepath.Join(s.dataDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.objects, id)
	return nil
}

// Path returns the absolute path to a stored blob.
func (s *LocalStore) Path(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[id]; !ok {
		return "", fmt.Errorf("object not found: %s", id)
	}
	return filepath.Join(s.dataDir, id), nil
}

// Open returns a reader over the blob content.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
