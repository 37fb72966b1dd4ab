package testsupport

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"shortbox/internal/comicinfo"
)

// WriteArchive creates a small CBZ at path carrying md (nil for none).
func WriteArchive(t testing.TB, path string, md *comicinfo.Metadata) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	pages := map[string][]byte{"001.jpg": {0xFF, 0xD8, 0xFF, 0xD9}}
	if err := comicinfo.WriteNewArchive(path, pages, md); err != nil {
		t.Fatalf("write archive %s: %v", path, err)
	}
}

// MemoryArchives is an in-memory comicinfo.ReadWriter with failure
// injection for apply tests.
type MemoryArchives struct {
	mu     sync.Mutex
	files  map[string]comicinfo.Metadata
	fail   map[string]error
	writes map[string]int
}

var _ comicinfo.ReadWriter = (*MemoryArchives)(nil)

// NewMemoryArchives returns an empty store.
func NewMemoryArchives() *MemoryArchives {
	return &MemoryArchives{
		files:  make(map[string]comicinfo.Metadata),
		fail:   make(map[string]error),
		writes: make(map[string]int),
	}
}

// Put seeds the embedded metadata for path.
func (m *MemoryArchives) Put(path string, md comicinfo.Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = md
}

// FailWrites makes every write to path return err.
func (m *MemoryArchives) FailWrites(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = errors.New("injected write failure")
	}
	m.fail[path] = err
}

// Writes reports how many times path was written.
func (m *MemoryArchives) Writes(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[path]
}

// Get returns the stored metadata for path.
func (m *MemoryArchives) Get(path string) (comicinfo.Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.files[path]
	return md, ok
}

// Read implements comicinfo.ReadWriter.
func (m *MemoryArchives) Read(path string) (comicinfo.Metadata, bool, error) {
	md, ok := m.Get(path)
	return md, ok, nil
}

// Write implements comicinfo.ReadWriter.
func (m *MemoryArchives) Write(path string, md comicinfo.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[path]; err != nil {
		return err
	}
	m.files[path] = md
	m.writes[path]++
	return nil
}
