package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"autocatalog/logger"
)

const (
	fileSuffix = ".json"
	tempSuffix = ".tmp"
)

// Store is a file-backed response cache. Entries expire maxAge after they
// were written.
type Store struct {
	dir    string
	maxAge time.Duration

	// mu orders Clear against in-flight writes. gen counts Clear calls so a
	// response computed before a Clear is never stored after it.
	mu  sync.RWMutex
	gen atomic.Uint64
}

func NewStore(dir string, maxAge time.Duration) *Store {
	return &Store{dir: dir, maxAge: maxAge}
}

// Path returns the cache file path for a request URI.
func (s *Store) Path(uri string) string {
	return filepath.Join(s.dir, generateHash(uri)+fileSuffix)
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// Write stores body for uri. Readers see either the old entry or the whole
// new one.
func (s *Store) Write(uri string, body []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.write(uri, body)
}

// Generation returns the number of Clear calls so far.
func (s *Store) Generation() uint64 {
	return s.gen.Load()
}

// WriteIfCurrent stores body only when no Clear happened since gen was read.
func (s *Store) WriteIfCurrent(uri string, body []byte, gen uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen.Load() != gen {
		return false, nil
	}
	return true, s.write(uri, body)
}

func (s *Store) write(uri string, body []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "entry-*"+tempSuffix)
	if err != nil {
		return err
	}
	_, err = tmp.Write(body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), s.Path(uri))
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}

// Read returns the cached body if it exists and is not expired.
func (s *Store) Read(uri string) ([]byte, bool) {
	p := s.Path(uri)

	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > s.maxAge {
		return nil, false
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Clear removes every cached entry. Called after any catalog write.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Add(1)

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	logger.L().Debug("cache cleared", zap.String("dir", s.dir))
	return nil
}

// ClearOld removes entries older than maxAge.
func (s *Store) ClearOld() error {
	return filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !(strings.HasSuffix(path, fileSuffix) || strings.HasSuffix(path, tempSuffix)) {
			return nil
		}
		if time.Since(info.ModTime()) > s.maxAge {
			os.Remove(path)
		}
		return nil
	})
}
