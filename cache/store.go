// Copyright 2026 The taskio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Entry is one stored value with its expiry.
type Entry struct {
	Value     any       `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	NoExpiry  bool      `json:"no_expiry"`
}

// Store is a cache storage backend. Implementations must be safe for
// concurrent use.
type Store interface {
	Load(key string) (Entry, bool)
	Store(key string, e Entry)
	Delete(key string)
	Range(fn func(key string, e Entry) bool)
}

// MapStore is the in-memory backend.
type MapStore struct {
	mu sync.RWMutex
	m  map[string]Entry
}

// NewMapStore creates an empty in-memory backend.
func NewMapStore() *MapStore {
	return &MapStore{m: make(map[string]Entry)}
}

func (s *MapStore) Load(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[key]
	return e, ok
}

func (s *MapStore) Store(key string, e Entry) {
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
}

func (s *MapStore) Delete(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (s *MapStore) Range(fn func(key string, e Entry) bool) {
	s.mu.RLock()
	type kv struct {
		k string
		e Entry
	}
	all := make([]kv, 0, len(s.m))
	for k, e := range s.m {
		all = append(all, kv{k, e})
	}
	s.mu.RUnlock()

	for _, x := range all {
		if !fn(x.k, x.e) {
			return
		}
	}
}

// DirStore keeps one JSON-encoded file per key under a directory. Values
// are encoded on write and lazily decoded on read, so anything stored must
// round-trip through encoding/json (numbers come back as float64). An entry
// whose file cannot be read or decoded counts as absent.
type DirStore struct {
	mu  sync.Mutex
	dir string
	// index maps keys to file names, since keys may not be path-safe.
	index map[string]string
}

// NewDirStore creates the directory if needed and opens a backend over it.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cache: creating store directory")
	}
	s := &DirStore{dir: dir, index: make(map[string]string)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "cache: reading store directory")
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		// file names are derived from keys; recover the key from the file.
		var f dirEntry
		if raw, err := os.ReadFile(filepath.Join(dir, de.Name())); err == nil {
			if json.Unmarshal(raw, &f) == nil && f.Key != "" {
				s.index[f.Key] = de.Name()
			}
		}
	}
	return s, nil
}

type dirEntry struct {
	Key string `json:"key"`
	Entry
}

func fileNameFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".json"
}

func (s *DirStore) Load(key string) (Entry, bool) {
	s.mu.Lock()
	name, ok := s.index[key]
	s.mu.Unlock()
	if !ok {
		return Entry{}, false
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Entry{}, false
	}
	var f dirEntry
	if err := json.Unmarshal(raw, &f); err != nil {
		return Entry{}, false
	}
	return f.Entry, true
}

func (s *DirStore) Store(key string, e Entry) {
	name := fileNameFor(key)
	raw, err := json.Marshal(dirEntry{Key: key, Entry: e})
	if err != nil {
		// a value that cannot be encoded is simply not cached
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return
	}
	s.mu.Lock()
	s.index[key] = name
	s.mu.Unlock()
}

func (s *DirStore) Delete(key string) {
	s.mu.Lock()
	name, ok := s.index[key]
	delete(s.index, key)
	s.mu.Unlock()
	if ok {
		os.Remove(filepath.Join(s.dir, name))
	}
}

func (s *DirStore) Range(fn func(key string, e Entry) bool) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		e, ok := s.Load(k)
		if !ok {
			continue
		}
		if !fn(k, e) {
			return
		}
	}
}

var (
	namedMu sync.Mutex
	named   = make(map[string]Store)
)

// Named returns the process-wide shared store under name, creating an
// in-memory one on first use. Policies sharing a named store must
// namespace their keys.
func Named(name string) Store {
	namedMu.Lock()
	defer namedMu.Unlock()
	s, ok := named[name]
	if !ok {
		s = NewMapStore()
		named[name] = s
	}
	return s
}

// RegisterNamed installs s as the shared store under name, replacing any
// previous one.
func RegisterNamed(name string, s Store) {
	if s == nil {
		panic(errors.New("cache: the provided store is nil"))
	}
	namedMu.Lock()
	named[name] = s
	namedMu.Unlock()
}
