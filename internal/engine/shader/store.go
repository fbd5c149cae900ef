package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrPermutationNotFound reports missing precompiled bytecode.
var ErrPermutationNotFound = errors.New("shader permutation not found")

// Stage is a shader pipeline stage.
type Stage string

// Stages with precompiled bytecode.
const (
	Vertex Stage = "VS"
	Pixel  Stage = "PS"
)

// PermutationName returns the file name of a precompiled permutation, for
// example "GLTFPbrPass-VS_Permutation_0x1234abcd.cso".
func PermutationName(pass string, stage Stage, hash uint32, ext string) string {
	return fmt.Sprintf("%s-%s_Permutation_0x%08x%s", pass, stage, hash, ext)
}

// Store returns precompiled bytecode by file name.
type Store interface {
	Bytecode(name string) ([]byte, error)
}

// DirStore reads bytecode files from a directory tree.
type DirStore struct {
	fsys fs.FS
}

// NewDirStore serves files from dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{fsys: os.DirFS(dir)}
}

// NewFSStore serves files from fsys.
func NewFSStore(fsys fs.FS) *DirStore {
	return &DirStore{fsys: fsys}
}

// Bytecode implements Store.
func (s *DirStore) Bytecode(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, filepath.ToSlash(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPermutationNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// CollectingStore records every requested permutation and answers each
// request with placeholder bytecode. It lets tools enumerate the
// permutations a scene needs without having any of them.
type CollectingStore struct {
	mu        sync.Mutex
	requested map[string]struct{}
}

// NewCollectingStore returns an empty collecting store.
func NewCollectingStore() *CollectingStore {
	return &CollectingStore{requested: make(map[string]struct{})}
}

// Bytecode implements Store.
func (s *CollectingStore) Bytecode(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested[name] = struct{}{}
	return []byte(name), nil
}

// Requested returns the sorted names of every requested permutation.
func (s *CollectingStore) Requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requested))
	for name := range s.requested {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
