package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abramin/xreflens/internal/model"
)

// SaveIndex merges idx into the store. Existing entries are extended;
// nothing already stored is dropped.
func SaveIndex(st *Store, idx *model.Index) error {
	tree, err := idx.Tree()
	if err != nil {
		return fmt.Errorf("converting index: %w", err)
	}
	if err := st.Update(tree); err != nil {
		return fmt.Errorf("merging index: %w", err)
	}
	return nil
}

// LoadIndex reads the whole store back into a typed index.
func LoadIndex(st *Store) (*model.Index, error) {
	keys, err := st.Keys("")
	if err != nil {
		return nil, err
	}
	tree := make(map[string]any, len(keys))
	for _, key := range keys {
		v, ok, err := st.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			tree[key] = v
		}
	}
	return model.FromTree(tree)
}

// LoadTimestamps returns the recorded per-file indexing times. A nil map
// means no run has been recorded yet.
func LoadTimestamps(st *Store) (map[string]time.Time, error) {
	v, ok, err := st.Get(model.KeyFiles)
	if err != nil {
		return nil, fmt.Errorf("reading timestamps: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return model.DecodeTimestamps(v)
}

// ExciseFile removes every fact contributed by file.
func ExciseFile(st *Store, file string) error {
	return ExciseFiles(st, []string{file})
}

// ExciseFiles removes every fact contributed by files: their location
// blocks, their timestamps, and declaration, definition and reference
// pointers into them. Symbol entries themselves are kept.
func ExciseFiles(st *Store, files []string) error {
	if len(files) == 0 {
		return nil
	}
	gone := make(map[string]struct{}, len(files))
	for _, f := range files {
		gone[f] = struct{}{}
		if err := st.Delete(model.FileKey(f)); err != nil {
			return err
		}
	}

	if v, ok, err := st.Get(model.KeyFiles); err != nil {
		return err
	} else if ok {
		if stamps, isMap := v.(map[string]any); isMap {
			for f := range gone {
				delete(stamps, f)
			}
			if err := st.Set(model.KeyFiles, stamps); err != nil {
				return err
			}
		}
	}

	keys, err := st.Keys(model.SymbolPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		var sym model.Symbol
		if _, err := st.Decode(key, &sym); err != nil {
			return err
		}
		changed := false
		for f := range gone {
			if sym.DropFile(f) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := st.Set(key, &sym); err != nil {
			return fmt.Errorf("excising from %s: %w", key, err)
		}
	}
	return nil
}

// Source answers index lookups directly from a store, decoding entries on
// first use. It is safe for concurrent use.
type Source struct {
	st *Store

	mu      sync.Mutex
	baseDir *string
	files   map[string]model.FileLocations
	symbols map[string]*model.Symbol
}

// NewSource wraps st for querying.
func NewSource(st *Store) *Source {
	return &Source{
		st:      st,
		files:   make(map[string]model.FileLocations),
		symbols: make(map[string]*model.Symbol),
	}
}

// Location returns the entry at file:locus.
func (s *Source) Location(file, locus string) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locs, ok := s.files[file]
	if !ok {
		found, err := s.st.Decode(model.FileKey(file), &locs)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("file %s: %w", file, model.ErrNotIndexed)
		}
		s.files[file] = locs
	}
	loc, ok := locs[locus]
	if !ok || loc == nil {
		return nil, fmt.Errorf("locus %s: %w", model.FileLocus(file, locus), model.ErrNotIndexed)
	}
	return loc, nil
}

// Symbol returns the entry for usr.
func (s *Source) Symbol(usr string) (*model.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sym, ok := s.symbols[usr]; ok {
		return sym, nil
	}
	var sym model.Symbol
	found, err := s.st.Decode(model.SymbolKey(usr), &sym)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("symbol %s: %w", usr, model.ErrNotIndexed)
	}
	s.symbols[usr] = &sym
	return &sym, nil
}

// Base returns the project base directory recorded in the store.
func (s *Source) Base() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseDir == nil {
		var dir string
		if v, ok, err := s.st.Get(model.KeyBaseDir); err == nil && ok {
			dir, _ = v.(string)
		}
		s.baseDir = &dir
	}
	return *s.baseDir
}

// Files lists the relative names of every indexed file.
func (s *Source) Files() ([]string, error) {
	keys, err := s.st.Keys(model.FilePrefix)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(keys))
	for i, key := range keys {
		files[i] = strings.TrimPrefix(key, model.FilePrefix)
	}
	return files, nil
}
