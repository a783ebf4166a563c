package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Reserved top-level keys and key prefixes of the tree form.
const (
	KeyBaseDir   = "basedir"
	KeyFiles     = "files"
	FilePrefix   = "file:"
	SymbolPrefix = "usr:"
)

// FileKey returns the tree key holding a file's location entries.
func FileKey(rel string) string { return FilePrefix + rel }

// SymbolKey returns the tree key holding a symbol entry.
func SymbolKey(usr string) string { return SymbolPrefix + usr }

// Index is the cross-reference index for one project.
type Index struct {
	BaseDir    string
	Files      map[string]FileLocations
	Symbols    map[string]*Symbol
	Timestamps map[string]time.Time
}

// New returns an empty index rooted at baseDir.
func New(baseDir string) *Index {
	return &Index{
		BaseDir:    baseDir,
		Files:      make(map[string]FileLocations),
		Symbols:    make(map[string]*Symbol),
		Timestamps: make(map[string]time.Time),
	}
}

// Location returns the entry at file:locus.
func (idx *Index) Location(file, locus string) (*Location, error) {
	locs, ok := idx.Files[file]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", file, ErrNotIndexed)
	}
	loc, ok := locs[locus]
	if !ok {
		return nil, fmt.Errorf("locus %s: %w", FileLocus(file, locus), ErrNotIndexed)
	}
	return loc, nil
}

// Symbol returns the entry for usr.
func (idx *Index) Symbol(usr string) (*Symbol, error) {
	sym, ok := idx.Symbols[usr]
	if !ok {
		return nil, fmt.Errorf("symbol %s: %w", usr, ErrNotIndexed)
	}
	return sym, nil
}

// Base returns the project base directory.
func (idx *Index) Base() string { return idx.BaseDir }

// LocationAt returns the entry at file:locus, creating it if needed.
func (idx *Index) LocationAt(file, locus string) *Location {
	locs, ok := idx.Files[file]
	if !ok {
		locs = make(FileLocations)
		idx.Files[file] = locs
	}
	loc, ok := locs[locus]
	if !ok {
		loc = &Location{}
		locs[locus] = loc
	}
	return loc
}

// SymbolFor returns the entry for usr, creating it if needed.
func (idx *Index) SymbolFor(usr string) *Symbol {
	sym, ok := idx.Symbols[usr]
	if !ok {
		sym = &Symbol{}
		idx.Symbols[usr] = sym
	}
	return sym
}

// AddInheritance records base as a base class of derived and derived as a
// child class of base.
func (idx *Index) AddInheritance(derived, base string) {
	b := idx.SymbolFor(base)
	d := idx.SymbolFor(derived)
	b.ChildClass = appendUnique(b.ChildClass, derived)
	d.BaseClass = appendUnique(d.BaseClass, base)
}

// AddRef appends a File-Locus Key to the symbol's reference list.
func (s *Symbol) AddRef(fileLocus string) {
	s.Refs = appendUnique(s.Refs, fileLocus)
}

// Merge folds src into idx. Non-empty scalar fields of src win, lists are
// unioned keeping idx's order, and nothing is removed. src is not aliased.
func (idx *Index) Merge(src *Index) {
	if src == nil {
		return
	}
	if src.BaseDir != "" {
		idx.BaseDir = src.BaseDir
	}
	for file, locs := range src.Files {
		for locus, loc := range locs {
			idx.LocationAt(file, locus).merge(loc)
		}
	}
	for usr, sym := range src.Symbols {
		idx.SymbolFor(usr).merge(sym)
	}
	for file, ts := range src.Timestamps {
		idx.Timestamps[file] = ts
	}
}

func (l *Location) merge(src *Location) {
	if src.USR != "" {
		l.USR = src.USR
	}
	if src.RefUSR != "" {
		l.RefUSR = src.RefUSR
	}
	if src.TemplateUSR != "" {
		l.TemplateUSR = src.TemplateUSR
	}
}

func (s *Symbol) merge(src *Symbol) {
	if src.Decl != "" {
		s.Decl = src.Decl
	}
	if src.Defi != "" {
		s.Defi = src.Defi
	}
	if src.Kind != "" {
		s.Kind = src.Kind
	}
	if src.Spell != "" {
		s.Spell = src.Spell
	}
	if src.Type != "" {
		s.Type = src.Type
	}
	for _, r := range src.Refs {
		s.Refs = appendUnique(s.Refs, r)
	}
	for _, b := range src.BaseClass {
		s.BaseClass = appendUnique(s.BaseClass, b)
	}
	for _, c := range src.ChildClass {
		s.ChildClass = appendUnique(s.ChildClass, c)
	}
}

// RemoveFile excises every fact file contributed: its location entries,
// its timestamp, and declaration/definition/reference pointers into it.
func (idx *Index) RemoveFile(file string) {
	delete(idx.Files, file)
	delete(idx.Timestamps, file)
	for _, sym := range idx.Symbols {
		sym.DropFile(file)
	}
}

// DropFile clears pointers into file and reports whether anything changed.
func (s *Symbol) DropFile(file string) bool {
	changed := false
	if s.Decl != "" && FileOf(s.Decl) == file {
		s.Decl = ""
		changed = true
	}
	if s.Defi != "" && FileOf(s.Defi) == file {
		s.Defi = ""
		changed = true
	}
	kept := slices.DeleteFunc(s.Refs, func(ref string) bool {
		return FileOf(ref) == file
	})
	if len(kept) != len(s.Refs) {
		changed = true
	}
	s.Refs = kept
	return changed
}

// Tree converts the index to its untyped nested form.
func (idx *Index) Tree() (map[string]any, error) {
	tree := make(map[string]any, len(idx.Files)+len(idx.Symbols)+2)
	if idx.BaseDir != "" {
		tree[KeyBaseDir] = idx.BaseDir
	}
	if len(idx.Timestamps) > 0 {
		files := make(map[string]any, len(idx.Timestamps))
		for file, ts := range idx.Timestamps {
			files[file] = ts.UTC().Format(time.RFC3339Nano)
		}
		tree[KeyFiles] = files
	}
	for file, locs := range idx.Files {
		v, err := ToTree(locs)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", file, err)
		}
		tree[FileKey(file)] = v
	}
	for usr, sym := range idx.Symbols {
		v, err := ToTree(sym)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", usr, err)
		}
		tree[SymbolKey(usr)] = v
	}
	return tree, nil
}

// FromTree rebuilds a typed index from its untyped nested form.
// Unknown keys are ignored.
func FromTree(tree map[string]any) (*Index, error) {
	idx := New("")
	for key, v := range tree {
		if err := idx.setTreeKey(key, v); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) setTreeKey(key string, v any) error {
	switch {
	case key == KeyBaseDir:
		s, _ := v.(string)
		idx.BaseDir = s
	case key == KeyFiles:
		stamps, err := DecodeTimestamps(v)
		if err != nil {
			return err
		}
		idx.Timestamps = stamps
	case strings.HasPrefix(key, FilePrefix):
		var locs FileLocations
		if err := FromTreeValue(v, &locs); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		idx.Files[strings.TrimPrefix(key, FilePrefix)] = locs
	case strings.HasPrefix(key, SymbolPrefix):
		var sym Symbol
		if err := FromTreeValue(v, &sym); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		idx.Symbols[strings.TrimPrefix(key, SymbolPrefix)] = &sym
	}
	return nil
}

// DecodeTimestamps converts the tree value under KeyFiles to times.
func DecodeTimestamps(v any) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	m, ok := v.(map[string]any)
	if !ok {
		return out, nil
	}
	for file, raw := range m {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("timestamp for %s: %w", file, err)
		}
		out[file] = ts
	}
	return out, nil
}

// ToTree converts a typed value into maps, slices, and scalars.
func ToTree(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromTreeValue decodes an untyped tree value into out.
func FromTreeValue(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
