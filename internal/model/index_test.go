package model

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/xreflens/internal/merge"
)

func partialA() *Index {
	idx := New("/proj")
	idx.LocationAt("a.h", "3:10").USR = "c:@F@hello#"
	sym := idx.SymbolFor("c:@F@hello#")
	sym.Decl = "a.h:3:10"
	sym.Kind = KindFunctionDecl
	sym.Spell = "hello"
	sym.AddRef("main.cpp:5:3")
	idx.Timestamps["a.h"] = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return idx
}

func partialB() *Index {
	idx := New("/proj")
	idx.LocationAt("a.cpp", "1:6").USR = "c:@F@hello#"
	idx.LocationAt("b.cpp", "9:1").RefUSR = "c:@F@hello#"
	sym := idx.SymbolFor("c:@F@hello#")
	sym.Defi = "a.cpp:1:6"
	sym.Kind = KindFunctionDecl
	sym.AddRef("b.cpp:9:1")
	sym.AddRef("main.cpp:5:3")
	idx.AddInheritance("c:@S@D", "c:@S@B")
	idx.Timestamps["a.cpp"] = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	return idx
}

func TestIndexMerge_CombinesPartials(t *testing.T) {
	idx := partialA()
	idx.Merge(partialB())

	sym, err := idx.Symbol("c:@F@hello#")
	require.NoError(t, err)
	assert.Equal(t, "a.h:3:10", sym.Decl)
	assert.Equal(t, "a.cpp:1:6", sym.Defi)
	assert.Equal(t, []string{"main.cpp:5:3", "b.cpp:9:1"}, sym.Refs)
	assert.Equal(t, []string{"c:@S@D"}, idx.Symbols["c:@S@B"].ChildClass)
	assert.Equal(t, []string{"c:@S@B"}, idx.Symbols["c:@S@D"].BaseClass)
	assert.Len(t, idx.Timestamps, 2)
}

func TestIndexMerge_DoesNotAliasSource(t *testing.T) {
	src := partialB()
	idx := New("/proj")
	idx.Merge(src)

	src.Symbols["c:@F@hello#"].Refs[0] = "mutated"
	src.Files["a.cpp"]["1:6"].USR = "mutated"

	assert.Equal(t, "b.cpp:9:1", idx.Symbols["c:@F@hello#"].Refs[0])
	assert.Equal(t, "c:@F@hello#", idx.Files["a.cpp"]["1:6"].USR)
}

func TestIndexMerge_AgreesWithTreeMerge(t *testing.T) {
	typed := partialA()
	typed.Merge(partialB())
	want, err := typed.Tree()
	require.NoError(t, err)

	got, err := partialA().Tree()
	require.NoError(t, err)
	b, err := partialB().Tree()
	require.NoError(t, err)
	merge.Merge(got, b)

	assert.Equal(t, want, got)
}

func TestIndexMerge_Commutative(t *testing.T) {
	ab := partialA()
	ab.Merge(partialB())
	ba := partialB()
	ba.Merge(partialA())

	s1, s2 := ab.Symbols["c:@F@hello#"], ba.Symbols["c:@F@hello#"]
	assert.ElementsMatch(t, s1.Refs, s2.Refs)
	assert.Equal(t, s1.Decl, s2.Decl)
	assert.Equal(t, s1.Defi, s2.Defi)
	assert.Equal(t, ab.Files, ba.Files)
}

func TestTreeRoundTrip(t *testing.T) {
	idx := partialA()
	idx.Merge(partialB())

	tree, err := idx.Tree()
	require.NoError(t, err)
	assert.Contains(t, tree, KeyBaseDir)
	assert.Contains(t, tree, KeyFiles)
	assert.Contains(t, tree, FileKey("a.cpp"))
	assert.Contains(t, tree, SymbolKey("c:@F@hello#"))

	back, err := FromTree(tree)
	require.NoError(t, err)
	assert.Equal(t, idx.BaseDir, back.BaseDir)
	assert.Equal(t, idx.Files, back.Files)
	assert.Equal(t, idx.Symbols, back.Symbols)
	for file, ts := range idx.Timestamps {
		assert.True(t, ts.Equal(back.Timestamps[file]), file)
	}
}

func TestRemoveFile_ExcisesOnlyThatFile(t *testing.T) {
	idx := New("/proj")
	idx.LocationAt("x.cpp", "1:6").USR = "c:@F@s#"
	idx.LocationAt("y.cpp", "4:2").RefUSR = "c:@F@s#"
	sym := idx.SymbolFor("c:@F@s#")
	sym.Decl = "s.h:1:6"
	sym.Defi = "x.cpp:1:6"
	sym.AddRef("y.cpp:4:2")
	sym.AddRef("x.cpp:9:9")
	idx.Timestamps["x.cpp"] = time.Now()
	idx.Timestamps["y.cpp"] = time.Now()

	idx.RemoveFile("x.cpp")

	assert.NotContains(t, idx.Files, "x.cpp")
	assert.Contains(t, idx.Files, "y.cpp")
	assert.NotContains(t, idx.Timestamps, "x.cpp")
	assert.Empty(t, sym.Defi)
	assert.Equal(t, "s.h:1:6", sym.Decl)
	assert.Equal(t, []string{"y.cpp:4:2"}, sym.Refs)
}

func TestDropFile_ReportsChange(t *testing.T) {
	sym := &Symbol{Decl: "a.h:1:1", Refs: []string{"b.cpp:1:1"}}
	assert.False(t, sym.DropFile("c.cpp"))
	assert.True(t, sym.DropFile("a.h"))
	assert.Empty(t, sym.Decl)
}

func TestLookupsReportNotIndexed(t *testing.T) {
	idx := partialA()

	_, err := idx.Location("nope.cpp", "1:1")
	assert.True(t, errors.Is(err, ErrNotIndexed))
	_, err = idx.Location("a.h", "99:1")
	assert.True(t, errors.Is(err, ErrNotIndexed))
	_, err = idx.Symbol("c:@F@missing#")
	assert.True(t, errors.Is(err, ErrNotIndexed))
}

func TestSplitFileLocus(t *testing.T) {
	tests := []struct {
		in        string
		file      string
		locus     string
		wantError bool
	}{
		{"src/a.cpp:3:7", "src/a.cpp", "3:7", false},
		{"C:/x/a.cpp:3:7", "C:/x/a.cpp", "3:7", false},
		{"a.cpp:3", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			file, locus, err := SplitFileLocus(tt.in)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.file, file)
			assert.Equal(t, tt.locus, locus)
		})
	}
}

func TestRelPath(t *testing.T) {
	base := filepath.FromSlash("/proj")
	assert.Equal(t, filepath.FromSlash("src/a.cpp"), RelPath(base, filepath.FromSlash("/proj/src/a.cpp")))
	assert.Equal(t, filepath.FromSlash("/usr/include/x.h"), RelPath(base, filepath.FromSlash("/usr/include/x.h")))
	assert.Equal(t, filepath.FromSlash("/project2/a.h"), RelPath(base, filepath.FromSlash("/project2/a.h")))
	assert.Equal(t, "a.cpp", RelPath(base, "a.cpp"))
}
