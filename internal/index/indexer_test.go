package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/xreflens/internal/ast"
	"github.com/abramin/xreflens/internal/compdb"
	"github.com/abramin/xreflens/internal/config"
	"github.com/abramin/xreflens/internal/store"
)

type testProject struct {
	dir   string
	build string
	cfg   *config.Config
}

func newTestProject(t *testing.T, sources ...string) *testProject {
	t.Helper()
	dir := t.TempDir()
	p := &testProject{dir: dir, build: filepath.Join(dir, "build"), cfg: config.Default()}
	p.cfg.Project.BaseDir = dir
	p.cfg.Project.BuildDir = "build"
	p.cfg.Index.Workers = 2
	require.NoError(t, os.MkdirAll(p.build, 0755))
	p.writeCompdb(t, sources...)
	return p
}

func (p *testProject) writeCompdb(t *testing.T, sources ...string) {
	t.Helper()
	var cmds []compdb.Command
	for _, src := range sources {
		touchIfMissing(t, filepath.Join(p.dir, src))
		cmds = append(cmds, compdb.Command{
			Directory: p.build,
			Arguments: []string{"c++", "-c", filepath.Join(p.dir, src)},
			File:      filepath.Join(p.dir, src),
		})
	}
	data, err := json.Marshal(cmds)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.build, compdb.FileName), data, 0644))
}

func touchIfMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		return
	}
	touch(t, path)
}

// provider emits one function per file plus a call to a function declared
// in the project's shared.h.
func (p *testProject) provider() *fakeProvider {
	return &fakeProvider{gen: func(file string) *ast.Cursor {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		shared := &ast.Cursor{
			Kind: ast.FunctionDecl, Spelling: "shared",
			File: filepath.Join(p.dir, "shared.h"), Line: 1, Column: 6, USR: "c:@F@shared#",
		}
		call := &ast.Cursor{Kind: ast.DeclRefExpr, File: file, Line: 3, Column: 5, Referenced: shared}
		fn := &ast.Cursor{
			Kind: ast.FunctionDecl, Spelling: name, File: file, Line: 2, Column: 6,
			IsDefinition: true, USR: "c:@F@" + name + "#", Children: []*ast.Cursor{call},
		}
		return &ast.Cursor{Kind: ast.TranslationUnit, Children: []*ast.Cursor{shared, fn}}
	}}
}

func (p *testProject) run(t *testing.T, opts Options) *Result {
	t.Helper()
	res, err := NewIndexer(p.cfg, p.provider(), discardLogger()).Run(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func (p *testProject) sharedRefs(t *testing.T) []string {
	t.Helper()
	st, err := store.Open(p.cfg.DBPath(p.dir), store.Options{ReadOnly: true})
	require.NoError(t, err)
	defer st.Close()
	sym, err := store.NewSource(st).Symbol("c:@F@shared#")
	require.NoError(t, err)
	return sym.Refs
}

func TestIndexerFirstRun(t *testing.T) {
	p := newTestProject(t, "a.cpp", "b.cpp", "c.cpp")

	res := p.run(t, Options{})

	assert.Equal(t, 3, res.Jobs)
	assert.Equal(t, []string{"a.cpp", "b.cpp", "c.cpp"}, res.Indexed)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 4, res.FileCount, "three sources plus shared.h")
	assert.Equal(t, 4, res.SymbolCount)
	assert.FileExists(t, res.DBPath)
	assert.FileExists(t, filepath.Join(filepath.Dir(res.DBPath), "index.json"))
	assert.ElementsMatch(t, []string{"a.cpp:3:5", "b.cpp:3:5", "c.cpp:3:5"}, p.sharedRefs(t))
}

func TestIndexerIncrementalRun(t *testing.T) {
	p := newTestProject(t, "a.cpp", "b.cpp")
	p.run(t, Options{})

	second := p.run(t, Options{})
	assert.Empty(t, second.Stale, "nothing changed")
	assert.Empty(t, second.Indexed)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(p.dir, "b.cpp"), future, future))

	third := p.run(t, Options{})
	assert.Equal(t, []string{"b.cpp"}, third.Stale)
	assert.Equal(t, []string{"b.cpp"}, third.Indexed)
	assert.ElementsMatch(t, []string{"a.cpp:3:5", "b.cpp:3:5"}, p.sharedRefs(t))
}

func TestIndexerExcisesRemovedFiles(t *testing.T) {
	p := newTestProject(t, "a.cpp", "b.cpp")
	p.run(t, Options{})

	p.writeCompdb(t, "a.cpp")
	res := p.run(t, Options{})

	assert.Equal(t, []string{"b.cpp"}, res.Removed)
	assert.Equal(t, []string{"a.cpp:3:5"}, p.sharedRefs(t))

	st, err := store.Open(p.cfg.DBPath(p.dir), store.Options{ReadOnly: true})
	require.NoError(t, err)
	defer st.Close()
	has, err := st.Has("file:b.cpp")
	require.NoError(t, err)
	assert.False(t, has)
	stamps, err := store.LoadTimestamps(st)
	require.NoError(t, err)
	assert.NotContains(t, stamps, "b.cpp")
	assert.Contains(t, stamps, "a.cpp")
}

func TestIndexerDryRun(t *testing.T) {
	p := newTestProject(t, "a.cpp", "b.cpp")

	res := p.run(t, Options{DryRun: true})

	assert.Equal(t, []string{"a.cpp", "b.cpp"}, res.Stale)
	assert.Empty(t, res.Indexed)
	assert.NoFileExists(t, res.DBPath)
}

func TestIndexerSequential(t *testing.T) {
	p := newTestProject(t, "a.cpp", "b.cpp", "c.cpp")

	res := p.run(t, Options{Sequential: true})

	assert.Equal(t, []string{"a.cpp", "b.cpp", "c.cpp"}, res.Indexed)
	assert.Len(t, p.sharedRefs(t), 3)
}

func TestIndexerRetriesParseFailures(t *testing.T) {
	p := newTestProject(t, "a.cpp", "bad.cpp")
	provider := p.provider()
	provider.errs = map[string]error{filepath.Join(p.dir, "bad.cpp"): os.ErrInvalid}

	ix := NewIndexer(p.cfg, provider, discardLogger())
	first, err := ix.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad.cpp"}, first.Skipped)

	second, err := ix.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad.cpp"}, second.Stale)
}
