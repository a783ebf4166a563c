package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/abramin/xreflens/internal/model"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), ".xreflens", "index.db")
	st, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st, dbPath
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()

	st, err := OpenProject(tmpDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	dbPath := filepath.Join(tmpDir, ".xreflens", "index.db")
	if st.DBPath() != dbPath {
		t.Errorf("expected db path %s, got %s", dbPath, st.DBPath())
	}
	if err := st.Close(); err != nil {
		t.Errorf("failed to close store: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("index.db was not created")
	}
	if err := st.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestRoundTripAcrossReopen(t *testing.T) {
	st, dbPath := openTemp(t)

	value := map[string]any{
		"decl":  "a.h:3:7",
		"refs":  []any{"a.cpp:10:3", "b.cpp:4:1"},
		"count": float64(2),
	}
	if err := st.Set("usr:c:@S@A", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Set("other", "kept"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, ok, err := st.Get("usr:c:@S@A")
	if err != nil || !ok {
		t.Fatalf("expected stored value, ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, value) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, value)
	}
	if has, _ := st.Has("other"); !has {
		t.Error("untouched key lost across reopen")
	}
}

func TestReadsSeePendingWrites(t *testing.T) {
	st, _ := openTemp(t)
	defer st.Close()

	if err := st.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := st.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected buffered value, got %v ok=%v err=%v", v, ok, err)
	}

	var count int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected nothing flushed before Sync, found %d rows", count)
	}

	if err := st.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after Sync, found %d", count)
	}
}

func TestSetNormalizesTypedValues(t *testing.T) {
	st, _ := openTemp(t)
	defer st.Close()

	sym := &model.Symbol{Kind: model.KindClassDecl, Spell: "A", Refs: []string{"a.cpp:1:1"}}
	if err := st.Set(model.SymbolKey("c:@S@A"), sym); err != nil {
		t.Fatal(err)
	}
	v, _, _ := st.Get(model.SymbolKey("c:@S@A"))
	if _, ok := v.(map[string]any); !ok {
		t.Fatalf("expected tree form, got %T", v)
	}

	var back model.Symbol
	if ok, err := st.Decode(model.SymbolKey("c:@S@A"), &back); err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(&back, sym) {
		t.Errorf("decode mismatch: %+v", back)
	}
}

func TestDeleteKeepsSiblings(t *testing.T) {
	st, dbPath := openTemp(t)

	for _, k := range []string{"file:a.cpp", "file:b.cpp", "usr:x"} {
		if err := st.Set(k, map[string]any{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete("file:a.cpp"); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	keys, err := st.Keys("")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"file:b.cpp", "usr:x"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("expected keys %v, got %v", want, keys)
	}
}

func TestKeysMergesPendingAndDeleted(t *testing.T) {
	st, _ := openTemp(t)
	defer st.Close()

	st.Set("usr:b", "1")
	st.Set("usr:a", "1")
	st.Set("file:x", "1")
	if err := st.Sync(); err != nil {
		t.Fatal(err)
	}
	st.Delete("usr:b")
	st.Set("usr:c", "1")

	keys, err := st.Keys("usr:")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"usr:a", "usr:c"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestKeysPrefixIsLiteral(t *testing.T) {
	st, _ := openTemp(t)
	defer st.Close()

	st.Set("file:a_b.cpp", "1")
	st.Set("file:axb.cpp", "1")
	st.Sync()

	keys, err := st.Keys("file:a_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "file:a_b.cpp" {
		t.Errorf("prefix must not act as a LIKE pattern, got %v", keys)
	}
}

func TestUpdateMergesWithoutDroppingKeys(t *testing.T) {
	st, _ := openTemp(t)
	defer st.Close()

	if err := st.Set("usr:f", map[string]any{
		"decl": "a.h:1:1",
		"refs": []any{"a.cpp:2:2"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.Sync(); err != nil {
		t.Fatal(err)
	}

	err := st.Update(map[string]any{
		"usr:f": map[string]any{
			"defi": "a.cpp:5:1",
			"refs": []any{"a.cpp:2:2", "b.cpp:9:4"},
		},
		"usr:g": map[string]any{"kind": "FUNCTION_DECL"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _, _ := st.Get("usr:f")
	want := map[string]any{
		"decl": "a.h:1:1",
		"defi": "a.cpp:5:1",
		"refs": []any{"a.cpp:2:2", "b.cpp:9:4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge mismatch:\n got %#v\nwant %#v", got, want)
	}
	if has, _ := st.Has("usr:g"); !has {
		t.Error("expected new key from update")
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	st, dbPath := openTemp(t)
	st.Set("k", "v")
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(dbPath, Options{ReadOnly: true})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer ro.Close()

	if v, ok, err := ro.Get("k"); err != nil || !ok || v != "v" {
		t.Errorf("expected readable value, got %v ok=%v err=%v", v, ok, err)
	}
	if err := ro.Set("k", "w"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Set, got %v", err)
	}
	if err := ro.Delete("k"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Delete, got %v", err)
	}
	if err := ro.SetMetadata("a", "b"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from SetMetadata, got %v", err)
	}
}

func TestReadOnlyRequiresExistingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), Options{ReadOnly: true})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	st, _ := openTemp(t)
	st.Close()

	if _, _, err := st.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := st.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCloseAfterFailedSync(t *testing.T) {
	st, _ := openTemp(t)
	if err := st.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	// Pull the database out from under the pending write.
	st.DB().Close()

	if err := st.Close(); err == nil {
		t.Fatal("expected the failed flush to be reported")
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, _, err := st.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMetadataAndStats(t *testing.T) {
	st, dbPath := openTemp(t)
	defer st.Close()

	idx := model.New("/proj")
	idx.LocationAt("a.cpp", "1:1").USR = "c:@F@f#"
	idx.SymbolFor("c:@F@f#").Defi = "a.cpp:1:1"
	idx.Timestamps["a.cpp"] = time.Now()
	if err := SaveIndex(st, idx); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := st.SetMetadata("indexed_at", now.Format(time.RFC3339)); err != nil {
		t.Fatal(err)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.FileCount != 1 || stats.SymbolCount != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.EntryCount != 4 {
		t.Errorf("expected 4 entries (basedir, files, file, usr), got %d", stats.EntryCount)
	}
	if stats.BaseDir != "/proj" {
		t.Errorf("expected base dir /proj, got %q", stats.BaseDir)
	}
	if !stats.IndexedAt.Equal(now) {
		t.Errorf("expected indexed_at %v, got %v", now, stats.IndexedAt)
	}

	if err := st.WriteIndexJSON(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(dbPath), "index.json"))
	if err != nil {
		t.Fatalf("index.json not written: %v", err)
	}
	var meta IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 1 || meta.Files[0] != "a.cpp" {
		t.Errorf("unexpected files in index.json: %v", meta.Files)
	}
}
