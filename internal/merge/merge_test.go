package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_UnionsListsAndAddsKeys(t *testing.T) {
	d1 := map[string]any{"file1": map[string]any{
		"1:2": map[string]any{"refs": []any{1}},
		"3:4": map[string]any{"refs": []any{2, 3}},
	}}
	d2 := map[string]any{"file1": map[string]any{
		"1:2": map[string]any{"refs": []any{2, 3}},
		"5:6": map[string]any{"refs": []any{4, 5}},
	}}

	Merge(d1, d2)

	want := map[string]any{"file1": map[string]any{
		"1:2": map[string]any{"refs": []any{1, 2, 3}},
		"3:4": map[string]any{"refs": []any{2, 3}},
		"5:6": map[string]any{"refs": []any{4, 5}},
	}}
	assert.Equal(t, want, d1)
}

func TestMerge_NoDuplicateOnOverlap(t *testing.T) {
	d1 := map[string]any{"f": map[string]any{"1:2": map[string]any{"refs": []any{1}}}}
	d2 := map[string]any{"f": map[string]any{"1:2": map[string]any{"refs": []any{1, 2}}}}

	Merge(d1, d2)

	assert.Equal(t, map[string]any{"f": map[string]any{"1:2": map[string]any{"refs": []any{1, 2}}}}, d1)
}

func TestMerge_IdenticalIsNoop(t *testing.T) {
	build := func() map[string]any {
		return map[string]any{"file1": map[string]any{
			"1:2": map[string]any{"kind": "FUNCTION_DECL", "refs": []any{1}},
			"3:4": map[string]any{"refs": []any{2, 3}},
		}}
	}
	d1, d2 := build(), build()

	Merge(d1, d2)

	assert.Equal(t, build(), d1)
}

func TestMerge_ScalarsLastWriteWins(t *testing.T) {
	d1 := map[string]any{"s": map[string]any{"kind": "CLASS_DECL", "spell": "Base"}}
	d2 := map[string]any{"s": map[string]any{"kind": "CXX_BASE_SPECIFIER"}}

	Merge(d1, d2)

	assert.Equal(t, "CXX_BASE_SPECIFIER", d1["s"].(map[string]any)["kind"])
	assert.Equal(t, "Base", d1["s"].(map[string]any)["spell"])
}

func TestMerge_MismatchedTypesReplace(t *testing.T) {
	d1 := map[string]any{"k": []any{"a"}}
	d2 := map[string]any{"k": map[string]any{"x": "y"}}

	Merge(d1, d2)

	assert.Equal(t, map[string]any{"x": "y"}, d1["k"])
}

func TestMerge_DoesNotAliasSource(t *testing.T) {
	src := map[string]any{"k": map[string]any{"refs": []any{"a"}}}
	dst := map[string]any{}

	Merge(dst, src)
	src["k"].(map[string]any)["refs"] = append(src["k"].(map[string]any)["refs"].([]any), "b")

	assert.Equal(t, []any{"a"}, dst["k"].(map[string]any)["refs"])
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := func() map[string]any {
		return map[string]any{"usr:S": map[string]any{"refs": []any{"a.cpp:1:1"}, "decl": "a.h:1:1"}}
	}
	b := func() map[string]any {
		return map[string]any{"usr:S": map[string]any{"refs": []any{"b.cpp:2:2"}, "defi": "b.cpp:1:1"}}
	}
	c := func() map[string]any {
		return map[string]any{"usr:T": map[string]any{"refs": []any{}}, "usr:S": map[string]any{"refs": []any{"a.cpp:1:1"}}}
	}

	abc := map[string]any{}
	Merge(abc, a())
	Merge(abc, b())
	Merge(abc, c())

	cba := map[string]any{}
	Merge(cba, c())
	Merge(cba, b())
	Merge(cba, a())

	s1 := abc["usr:S"].(map[string]any)
	s2 := cba["usr:S"].(map[string]any)
	assert.ElementsMatch(t, s1["refs"], s2["refs"])
	assert.Equal(t, s1["decl"], s2["decl"])
	assert.Equal(t, s1["defi"], s2["defi"])
	assert.Contains(t, cba, "usr:T")
	assert.Contains(t, abc, "usr:T")
}

type failingTarget struct{ Map }

func (f failingTarget) Put(string, any) error { return errors.New("disk full") }

func TestInto_MergesIntoTarget(t *testing.T) {
	dst := Map{"f": map[string]any{"1:2": map[string]any{"refs": []any{"x"}}}}
	err := Into(dst, map[string]any{
		"f": map[string]any{"1:2": map[string]any{"refs": []any{"y"}}},
		"g": "new",
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"x", "y"}, dst["f"].(map[string]any)["1:2"].(map[string]any)["refs"])
	assert.Equal(t, "new", dst["g"])
}

func TestInto_PropagatesWriteErrors(t *testing.T) {
	err := Into(failingTarget{Map{}}, map[string]any{"k": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
