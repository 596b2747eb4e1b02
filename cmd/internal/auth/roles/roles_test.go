package roles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten_Leaves(t *testing.T) {
	g := Graph{"viewer": nil}

	assert.Equal(t, []string{"viewer"}, Flatten(g, "viewer").Sorted())
	assert.Equal(t, []string{"ghost"}, Flatten(g, "ghost").Sorted(), "missing role resolves to itself")
}

func TestFlatten_Transitive(t *testing.T) {
	g := Graph{
		"root":           {"accountmanager", "editor"},
		"editor":         {"viewer"},
		"accountmanager": nil,
		"viewer":         nil,
	}

	got := Flatten(g, "root")
	assert.Equal(t, []string{"accountmanager", "editor", "root", "viewer"}, got.Sorted())
}

func TestFlatten_CycleTerminates(t *testing.T) {
	g := Graph{
		"a": {"b"},
		"b": {"a", "c"},
		"c": {"a"},
	}

	assert.Equal(t, []string{"a", "b", "c"}, Flatten(g, "a").Sorted())
	assert.Equal(t, []string{"a", "b", "c"}, Flatten(g, "b").Sorted())
	assert.Equal(t, []string{"a", "b", "c"}, Flatten(g, "c").Sorted())
}

func TestFlatten_SelfLoop(t *testing.T) {
	g := Graph{"a": {"a"}}
	assert.Equal(t, []string{"a"}, Flatten(g, "a").Sorted())
}

func TestFlatten_DiamondSharesVisited(t *testing.T) {
	g := Graph{
		"top":   {"left", "right"},
		"left":  {"base"},
		"right": {"base"},
		"base":  {"floor"},
	}

	assert.Equal(t, []string{"base", "floor", "left", "right", "top"}, Flatten(g, "top").Sorted())
}

func TestResolve_Idempotent(t *testing.T) {
	g := Graph{
		"root":   {"admin"},
		"admin":  {"user", "root"},
		"user":   nil,
		"orphan": {"undeclared"},
	}

	first := Resolve(g)
	second := Resolve(first.Graph())

	require.Equal(t, first.Roles(), second.Roles())
	for _, role := range first.Roles() {
		a, _ := first.Capabilities(role)
		b, _ := second.Capabilities(role)
		assert.Equal(t, a.Sorted(), b.Sorted(), "role %s", role)
	}
}

func TestTable_Capabilities(t *testing.T) {
	tbl := Resolve(Graph{"root": {"accountmanager"}, "accountmanager": nil})

	caps, ok := tbl.Capabilities("root")
	require.True(t, ok)
	assert.True(t, caps.Has("accountmanager"))
	assert.True(t, caps.Has("root"))

	_, ok = tbl.Capabilities("nobody")
	assert.False(t, ok)

	assert.Equal(t, []string{"accountmanager", "root"}, tbl.Roles())

	var nilTable *Table
	_, ok = nilTable.Capabilities("root")
	assert.False(t, ok)
}

func TestHolder_SwapIsAtomic(t *testing.T) {
	h := NewHolder()
	assert.Empty(t, h.Load().Roles())

	a := Resolve(Graph{"a": nil})
	b := Resolve(Graph{"b": nil})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					h.Store(a)
				} else {
					h.Store(b)
				}
				roles := h.Load().Roles()
				if len(roles) != 1 {
					t.Errorf("observed partial table: %v", roles)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	h.Store(nil)
	assert.Empty(t, h.Load().Roles())
}
