package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, locations ...string) *Table[string] {
	t.Helper()
	b := NewBuilder[string]()
	for _, loc := range locations {
		require.NoError(t, b.Add(loc, loc))
	}
	return b.Build()
}

func TestResolve(t *testing.T) {
	table := build(t, "/a", "/a/b", "/static", "/x/y/z")

	tests := []struct {
		name         string
		path         string
		wantLocation string
		wantValue    bool
	}{
		{"exact", "/a", "/a", true},
		{"deeper than registered", "/a/b/c", "/a/b", true},
		{"sibling falls back to parent", "/a/q", "/a", true},
		{"trailing slash", "/static/", "/static", true},
		{"repeated slashes", "//static//index.html", "/static", true},
		{"no match stays at root", "/missing", "/", false},
		{"root", "/", "/", false},
		{"intermediate node without value", "/x/y/other", "/x/y", false},
		{"full intermediate chain", "/x/y/z/w", "/x/y/z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := table.Resolve(tt.path)
			assert.Equal(t, tt.wantLocation, m.Location)
			assert.Equal(t, tt.wantValue, m.HasValue)
			if tt.wantValue {
				assert.Equal(t, tt.wantLocation, m.Value)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	table := build(t, "/a", "/a/b")
	first := table.Resolve("/a/b/c/d")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, table.Resolve("/a/b/c/d"))
	}
}

func TestRootValue(t *testing.T) {
	table := build(t, "/")
	m := table.Resolve("/anything")
	assert.True(t, m.HasValue)
	assert.Equal(t, "/", m.Location)
}

func TestDuplicateLocation(t *testing.T) {
	b := NewBuilder[int]()
	require.NoError(t, b.Add("/a/b", 1))
	err := b.Add("a//b/", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/a/b")
}

func TestAddAfterBuild(t *testing.T) {
	b := NewBuilder[int]()
	b.Build()
	assert.Error(t, b.Add("/a", 1))
}

func TestWalkSorted(t *testing.T) {
	table := build(t, "/z", "/a/b", "/a", "/m/n/o")
	assert.Equal(t, 4, table.Len())

	var seen []string
	require.NoError(t, table.Walk(func(loc, v string) error {
		seen = append(seen, loc)
		return nil
	}))
	assert.Equal(t, []string{"/a", "/a/b", "/m/n/o", "/z"}, seen)
}

func TestWalkStops(t *testing.T) {
	table := build(t, "/a", "/b")
	stop := errors.New("stop")
	calls := 0
	err := table.Walk(func(string, string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestSplit(t *testing.T) {
	assert.Empty(t, Split("/"))
	assert.Equal(t, []string{"a", "b"}, Split("//a///b/"))
}
