package samples

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameDisambiguatesInRowOrder(t *testing.T) {
	a := NewAllocator("submission")

	got := []string{
		a.Name("S1"),
		a.Name("S2"),
		a.Name("S1"),
		a.Name("S1"),
		a.Name("S2"),
	}
	assert.Equal(t, []string{"S1", "S2", "S1_2", "S1_3", "S2_2"}, got)
}

func TestNameNeverReissuesLiteralSuffix(t *testing.T) {
	a := NewAllocator("submission")

	got := []string{a.Name("A"), a.Name("A"), a.Name("A_2")}
	assert.Equal(t, []string{"A", "A_2", "A_2_2"}, got)

	b := NewAllocator("submission")
	got = []string{b.Name("A"), b.Name("A_2"), b.Name("A"), b.Name("A")}
	assert.Equal(t, []string{"A", "A_2", "A_3", "A_4"}, got)
}

func TestAllocatorsAreIndependent(t *testing.T) {
	first := NewAllocator("a")
	second := NewAllocator("b")

	assert.Equal(t, "S1", first.Name("S1"))
	assert.Equal(t, "S1", second.Name("S1"), "counters never leak between runs")
	assert.Equal(t, "S1_2", first.Name("S1"))
}

func TestAllocateCreatesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "submission")
	a := NewAllocator(root)

	seen := map[string]bool{}
	for _, id := range []string{"S1", "S1", "S2", "S1"} {
		dir, err := a.Allocate(id)
		require.NoError(t, err)
		assert.False(t, seen[dir], "directory %s handed out twice", dir)
		seen[dir] = true

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.True(t, seen[filepath.Join(root, "S1_3")])
}

func TestAllocateRejectsUnsafeIDs(t *testing.T) {
	a := NewAllocator(t.TempDir())
	for _, id := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
		_, err := a.Allocate(id)
		assert.Error(t, err, "id %q", id)
	}
}
