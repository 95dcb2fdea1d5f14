package services

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestCategorize_FourWay(t *testing.T) {
	discovered := map[string]string{
		"/r/same":    "h1",
		"/r/changed": "h2-new",
		"/r/new":     "h3",
	}
	recorded := map[string]string{
		"/r/same":    "h1",
		"/r/changed": "h2-old",
		"/r/gone":    "h4",
	}

	c := Categorize(discovered, recorded, nil)

	assert.Equal(t, []string{"/r/same"}, c.Skip)
	assert.Equal(t, []string{"/r/changed"}, c.Update)
	assert.Equal(t, []string{"/r/new"}, c.Add)
	assert.Equal(t, []string{"/r/gone"}, c.Delete)
	assert.Equal(t, 4, c.Total())

	cat, ok := c.Of("/r/gone")
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryDelete, cat)
	assert.Equal(t, 1, c.Counts()[domain.CategoryUpdate])
}

func TestCategorize_Empty(t *testing.T) {
	c := Categorize(nil, nil, nil)
	assert.Zero(t, c.Total())
}

func TestCategorize_UnreadableNeverDeleted(t *testing.T) {
	recorded := map[string]string{
		"/r/locked.txt":     "h1",
		"/r/private/a.txt":  "h2",
		"/r/private/b/c.md": "h3",
		"/r/gone.txt":       "h4",
	}
	unreadable := map[string]struct{}{
		"/r/locked.txt": {},
		"/r/private":    {},
	}

	c := Categorize(map[string]string{}, recorded, unreadable)

	assert.Equal(t, []string{"/r/gone.txt"}, c.Delete)
	assert.Empty(t, c.Skip)
}

func TestCategorize_SortedOutput(t *testing.T) {
	discovered := map[string]string{"/c": "1", "/a": "1", "/b": "1"}
	c := Categorize(discovered, nil, nil)
	assert.Equal(t, []string{"/a", "/b", "/c"}, c.Add)
}

// randomSets builds overlapping discovered and recorded sets.
func randomSets(r *rand.Rand) (map[string]string, map[string]string) {
	discovered := make(map[string]string)
	recorded := make(map[string]string)
	for i := 0; i < 200; i++ {
		path := fmt.Sprintf("/root/file-%03d", r.IntN(300))
		fp := fmt.Sprintf("fp-%d", r.IntN(3))
		if r.IntN(2) == 0 {
			discovered[path] = fp
		} else {
			recorded[path] = fp
		}
	}
	return discovered, recorded
}

func TestCategorize_PartitionProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		discovered, recorded := randomSets(r)
		c := Categorize(discovered, recorded, nil)

		seen := make(map[string]int)
		for _, set := range [][]string{c.Skip, c.Add, c.Update, c.Delete} {
			for _, p := range set {
				seen[p]++
			}
		}

		union := make(map[string]bool)
		for p := range discovered {
			union[p] = true
		}
		for p := range recorded {
			union[p] = true
		}

		require.Len(t, seen, len(union), "no omissions")
		for p, n := range seen {
			require.Equal(t, 1, n, "path %s in more than one category", p)
			require.True(t, union[p])
		}
		require.Equal(t, len(discovered), len(c.Skip)+len(c.Add)+len(c.Update))
	}
}

func TestCategorize_Idempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	discovered, recorded := randomSets(r)

	first := Categorize(discovered, recorded, nil)
	second := Categorize(discovered, recorded, nil)
	assert.Equal(t, first, second)

	// Apply Add, Update and Delete to the recorded set.
	for _, p := range append(append([]string{}, first.Add...), first.Update...) {
		recorded[p] = discovered[p]
	}
	for _, p := range first.Delete {
		delete(recorded, p)
	}

	next := Categorize(discovered, recorded, nil)
	assert.Empty(t, next.Add)
	assert.Empty(t, next.Update)
	assert.Empty(t, next.Delete)
	assert.Len(t, next.Skip, len(discovered))
}

func TestWithinRoots(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + "data" + sep + "docs"
	recorded := map[string]string{
		root + sep + "a.txt":            "1",
		root + sep + "sub" + sep + "b":  "2",
		root + "2" + sep + "c.txt":      "3",
		sep + "other" + sep + "d.txt":   "4",
		root:                            "5",
	}

	scoped := withinRoots(recorded, []string{root})

	assert.Len(t, scoped, 3)
	assert.Contains(t, scoped, root+sep+"a.txt")
	assert.Contains(t, scoped, root+sep+"sub"+sep+"b")
	assert.Contains(t, scoped, root)
	assert.NotContains(t, scoped, root+"2"+sep+"c.txt")
}
