package domain

// FileCategory is the outcome of comparing one path against stored state.
// It is computed fresh every run and never persisted.
type FileCategory int

// File categories.
const (
	// CategorySkip means the path is stored with an identical fingerprint.
	CategorySkip FileCategory = iota

	// CategoryAdd means the path is on disk but not in the store.
	CategoryAdd

	// CategoryUpdate means the path is stored with a different fingerprint.
	CategoryUpdate

	// CategoryDelete means the path is stored but no longer on disk.
	CategoryDelete
)

// String returns the category name.
func (c FileCategory) String() string {
	switch c {
	case CategorySkip:
		return "skip"
	case CategoryAdd:
		return "add"
	case CategoryUpdate:
		return "update"
	case CategoryDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Categorization partitions every known path into exactly one category.
// Each slice is sorted.
type Categorization struct {
	Skip   []string
	Add    []string
	Update []string
	Delete []string
}

// Total returns the number of categorised paths.
func (c Categorization) Total() int {
	return len(c.Skip) + len(c.Add) + len(c.Update) + len(c.Delete)
}

// Of returns the category of path, and false if the path is unknown.
func (c Categorization) Of(path string) (FileCategory, bool) {
	for _, set := range []struct {
		cat   FileCategory
		paths []string
	}{
		{CategorySkip, c.Skip},
		{CategoryAdd, c.Add},
		{CategoryUpdate, c.Update},
		{CategoryDelete, c.Delete},
	} {
		for _, p := range set.paths {
			if p == path {
				return set.cat, true
			}
		}
	}
	return CategorySkip, false
}

// Counts returns the number of paths in each category.
func (c Categorization) Counts() map[FileCategory]int {
	return map[FileCategory]int{
		CategorySkip:   len(c.Skip),
		CategoryAdd:    len(c.Add),
		CategoryUpdate: len(c.Update),
		CategoryDelete: len(c.Delete),
	}
}
