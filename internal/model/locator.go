package model

import "sort"

// PageLocator maps a page index (0 = oldest page ever created) to the
// storage name of that page.
type PageLocator map[int]string

// Count returns the number of known pages.
func (l PageLocator) Count() int {
	return len(l)
}

// Highest returns the highest known page index. An empty locator yields -1.
func (l PageLocator) Highest() int {
	highest := -1
	for i := range l {
		if i > highest {
			highest = i
		}
	}
	return highest
}

// Lookup returns the storage name for index.
func (l PageLocator) Lookup(index int) (string, bool) {
	name, ok := l[index]
	return name, ok
}

// Add registers name at index unless the index is already present.
// It reports whether the entry was inserted.
func (l PageLocator) Add(index int, name string) bool {
	if _, exists := l[index]; exists {
		return false
	}
	l[index] = name
	return true
}

// Indices returns the known page indices in ascending order.
func (l PageLocator) Indices() []int {
	out := make([]int, 0, len(l))
	for i := range l {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Gaps returns the indices missing from the contiguous range [0, max].
func (l PageLocator) Gaps() []int {
	indices := l.Indices()
	if len(indices) == 0 {
		return nil
	}
	var gaps []int
	next := 0
	for _, i := range indices {
		for ; next < i; next++ {
			gaps = append(gaps, next)
		}
		next = i + 1
	}
	return gaps
}
