// Package pagination implements keyset (cursor) pages.
//
// A page query fetches size+1 rows ordered by the cursor key; the extra row
// only signals that another page exists and is never returned.
package pagination

// Page is one slice of a keyset-ordered listing. NextCursor is the key of the
// last returned item, or nil when the listing is exhausted.
type Page[T any] struct {
	Items      []T    `json:"items"`
	HasNext    bool   `json:"has_next"`
	NextCursor *int64 `json:"next_cursor"`
}

// Size clamps a requested page size: non-positive means defSize, and
// anything above maxSize is cut to maxSize.
func Size(requested, defSize, maxSize int) int {
	if defSize <= 0 {
		defSize = 10
	}
	if maxSize < defSize {
		maxSize = defSize
	}
	switch {
	case requested <= 0:
		return defSize
	case requested > maxSize:
		return maxSize
	default:
		return requested
	}
}

// Cut builds a Page from rows fetched with limit size+1.
func Cut[T any](rows []T, size int, key func(T) int64) Page[T] {
	p := Page[T]{Items: rows}
	if p.Items == nil {
		p.Items = []T{}
	}
	if len(rows) > size {
		p.Items = rows[:size]
		p.HasNext = true
	}
	if p.HasNext && size > 0 {
		next := key(p.Items[size-1])
		p.NextCursor = &next
	}
	return p
}
