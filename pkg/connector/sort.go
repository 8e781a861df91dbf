package connector

import (
	"sort"
	"strings"

	"github.com/denysvitali/fm-connector/pkg/storage"
)

// SortMode selects the order of a folder listing.
type SortMode int

const (
	SortDefault SortMode = iota
	SortNameAsc
	SortNameDesc
	SortTypeAsc
	SortTypeDesc
	SortModifiedAsc
	SortModifiedDesc
)

var sortModes = map[string]SortMode{
	"default":       SortDefault,
	"name_asc":      SortNameAsc,
	"name_desc":     SortNameDesc,
	"type_asc":      SortTypeAsc,
	"type_desc":     SortTypeDesc,
	"modified_asc":  SortModifiedAsc,
	"modified_desc": SortModifiedDesc,
}

// ParseSortMode maps a configuration or request value such as "NAME_ASC" to
// a SortMode. Unknown values yield SortDefault and false.
func ParseSortMode(s string) (SortMode, bool) {
	m, ok := sortModes[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// SortEntries orders entries in place.
//
// The name and modification modes are inverted with respect to their names:
// NameAsc yields descending names and NameDesc ascending ones.
//
// Default, TypeAsc and TypeDesc split directories and files, sort each part
// by descending name and concatenate them: files first for Default and
// TypeDesc, directories first for TypeAsc.
func SortEntries(entries []storage.Entry, mode SortMode) {
	if len(entries) == 0 {
		return
	}
	switch mode {
	case SortNameAsc:
		sort.SliceStable(entries, func(i, j int) bool {
			return compareNames(entries[j], entries[i]) < 0
		})
	case SortNameDesc:
		sort.SliceStable(entries, func(i, j int) bool {
			return compareNames(entries[i], entries[j]) < 0
		})
	case SortModifiedAsc:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[j].Modified.Before(entries[i].Modified)
		})
	case SortModifiedDesc:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Modified.Before(entries[j].Modified)
		})
	default:
		var dirs, files []storage.Entry
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, e)
			} else {
				files = append(files, e)
			}
		}
		byNameDesc := func(part []storage.Entry) {
			sort.SliceStable(part, func(i, j int) bool {
				return compareNames(part[j], part[i]) < 0
			})
		}
		byNameDesc(dirs)
		byNameDesc(files)

		first, second := files, dirs
		if mode == SortTypeAsc {
			first, second = dirs, files
		}
		n := copy(entries, first)
		copy(entries[n:], second)
	}
}

func compareNames(a, b storage.Entry) int {
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}
