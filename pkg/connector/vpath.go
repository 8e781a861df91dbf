package connector

import (
	"strings"
)

// Separator is the path separator of logical paths.
const Separator = "/"

// VirtualPath is the decomposition of a logical path. Directories always end
// with the separator, both in FullPath and Folder; files never do.
type VirtualPath struct {
	FullPath string
	// Folder is the parent directory, ending with the separator.
	Folder string
	Name   string
	// Extension is the lower-case text after the last dot of a file name,
	// empty for directories and files without one.
	Extension   string
	IsDirectory bool
}

// ParseVirtualPath decomposes p. A path ending with the separator is always a
// directory; isDir forces the directory reading otherwise.
func ParseVirtualPath(p string, isDir bool) VirtualPath {
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	if strings.HasSuffix(p, Separator) {
		isDir = true
	}

	vp := VirtualPath{IsDirectory: isDir}
	trimmed := p
	if isDir {
		if !strings.HasSuffix(p, Separator) {
			p += Separator
		}
		trimmed = strings.TrimRight(p, Separator)
	}
	vp.FullPath = p

	idx := strings.LastIndex(trimmed, Separator)
	if idx < 0 {
		// root: trimmed is empty
		vp.Folder = Separator
		return vp
	}
	vp.Name = trimmed[idx+1:]
	vp.Folder = trimmed[:idx+1]
	if isDir {
		// a directory's own folder is its parent
		return vp
	}
	if dot := strings.LastIndex(vp.Name, "."); dot >= 0 {
		vp.Extension = strings.ToLower(vp.Name[dot+1:])
	}
	return vp
}

// IsRoot reports whether the path is the root directory.
func (vp VirtualPath) IsRoot() bool {
	return vp.IsDirectory && vp.Name == ""
}

// Child returns the path of an entry named name inside the directory vp.
func (vp VirtualPath) Child(name string, isDir bool) VirtualPath {
	return ParseVirtualPath(vp.dirPath()+name, isDir)
}

// Sibling returns the path of an entry named name next to vp.
func (vp VirtualPath) Sibling(name string, isDir bool) VirtualPath {
	return ParseVirtualPath(vp.Folder+name, isDir)
}

func (vp VirtualPath) dirPath() string {
	if vp.IsDirectory {
		return vp.FullPath
	}
	return vp.FullPath + Separator
}

func (vp VirtualPath) String() string {
	return vp.FullPath
}
