package models

import (
	"bytes"
	"encoding/json"
)

// FolderInfo is the listing of a directory: an object keyed by entry path.
// Keys keep the order in which they were added.
type FolderInfo struct {
	keys    []string
	entries map[string]*FileInfo
	Envelope
}

// NewFolderInfo returns an empty listing.
func NewFolderInfo() *FolderInfo {
	return &FolderInfo{entries: make(map[string]*FileInfo)}
}

// Add appends an entry under its own path. Adding a path twice replaces the
// entry but keeps its original position.
func (f *FolderInfo) Add(info *FileInfo) {
	if _, ok := f.entries[info.Path]; !ok {
		f.keys = append(f.keys, info.Path)
	}
	f.entries[info.Path] = info
}

// Len returns the number of entries.
func (f *FolderInfo) Len() int {
	return len(f.keys)
}

// Keys returns the entry paths in insertion order.
func (f *FolderInfo) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Get returns the entry stored under path.
func (f *FolderInfo) Get(path string) (*FileInfo, bool) {
	info, ok := f.entries[path]
	return info, ok
}

// MarshalJSON writes the entries as one object. A failed listing is written
// as the plain envelope.
func (f *FolderInfo) MarshalJSON() ([]byte, error) {
	if f.Failed() {
		return json.Marshal(f.Envelope)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(&buf, f.entries[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
