package connector

import (
	"strconv"
	"strings"
)

// SanitizeName replaces every character that is unsafe in a file name
// (\ / | : ? * " < > and control characters) with an underscore.
func SanitizeName(name string) string {
	if name == "" {
		return name
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '|', ':', '?', '*', '"', '<', '>':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)
}

// UniqueName returns candidate if it is not in existing. Otherwise it probes
// base_1.ext, base_2.ext, ... and returns the first free name.
func UniqueName(existing map[string]bool, candidate string) string {
	if !existing[candidate] {
		return candidate
	}
	base, ext := candidate, ""
	if dot := strings.LastIndex(candidate, "."); dot > 0 {
		base, ext = candidate[:dot], candidate[dot:]
	}
	// at most len(existing) probes can collide
	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i) + ext
		if !existing[name] {
			return name
		}
	}
}

// baseName returns the last element of a client supplied file name, which
// may carry a Windows or Unix path.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
