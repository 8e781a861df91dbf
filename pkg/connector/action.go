// Package connector implements the file manager connector protocol: it turns
// an HTTP request into one of a fixed set of actions, runs the action against
// a storage backend and writes the response in the exact shape the frontend
// widget parses.
package connector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMode is returned for a missing, unknown or method-incompatible mode.
var ErrMode = errors.New("mode error")

// Action is one of the operations the connector dispatches.
type Action int

const (
	ActionUnknown Action = iota
	ActionInfo
	ActionFolder
	ActionRename
	ActionDelete
	ActionCreateFolder
	ActionUpload
	ActionReplace
	ActionDownload
	ActionThumbnail
	ActionPreview
	ActionEditFile
	ActionSaveFile
)

// ContentType is the response type an action produces. Binary actions
// stream their own content type.
type ContentType int

const (
	ContentNone ContentType = iota
	ContentJSON
	ContentHTML
)

// MIME returns the header value for the content type.
func (c ContentType) MIME() string {
	switch c {
	case ContentJSON:
		return "application/json; charset=utf-8"
	case ContentHTML:
		return "text/html; charset=utf-8"
	default:
		return ""
	}
}

type actionDef struct {
	param       string
	contentType ContentType
	method      string
}

var actions = map[Action]actionDef{
	ActionInfo:         {"getinfo", ContentJSON, http.MethodGet},
	ActionFolder:       {"getfolder", ContentJSON, http.MethodGet},
	ActionRename:       {"rename", ContentJSON, http.MethodGet},
	ActionDelete:       {"delete", ContentJSON, http.MethodGet},
	ActionCreateFolder: {"addfolder", ContentJSON, http.MethodGet},
	ActionUpload:       {"add", ContentHTML, http.MethodPost},
	ActionReplace:      {"replace", ContentHTML, http.MethodPost},
	ActionDownload:     {"download", ContentNone, http.MethodGet},
	ActionThumbnail:    {"thumbnail", ContentNone, http.MethodGet},
	ActionPreview:      {"preview", ContentNone, http.MethodGet},
	ActionEditFile:     {"editfile", ContentJSON, http.MethodGet},
	ActionSaveFile:     {"savefile", ContentJSON, http.MethodPost},
}

// Param returns the value of the mode request parameter selecting a.
func (a Action) Param() string {
	return actions[a].param
}

// ContentType returns the response type of a.
func (a Action) ContentType() ContentType {
	if def, ok := actions[a]; ok {
		return def.contentType
	}
	return ContentJSON
}

// Method returns the HTTP method a is reachable with.
func (a Action) Method() string {
	return actions[a].method
}

// IsBinary reports whether a streams raw bytes instead of an envelope.
func (a Action) IsBinary() bool {
	return a.ContentType() == ContentNone
}

func (a Action) String() string {
	if p := a.Param(); p != "" {
		return p
	}
	return "unknown"
}

// ResolveAction maps a mode parameter and HTTP method to an action. The mode
// is matched case-insensitively.
func ResolveAction(mode, method string) (Action, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return ActionUnknown, fmt.Errorf("missing mode: %w", ErrMode)
	}
	for a, def := range actions {
		if !strings.EqualFold(def.param, mode) {
			continue
		}
		if !strings.EqualFold(def.method, method) {
			return ActionUnknown, fmt.Errorf("mode %s not allowed for %s: %w", mode, method, ErrMode)
		}
		return a, nil
	}
	return ActionUnknown, fmt.Errorf("unknown mode %s: %w", mode, ErrMode)
}
