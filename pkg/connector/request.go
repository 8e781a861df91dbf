package connector

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// maxMemory is the part of a multipart body kept in memory; the rest spills
// to temporary files.
const maxMemory = 32 << 20

// RequestContext is the per-request state of the dispatch path. It is built
// once from the incoming request and never modified afterwards.
type RequestContext struct {
	action  Action
	params  map[string]string
	files   map[string][]*multipart.FileHeader
	locale  language.Tag
	request *http.Request
}

// NewRequestContext builds a context for an already resolved action.
func NewRequestContext(r *http.Request, action Action, params map[string]string, locale language.Tag) *RequestContext {
	rc := &RequestContext{
		action:  action,
		params:  make(map[string]string, len(params)),
		locale:  locale,
		request: r,
	}
	for k, v := range params {
		rc.params[k] = v
	}
	if r != nil && r.MultipartForm != nil {
		rc.files = r.MultipartForm.File
	}
	return rc
}

// Action returns the resolved action.
func (rc *RequestContext) Action() Action {
	return rc.action
}

// Locale returns the negotiated message language.
func (rc *RequestContext) Locale() language.Tag {
	return rc.locale
}

// Request returns the underlying HTTP request.
func (rc *RequestContext) Request() *http.Request {
	return rc.request
}

// Context returns the request's context.
func (rc *RequestContext) Context() context.Context {
	if rc.request == nil {
		return context.Background()
	}
	return rc.request.Context()
}

// Param returns a request parameter, or "" when absent.
func (rc *RequestContext) Param(name string) string {
	return rc.params[name]
}

// HasParam reports whether a parameter was sent.
func (rc *RequestContext) HasParam(name string) bool {
	_, ok := rc.params[name]
	return ok
}

// BoolParam parses a boolean parameter; absent or malformed values are false.
func (rc *RequestContext) BoolParam(name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(rc.params[name]))
	return err == nil && v
}

// File returns the uploaded file sent in the multipart field name.
func (rc *RequestContext) File(name string) (*multipart.FileHeader, error) {
	if fhs := rc.files[name]; len(fhs) > 0 {
		return fhs[0], nil
	}
	return nil, fmt.Errorf("missing file field %s: %w", name, http.ErrMissingFile)
}

// readParams collects query and form parameters of r. Form values win over
// query values with the same name. POST bodies are parsed, multipart ones
// included, so the mode may arrive as a form field.
func readParams(r *http.Request) (map[string]string, error) {
	if r.Method == http.MethodPost {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("malformed request body: %v: %w", err, ErrMode)
		}
	}

	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params, nil
}
