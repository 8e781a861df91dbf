package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/denysvitali/fm-connector/internal/models"
	"github.com/denysvitali/fm-connector/pkg/metrics"
)

// Result is the outcome of a dispatched action, ready to be written.
type Result interface {
	Write(w http.ResponseWriter) error
}

// JSONResult is an envelope response. Upload and replace responses are
// wrapped in a textarea element and sent as HTML.
type JSONResult struct {
	Action Action
	Body   models.Response
}

// Write implements Result. The status is always 200: the widget reads the
// outcome from the envelope.
func (r *JSONResult) Write(w http.ResponseWriter) error {
	body, err := Marshal(r.Body)
	if err != nil {
		return err
	}
	ct := r.Action.ContentType()
	if ct == ContentHTML {
		body = wrapTextarea(body)
	} else {
		ct = ContentJSON
	}
	w.Header().Set("Content-Type", ct.MIME())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// StreamResult is a raw byte response of download, thumbnail and preview.
// Length is omitted from the headers when negative.
type StreamResult struct {
	Body        io.ReadCloser
	Length      int64
	ContentType string
	Disposition string
}

// Write implements Result and closes the body.
func (r *StreamResult) Write(w http.ResponseWriter) error {
	defer r.Body.Close()

	h := w.Header()
	h.Set("Content-Type", r.ContentType)
	if r.Length >= 0 {
		h.Set("Content-Length", strconv.FormatInt(r.Length, 10))
	}
	if r.Disposition != "" {
		h.Set("Content-Disposition", r.Disposition)
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, r.Body)
	metrics.RecordDownload(n, err == nil)
	if err != nil {
		return fmt.Errorf("stream response: %w", err)
	}
	return nil
}

// Marshal encodes v in the connector's JSON dialect: no HTML escaping, and
// every forward slash written as \/.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	// a slash can only occur inside a JSON string
	return bytes.ReplaceAll(out, []byte("/"), []byte(`\/`)), nil
}

func wrapTextarea(body []byte) []byte {
	out := make([]byte, 0, len(body)+len("<textarea></textarea>"))
	out = append(out, "<textarea>"...)
	out = append(out, body...)
	return append(out, "</textarea>"...)
}
