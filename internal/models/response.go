package models

// Envelope carries the two fields present in every JSON response of the
// connector protocol.
type Envelope struct {
	Error string `json:"Error"`
	Code  int    `json:"Code"`
}

// SetError fills the error fields of the envelope.
func (e *Envelope) SetError(message string, code int) {
	e.Error = message
	e.Code = code
}

// Failed reports whether the envelope describes an error.
func (e *Envelope) Failed() bool {
	return e.Code != 0 || e.Error != ""
}

// Response is implemented by every JSON payload of the protocol.
type Response interface {
	SetError(message string, code int)
	Failed() bool
}

// RenameResponse is returned by the rename action
type RenameResponse struct {
	OldPath string `json:"Old Path"`
	OldName string `json:"Old Name"`
	NewPath string `json:"New Path"`
	NewName string `json:"New Name"`
	Envelope
}

// DeleteResponse is returned by the delete action
type DeleteResponse struct {
	Path string `json:"Path"`
	Envelope
}

// CreateFolderResponse is returned by the addfolder action
type CreateFolderResponse struct {
	Parent string `json:"Parent"`
	Name   string `json:"Name"`
	Envelope
}

// UploadResponse is returned by the add and replace actions. Path is the
// folder the file was stored in.
type UploadResponse struct {
	Path string `json:"Path"`
	Name string `json:"Name"`
	Envelope
}

// EditFileResponse carries the text content of a file
type EditFileResponse struct {
	Path    string `json:"Path"`
	Content string `json:"Content"`
	Envelope
}

// SaveFileResponse is returned by the savefile action
type SaveFileResponse struct {
	Path string `json:"Path"`
	Envelope
}

// ErrorResponse is a bare envelope, used when no action-specific payload
// could be built.
type ErrorResponse struct {
	Envelope
}

// NewErrorResponse returns an envelope holding the given error.
func NewErrorResponse(message string, code int) *ErrorResponse {
	return &ErrorResponse{Envelope: Envelope{Error: message, Code: code}}
}
