package connector

import (
	"errors"
	"strings"
)

// Envelope codes.
const (
	CodeOK = 0
	// CodeDefault marks catalogued, localized errors.
	CodeDefault = -1
	// CodeUnexpected marks errors the connector did not anticipate; their
	// message is the raw error text.
	CodeUnexpected = 500
)

// Key names a catalogued message.
type Key string

const (
	KeyModeError               Key = "MODE_ERROR"
	KeyFileAlreadyExists       Key = "FILE_ALREADY_EXISTS"
	KeyDirectoryAlreadyExists  Key = "DIRECTORY_ALREADY_EXISTS"
	KeyFileNotExists           Key = "FILE_DOES_NOT_EXIST"
	KeyDirectoryNotExist       Key = "DIRECTORY_NOT_EXIST"
	KeyUnableToCreateDirectory Key = "UNABLE_TO_CREATE_DIRECTORY"
	KeyErrorRenamingFile       Key = "ERROR_RENAMING_FILE"
	KeyErrorRenamingDirectory  Key = "ERROR_RENAMING_DIRECTORY"
	KeyErrorSavingFile         Key = "ERROR_SAVING_FILE"
	KeyInvalidDirectoryOrFile  Key = "INVALID_DIRECTORY_OR_FILE"
	KeyInvalidFileUpload       Key = "INVALID_FILE_UPLOAD"
	KeyInvalidFileType         Key = "INVALID_FILE_TYPE"
	KeyUploadFilesSmallerThan  Key = "UPLOAD_FILES_SMALLER_THAN"
	KeyUploadImagesOnly        Key = "UPLOAD_IMAGES_ONLY"
	KeyNotAllowed              Key = "NOT_ALLOWED"
)

// Error is a catalogued domain error. Its message is resolved in the
// request's language when the response is built.
type Error struct {
	Key    Key
	Params []string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Key)
	if len(e.Params) > 0 {
		msg += " (" + strings.Join(e.Params, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError returns a catalogued error without a cause.
func newError(key Key, params ...string) *Error {
	return &Error{Key: key, Params: params}
}

// wrapError returns a catalogued error caused by err.
func wrapError(err error, key Key, params ...string) *Error {
	return &Error{Key: key, Params: params, Err: err}
}

// mapError converts any error into envelope fields: catalogued errors and
// protocol errors become localized messages with CodeDefault, everything
// else keeps its raw text with CodeUnexpected.
func (d *Dispatcher) mapError(rc *RequestContext, err error) (string, int) {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		params := make([]string, len(domainErr.Params))
		copy(params, domainErr.Params)
		return d.messages.Message(rc.Locale(), string(domainErr.Key), params...), CodeDefault
	case errors.Is(err, ErrMode):
		return d.messages.Message(rc.Locale(), string(KeyModeError)), CodeDefault
	default:
		return err.Error(), CodeUnexpected
	}
}
